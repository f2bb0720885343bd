package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dastarhan/backend/internal/models"
)

func (h *Handler) GetReadyDeliveries(res http.ResponseWriter, req *http.Request) {
	orders, err := h.dispatcher.ListReadyDeliveries(req.Context())
	if err != nil {
		zap.L().Info("error get ready deliveries from database: %w", zap.Error(err))

		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		res.WriteHeader(http.StatusNoContent)
		return
	}

	responseOrders := make(models.GetOrdersResponse, 0, len(orders))
	for _, order := range orders {
		responseOrders = append(responseOrders, models.NewOrderResponse(order))
	}

	h.writeJSON(res, http.StatusOK, responseOrders)
}

func (h *Handler) GetActiveDeliveries(res http.ResponseWriter, req *http.Request) {
	driverID, ok := h.getUserIDFromReqContext(req)
	if !ok {
		res.WriteHeader(http.StatusUnauthorized)
		return
	}

	orders, err := h.dispatcher.ListActiveDeliveries(req.Context(), driverID)
	if err != nil {
		zap.L().Info("error get active deliveries from database: %w", zap.Error(err))

		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		res.WriteHeader(http.StatusNoContent)
		return
	}

	responseOrders := make(models.GetOrdersResponse, 0, len(orders))
	for _, order := range orders {
		responseOrders = append(responseOrders, models.NewOrderResponse(order))
	}

	h.writeJSON(res, http.StatusOK, responseOrders)
}

func (h *Handler) AcceptDelivery(res http.ResponseWriter, req *http.Request) {
	driverID, ok := h.getUserIDFromReqContext(req)
	if !ok {
		res.WriteHeader(http.StatusUnauthorized)
		return
	}

	orderID, err := h.orderIDFromURL(req)
	if err != nil {
		res.WriteHeader(http.StatusBadRequest)
		return
	}

	order, err := h.dispatcher.AcceptDelivery(req.Context(), orderID, driverID)
	if err != nil {
		h.writeError(res, err)
		return
	}

	h.writeJSON(res, http.StatusOK, models.NewOrderResponse(order))
}

func (h *Handler) MarkDelivered(res http.ResponseWriter, req *http.Request) {
	driverID, ok := h.getUserIDFromReqContext(req)
	if !ok {
		res.WriteHeader(http.StatusUnauthorized)
		return
	}

	orderID, err := h.orderIDFromURL(req)
	if err != nil {
		res.WriteHeader(http.StatusBadRequest)
		return
	}

	order, err := h.dispatcher.MarkDelivered(req.Context(), orderID, driverID)
	if err != nil {
		h.writeError(res, err)
		return
	}

	h.writeJSON(res, http.StatusOK, models.NewOrderResponse(order))
}
