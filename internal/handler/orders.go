package handler

import (
	"encoding/json"
	"net/http"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/dastarhan/backend/internal/entities"
	"github.com/dastarhan/backend/internal/lifecycle"
	"github.com/dastarhan/backend/internal/models"
)

func (h *Handler) CreateOrder(res http.ResponseWriter, req *http.Request) {
	var request models.CreateOrderRequest

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(&request); err != nil {
		zap.L().Info("cannot decode request to json: %w", zap.Error(err))

		res.WriteHeader(http.StatusBadRequest)
		return
	}

	createRequest := lifecycle.CreateOrderRequest{
		Fulfillment:     entities.Fulfillment(request.Fulfillment),
		DeliveryAddress: request.DeliveryAddress,
	}

	if userID, ok := h.getUserIDFromReqContext(req); ok {
		createRequest.UserID = &userID
	}

	for _, item := range request.Items {
		createRequest.Items = append(createRequest.Items, lifecycle.OrderItemRequest{
			MenuItemID:     item.MenuItemID,
			Quantity:       item.Quantity,
			Customizations: types.JSONText(item.Customizations),
		})
	}

	order, message, err := h.engine.CreateOrder(req.Context(), createRequest)
	if err != nil {
		h.writeError(res, err)
		return
	}

	h.writeJSON(res, http.StatusCreated, models.CreateOrderResponse{
		Order:   models.NewOrderResponse(order),
		Message: message,
	})
}

func (h *Handler) GetOrderStatus(res http.ResponseWriter, req *http.Request) {
	orderID, err := h.orderIDFromURL(req)
	if err != nil {
		res.WriteHeader(http.StatusBadRequest)
		return
	}

	order, err := h.engine.GetOrderStatus(req.Context(), orderID)
	if err != nil {
		h.writeError(res, err)
		return
	}

	h.writeJSON(res, http.StatusOK, models.NewOrderResponse(order))
}

func (h *Handler) VerifyPayment(res http.ResponseWriter, req *http.Request) {
	orderID, err := h.orderIDFromURL(req)
	if err != nil {
		res.WriteHeader(http.StatusBadRequest)
		return
	}

	order, err := h.engine.VerifyPayment(req.Context(), orderID)
	if err != nil {
		h.writeError(res, err)
		return
	}

	h.writeJSON(res, http.StatusOK, models.NewOrderResponse(order))
}

func (h *Handler) AttachCheckout(res http.ResponseWriter, req *http.Request) {
	orderID, err := h.orderIDFromURL(req)
	if err != nil {
		res.WriteHeader(http.StatusBadRequest)
		return
	}

	var request models.AttachCheckoutRequest

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(&request); err != nil {
		zap.L().Info("cannot decode request to json: %w", zap.Error(err))

		res.WriteHeader(http.StatusBadRequest)
		return
	}

	order, err := h.engine.AttachCheckout(req.Context(), orderID, request.Reference)
	if err != nil {
		h.writeError(res, err)
		return
	}

	h.writeJSON(res, http.StatusOK, models.NewOrderResponse(order))
}

func (h *Handler) RepeatOrder(res http.ResponseWriter, req *http.Request) {
	userID, ok := h.getUserIDFromReqContext(req)
	if !ok {
		res.WriteHeader(http.StatusUnauthorized)
		return
	}

	orderID, err := h.orderIDFromURL(req)
	if err != nil {
		res.WriteHeader(http.StatusBadRequest)
		return
	}

	result, err := h.engine.RepeatOrder(req.Context(), orderID, userID)
	if err != nil {
		h.writeError(res, err)
		return
	}

	h.writeJSON(res, http.StatusOK, models.NewRepeatOrderResponse(result))
}

func (h *Handler) GetUserOrders(res http.ResponseWriter, req *http.Request) {
	userID, ok := h.getUserIDFromReqContext(req)
	if !ok {
		res.WriteHeader(http.StatusUnauthorized)
		return
	}

	orders, err := h.storage.ListUserOrders(req.Context(), userID)
	if err != nil {
		zap.L().Info("error get user orders from database: %w", zap.Error(err))

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
