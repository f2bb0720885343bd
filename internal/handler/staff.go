package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/dastarhan/backend/internal/models"
)

func (h *Handler) AcceptOrder(res http.ResponseWriter, req *http.Request) {
	orderID, err := h.orderIDFromURL(req)
	if err != nil {
		res.WriteHeader(http.StatusBadRequest)
		return
	}

	var request models.AcceptOrderRequest

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(&request); err != nil {
		zap.L().Info("cannot decode request to json: %w", zap.Error(err))

		res.WriteHeader(http.StatusBadRequest)
		return
	}

	order, err := h.engine.AcceptOrder(req.Context(), orderID, request.EstimatedMinutes)
	if err != nil {
		h.writeError(res, err)
		return
	}

	h.writeJSON(res, http.StatusOK, models.NewOrderResponse(order))
}

func (h *Handler) DeclineOrder(res http.ResponseWriter, req *http.Request) {
	orderID, err := h.orderIDFromURL(req)
	if err != nil {
		res.WriteHeader(http.StatusBadRequest)
		return
	}

	order, err := h.engine.DeclineOrder(req.Context(), orderID)
	if err != nil {
		h.writeError(res, err)
		return
	}

	h.writeJSON(res, http.StatusOK, models.NewOrderResponse(order))
}

func (h *Handler) MarkReady(res http.ResponseWriter, req *http.Request) {
	orderID, err := h.orderIDFromURL(req)
	if err != nil {
		res.WriteHeader(http.StatusBadRequest)
		return
	}

	order, err := h.engine.MarkReady(req.Context(), orderID)
	if err != nil {
		h.writeError(res, err)
		return
	}

	h.writeJSON(res, http.StatusOK, models.NewOrderResponse(order))
}
