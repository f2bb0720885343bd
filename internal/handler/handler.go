package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/dastarhan/backend/internal/dispatch"
	"github.com/dastarhan/backend/internal/lifecycle"
	"github.com/dastarhan/backend/internal/middleware"
	"github.com/dastarhan/backend/internal/models"
	"github.com/dastarhan/backend/internal/payment"
	"github.com/dastarhan/backend/internal/storage"
)

type Handler struct {
	storage    storage.Storage
	engine     *lifecycle.Engine
	dispatcher *dispatch.Dispatcher
}

func NewHandler(storage storage.Storage, engine *lifecycle.Engine, dispatcher *dispatch.Dispatcher) *Handler {
	return &Handler{
		storage:    storage,
		engine:     engine,
		dispatcher: dispatcher,
	}
}

func (h *Handler) getUserIDFromReqContext(req *http.Request) (int64, bool) {
	userID, ok := req.Context().Value(middleware.UserIDKey{}).(int64)
	return userID, ok
}

func (h *Handler) orderIDFromURL(req *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(req, "orderID"), 10, 64)
}

func (h *Handler) writeJSON(res http.ResponseWriter, status int, body any) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)

	jsonEncoder := json.NewEncoder(res)
	if err := jsonEncoder.Encode(body); err != nil {
		zap.L().Info("cannot encode response JSON body: %w", zap.Error(err))
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses. Business
// errors are surfaced verbatim; gateway and storage failures stay opaque.
func (h *Handler) writeError(res http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrOrderNotFound):
		h.writeJSON(res, http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, lifecycle.ErrItemUnavailable):
		h.writeJSON(res, http.StatusUnprocessableEntity, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, lifecycle.ErrCheckoutAttached):
		h.writeJSON(res, http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, lifecycle.ErrForbidden):
		h.writeJSON(res, http.StatusForbidden, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, lifecycle.ErrInvalidOrder):
		h.writeJSON(res, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, payment.ErrGatewayUnavailable):
		zap.L().Info("payment gateway unavailable", zap.Error(err))

		h.writeJSON(res, http.StatusServiceUnavailable, models.ErrorResponse{Error: "payment gateway unavailable, retry later"})
	default:
		zap.L().Info("internal error", zap.Error(err))

		h.writeJSON(res, http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
	}
}
