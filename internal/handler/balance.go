package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dastarhan/backend/internal/models"
	"github.com/dastarhan/backend/internal/services/money"
	"github.com/dastarhan/backend/internal/storage"
)

func (h *Handler) GetBalance(res http.ResponseWriter, req *http.Request) {
	userID, ok := h.getUserIDFromReqContext(req)
	if !ok {
		res.WriteHeader(http.StatusUnauthorized)
		return
	}

	account, err := h.storage.GetLoyaltyAccount(req.Context(), userID)
	if err != nil {
		// Users who never earned points have no account row yet.
		if errors.Is(err, storage.ErrNoRows) {
			h.writeJSON(res, http.StatusOK, models.BalanceResponse{})
			return
		}

		zap.L().Info("error get loyalty account: %w", zap.Error(err))

		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.writeJSON(res, http.StatusOK, models.BalanceResponse{
		CardNumber:  account.CardNumber,
		Balance:     account.Balance,
		PeriodSpent: money.FromMinorUnits(account.PeriodSpent),
	})
}
