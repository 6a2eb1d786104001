package httptransport

import (
	"encoding/json"
	"net/http"

	"mintgate/internal/domain"
	"mintgate/pkg/platform/httputil"
	"mintgate/pkg/platform/middleware/operator"
)

type treasuryStatusResponse struct {
	Balance        string `json:"balance"`
	PayoutAmount   string `json:"payoutAmount"`
	BelowThreshold bool   `json:"belowThreshold"`
}

func (h *Handler) handleTreasuryStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, treasuryStatusResponse{
		Balance:        h.treasury.Balance().String(),
		PayoutAmount:   h.treasury.PayoutAmount().String(),
		BelowThreshold: h.treasury.IsBelowThreshold(),
	})
}

type creditRequest struct {
	Amount string `json:"amount"`
}

// handleTreasuryCredit replenishes the payout pool. Reached only through the
// operator middleware.
func (h *Handler) handleTreasuryCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "bad_request", "invalid amount")
		return
	}
	if amount == 0 {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "bad_request", "amount must be positive")
		return
	}

	if err := h.treasury.Credit(r.Context(), amount); err != nil {
		h.logger.ErrorContext(r.Context(), "treasury credit failed",
			"subject", operator.GetSubject(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "treasury credited",
		"subject", operator.GetSubject(r.Context()),
		"amount", amount.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, treasuryStatusResponse{
		Balance:        h.treasury.Balance().String(),
		PayoutAmount:   h.treasury.PayoutAmount().String(),
		BelowThreshold: h.treasury.IsBelowThreshold(),
	})
}
