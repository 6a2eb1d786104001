package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mintgate/internal/domain"
	"mintgate/internal/relay"
	"mintgate/pkg/platform/httputil"
)

type forwardResponse struct {
	AttemptID string  `json:"attemptId"`
	Status    string  `json:"status"`
	TokenID   *uint64 `json:"tokenId,omitempty"`
}

// handleForward accepts a signed forward request and blocks until dispatch
// reaches a terminal outcome. Failed outcomes carry the mapped domain error.
func (h *Handler) handleForward(w http.ResponseWriter, r *http.Request) {
	var req domain.ForwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	outcome, err := h.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		h.logger.WarnContext(r.Context(), "forward request rejected",
			"identity", req.From,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if outcome.Status == relay.OutcomeFailed {
		h.logger.WarnContext(r.Context(), "dispatch failed",
			"attempt_id", outcome.AttemptID,
			"identity", req.From,
			"error", outcome.Err,
		)
		httputil.WriteError(w, outcome.Err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, forwardResponse{
		AttemptID: outcome.AttemptID,
		Status:    string(outcome.Status),
		TokenID:   outcome.TokenID,
	})
}

func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	attempt, ok := h.attempts.Get(r.Context(), id)
	if !ok {
		httputil.WriteErrorCode(w, http.StatusNotFound, "not_found", "unknown attempt id")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, attempt)
}

func (h *Handler) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")
	if identity == "" {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "bad_request", "identity query parameter required")
		return
	}
	attempts := h.attempts.ListByIdentity(r.Context(), domain.Address(identity))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}
