package httptransport

import (
	"net/http"
	"strconv"

	"mintgate/pkg/platform/httputil"
)

// handleChainEvents exposes the recent chain event log. The sync worker's
// backfill reads this as the source of truth when repairing the registry.
func (h *Handler) handleChainEvents(w http.ResponseWriter, r *http.Request) {
	window := 0
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteErrorCode(w, http.StatusBadRequest, "bad_request", "window must be a non-negative integer")
			return
		}
		window = parsed
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": h.chain.RecentEvents(window),
	})
}
