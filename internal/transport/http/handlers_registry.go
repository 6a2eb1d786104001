package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mintgate/internal/domain"
	"mintgate/internal/registry/store"
	"mintgate/pkg/platform/httputil"
)

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	address := domain.Address(chi.URLParam(r, "address"))
	entry, err := h.registry.GetMembership(r.Context(), address)
	if err != nil {
		if err == store.ErrNotFound {
			httputil.WriteErrorCode(w, http.StatusNotFound, "not_found", "no membership for address")
			return
		}
		h.logger.ErrorContext(r.Context(), "registry lookup failed",
			"address", address,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	entries, err := h.registry.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "registry list failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"members": entries})
}
