// Package httputil translates service results into HTTP responses. Handlers
// never pick status codes themselves; they hand errors here so the sentinel
// mapping lives in one place.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"mintgate/internal/domain"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteErrorCode writes an explicit error code and description.
func WriteErrorCode(w http.ResponseWriter, status int, code, description string) {
	WriteJSON(w, status, errorBody{Error: code, Description: description})
}

// WriteError maps a domain error onto a status and stable error code.
// Unrecognized errors become 500 with the description omitted so internals
// never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSignatureInvalid):
		WriteErrorCode(w, http.StatusUnauthorized, "invalid_signature", err.Error())
	case errors.Is(err, domain.ErrRequestExpired):
		WriteErrorCode(w, http.StatusBadRequest, "request_expired", err.Error())
	case errors.Is(err, domain.ErrNonceReplay):
		WriteErrorCode(w, http.StatusConflict, "nonce_replayed", err.Error())
	case errors.Is(err, domain.ErrAlreadyMember):
		WriteErrorCode(w, http.StatusConflict, "already_member", err.Error())
	case errors.Is(err, domain.ErrInsufficientTreasury):
		WriteErrorCode(w, http.StatusPaymentRequired, "insufficient_treasury", err.Error())
	case errors.Is(err, domain.ErrNonTransferable):
		WriteErrorCode(w, http.StatusForbidden, "non_transferable", err.Error())
	case errors.Is(err, domain.ErrTransferFailed):
		WriteErrorCode(w, http.StatusBadGateway, "transfer_failed", err.Error())
	case errors.Is(err, domain.ErrRelayTimeout),
		errors.Is(err, domain.ErrRelayRejected),
		errors.Is(err, domain.ErrFallbackExhausted):
		WriteErrorCode(w, http.StatusBadGateway, "relay_failed", err.Error())
	default:
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error"})
	}
}
