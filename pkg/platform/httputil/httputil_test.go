package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"mintgate/internal/domain"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
		body := decodeBody(t, w)
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("wrapped sentinels still map", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, fmt.Errorf("verify forward request: %w", domain.ErrSignatureInvalid))

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
		if body := decodeBody(t, w); body["error"] != "invalid_signature" {
			t.Fatalf("expected error code invalid_signature, got %q", body["error"])
		}
	})

	t.Run("sentinel mapping", func(t *testing.T) {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{domain.ErrRequestExpired, http.StatusBadRequest, "request_expired"},
			{domain.ErrNonceReplay, http.StatusConflict, "nonce_replayed"},
			{domain.ErrAlreadyMember, http.StatusConflict, "already_member"},
			{domain.ErrInsufficientTreasury, http.StatusPaymentRequired, "insufficient_treasury"},
			{domain.ErrNonTransferable, http.StatusForbidden, "non_transferable"},
			{domain.ErrTransferFailed, http.StatusBadGateway, "transfer_failed"},
			{domain.ErrRelayTimeout, http.StatusBadGateway, "relay_failed"},
			{domain.ErrFallbackExhausted, http.StatusBadGateway, "relay_failed"},
		}
		for _, tc := range cases {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)
			if w.Code != tc.status {
				t.Fatalf("%v: expected status %d, got %d", tc.err, tc.status, w.Code)
			}
			if body := decodeBody(t, w); body["error"] != tc.code {
				t.Fatalf("%v: expected error code %q, got %q", tc.err, tc.code, body["error"])
			}
		}
	})
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]int{"tokenId": 4})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json, got %q", got)
	}
}
