package relay

//go:generate mockgen -source=client.go -destination=mocks/client.go -package=mocks Client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mintgate/internal/domain"
)

// ReceiptStatus is the relay-side view of a submitted transaction.
type ReceiptStatus string

const (
	ReceiptPending   ReceiptStatus = "pending"
	ReceiptConfirmed ReceiptStatus = "confirmed"
	ReceiptFailed    ReceiptStatus = "failed"
)

// Receipt is the confirmation the relay network delivers for a submission.
type Receipt struct {
	TxHash  string        `json:"txHash"`
	Status  ReceiptStatus `json:"status"`
	TokenID *uint64       `json:"tokenId,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// Client submits signed forward requests to the relay network and awaits
// confirmation. Implementations surface ErrRelayTimeout and ErrRelayRejected
// so the dispatcher can drive its retry policy.
type Client interface {
	SubmitForward(ctx context.Context, req domain.ForwardRequest) (string, error)
	AwaitReceipt(ctx context.Context, txHash string) (Receipt, error)
}

// HTTPClient talks to a relay network over its REST submission endpoint:
// POST /v1/forward returns {txHash}; GET /v1/receipts/{txHash} is polled
// until the receipt is terminal or the context expires.
type HTTPClient struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.client = c }
}

// WithPollInterval sets the receipt polling cadence.
func WithPollInterval(d time.Duration) HTTPOption {
	return func(h *HTTPClient) { h.pollInterval = d }
}

// NewHTTPClient creates a relay client for the given base URL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	h := &HTTPClient{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 10 * time.Second},
		pollInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type submitResponse struct {
	TxHash string `json:"txHash"`
	Error  string `json:"error,omitempty"`
}

// SubmitForward posts the signed payload to the relay.
func (h *HTTPClient) SubmitForward(ctx context.Context, req domain.ForwardRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal forward request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/v1/forward", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrRelayTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrRelayRejected, err)
	}
	defer resp.Body.Close()

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrRelayRejected, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrRelayRejected, resp.StatusCode, out.Error)
	}
	if out.TxHash == "" {
		return "", fmt.Errorf("%w: empty txHash", domain.ErrRelayRejected)
	}
	return out.TxHash, nil
}

// AwaitReceipt polls the receipt endpoint until the transaction is terminal.
// The caller bounds the wait through ctx; expiry maps to ErrRelayTimeout.
func (h *HTTPClient) AwaitReceipt(ctx context.Context, txHash string) (Receipt, error) {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := h.fetchReceipt(ctx, txHash)
		if err != nil {
			return Receipt{}, err
		}
		switch receipt.Status {
		case ReceiptConfirmed:
			return receipt, nil
		case ReceiptFailed:
			return receipt, fmt.Errorf("%w: %s", domain.ErrRelayRejected, receipt.Reason)
		}

		select {
		case <-ctx.Done():
			return Receipt{}, fmt.Errorf("%w: awaiting receipt for %s", domain.ErrRelayTimeout, txHash)
		case <-ticker.C:
		}
	}
}

func (h *HTTPClient) fetchReceipt(ctx context.Context, txHash string) (Receipt, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/v1/receipts/"+txHash, nil)
	if err != nil {
		return Receipt{}, fmt.Errorf("build receipt request: %w", err)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return Receipt{}, fmt.Errorf("%w: %v", domain.ErrRelayTimeout, err)
		}
		return Receipt{}, fmt.Errorf("%w: %v", domain.ErrRelayRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Receipt{}, fmt.Errorf("%w: receipt status %d", domain.ErrRelayRejected, resp.StatusCode)
	}
	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return Receipt{}, fmt.Errorf("%w: decode receipt: %v", domain.ErrRelayRejected, err)
	}
	return receipt, nil
}
