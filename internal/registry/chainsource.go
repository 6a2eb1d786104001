package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mintgate/internal/chain"
)

// HTTPSource reads the chain event log from the gateway's /chain/events
// endpoint. The sync worker uses it when it runs as a separate process.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource builds an EventSource against a gateway base URL.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSource) RecentEvents(ctx context.Context, window int) ([]chain.Event, error) {
	endpoint := s.baseURL + "/chain/events?" + url.Values{
		"window": {strconv.Itoa(window)},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build chain events request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch chain events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch chain events: unexpected status %d", resp.StatusCode)
	}
	var payload struct {
		Events []chain.Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode chain events: %w", err)
	}
	return payload.Events, nil
}
