// Package events carries issuance events between the gateway and off-chain
// consumers over kafka. Records are keyed by identity so consumers see
// per-identity ordering; delivery is at-least-once.
package events

import (
	"encoding/json"
	"fmt"

	"mintgate/internal/domain"
)

// EncodeIssuance serializes an issuance event for the wire.
func EncodeIssuance(ev domain.IssuanceEvent) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal issuance event: %w", err)
	}
	return payload, nil
}

// DecodeIssuance parses a wire payload back into an issuance event.
func DecodeIssuance(payload []byte) (domain.IssuanceEvent, error) {
	var ev domain.IssuanceEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return domain.IssuanceEvent{}, fmt.Errorf("unmarshal issuance event: %w", err)
	}
	if ev.Identity.IsZero() {
		return domain.IssuanceEvent{}, fmt.Errorf("issuance event missing identity")
	}
	return ev, nil
}
