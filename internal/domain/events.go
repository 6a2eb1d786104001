package domain

import "time"

// IssuanceEvent is the externally observable side effect of a successful mint.
// It pairs the MembershipMinted and InitialFundSent chain events, which are
// emitted only together, and is what the registry synchronizer consumes.
// Delivery is at-least-once; consumers must upsert idempotently by TokenID.
type IssuanceEvent struct {
	Identity     Address   `json:"identity"`
	TokenID      uint64    `json:"tokenId"`
	PayoutAmount Amount    `json:"payoutAmount"`
	MintedAt     time.Time `json:"mintedAt"`
}
