package domain

import "time"

// MembershipRecord is the on-chain credential. Exactly one exists per
// identity; the owner is immutable after creation and transfer is rejected
// unconditionally.
type MembershipRecord struct {
	TokenID  uint64    `json:"tokenId"`
	Owner    Address   `json:"owner"`
	MintedAt time.Time `json:"mintedAt"`
}

// RegistryEntry is the off-chain mirror of a MembershipRecord kept by the
// registry synchronizer. It is eventually consistent with chain state and
// never the source of truth.
type RegistryEntry struct {
	TokenID  uint64            `json:"tokenId"`
	Owner    Address           `json:"owner"`
	MintedAt time.Time         `json:"mintedAt"`
	IsActive bool              `json:"isActive"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
