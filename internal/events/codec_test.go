package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintgate/internal/domain"
)

func TestCodec_RoundTrip(t *testing.T) {
	minted := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	ev := domain.IssuanceEvent{
		Identity:     domain.Address("4fYNw3dojWmQ4dXtSGE9epjRGy9pFSx62YypT7avPYX3"),
		TokenID:      7,
		PayoutAmount: 30_000_000,
		MintedAt:     minted,
	}

	payload, err := EncodeIssuance(ev)
	require.NoError(t, err)

	got, err := DecodeIssuance(payload)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestDecodeIssuance_MissingIdentity(t *testing.T) {
	_, err := DecodeIssuance([]byte(`{"tokenId":1,"payoutAmount":5}`))
	assert.ErrorContains(t, err, "missing identity")
}

func TestDecodeIssuance_Garbage(t *testing.T) {
	_, err := DecodeIssuance([]byte(`{"tokenId":`))
	assert.Error(t, err)
}
