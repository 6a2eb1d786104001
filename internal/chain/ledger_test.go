package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintgate/internal/domain"
)

func fund(t *testing.T, l *Ledger, addr domain.Address, amount domain.Amount) {
	t.Helper()
	err := l.Execute(context.Background(), func(tx *Tx) error {
		return tx.Credit(addr, amount)
	})
	require.NoError(t, err)
}

func TestExecute_CommitsAllStagedChanges(t *testing.T) {
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := New(WithClock(func() time.Time { return fixed }))
	fund(t, l, "treasury", 300_000_000)

	err := l.Execute(context.Background(), func(tx *Tx) error {
		require.True(t, tx.Debit("treasury", 30_000_000))
		require.NoError(t, tx.Credit("alice", 30_000_000))
		id := tx.AllocateTokenID()
		tx.PutRecord(domain.MembershipRecord{TokenID: id, Owner: "alice", MintedAt: tx.Now()})
		tx.Emit(Event{Type: EventMembershipMinted, Identity: "alice", TokenID: id})
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Amount(270_000_000), l.Balance("treasury"))
	assert.Equal(t, domain.Amount(30_000_000), l.Balance("alice"))

	rec, ok := l.Record("alice")
	require.True(t, ok)
	assert.Equal(t, uint64(0), rec.TokenID)
	assert.Equal(t, fixed, rec.MintedAt)
	assert.Equal(t, uint64(1), l.NextTokenID())

	events := l.RecentEvents(0)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].Seq)
	assert.Equal(t, EventMembershipMinted, events[0].Type)
}

func TestExecute_DiscardsEverythingOnError(t *testing.T) {
	l := New()
	fund(t, l, "treasury", 100)

	boom := errors.New("recipient rejects value")
	l.SetHook("bob", func(domain.Amount) error { return boom })

	err := l.Execute(context.Background(), func(tx *Tx) error {
		require.True(t, tx.Debit("treasury", 40))
		id := tx.AllocateTokenID()
		tx.PutRecord(domain.MembershipRecord{TokenID: id, Owner: "bob"})
		if err := tx.Credit("bob", 40); err != nil {
			return err
		}
		tx.Emit(Event{Type: EventMembershipMinted, Identity: "bob", TokenID: id})
		return nil
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, domain.Amount(100), l.Balance("treasury"))
	assert.Equal(t, domain.Amount(0), l.Balance("bob"))
	_, ok := l.Record("bob")
	assert.False(t, ok)
	assert.Equal(t, uint64(0), l.NextTokenID())
	assert.Empty(t, l.RecentEvents(0))
}

func TestDebit_NeverGoesNegative(t *testing.T) {
	l := New()
	fund(t, l, "treasury", 10)

	err := l.Execute(context.Background(), func(tx *Tx) error {
		assert.False(t, tx.Debit("treasury", 11))
		assert.True(t, tx.Debit("treasury", 10))
		assert.False(t, tx.Debit("treasury", 1))
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Equal(t, domain.Amount(10), l.Balance("treasury"))
}

func TestRecentEvents_BoundedWindow(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		err := l.Execute(context.Background(), func(tx *Tx) error {
			tx.Emit(Event{Type: EventMembershipMinted, TokenID: tx.AllocateTokenID()})
			return nil
		})
		require.NoError(t, err)
	}

	window := l.RecentEvents(2)
	require.Len(t, window, 2)
	assert.Equal(t, uint64(4), window[0].Seq)
	assert.Equal(t, uint64(5), window[1].Seq)

	all := l.RecentEvents(0)
	assert.Len(t, all, 5)
}

func TestRecordByToken(t *testing.T) {
	l := New()
	err := l.Execute(context.Background(), func(tx *Tx) error {
		id := tx.AllocateTokenID()
		tx.PutRecord(domain.MembershipRecord{TokenID: id, Owner: "carol"})
		return nil
	})
	require.NoError(t, err)

	rec, ok := l.RecordByToken(0)
	require.True(t, ok)
	assert.Equal(t, domain.Address("carol"), rec.Owner)

	_, ok = l.RecordByToken(99)
	assert.False(t, ok)
}
