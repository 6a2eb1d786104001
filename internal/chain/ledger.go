// Package chain is the in-process ledger runtime the issuance state machine
// executes against. Every Execute call runs under a single lock and commits
// all-or-nothing: the chain itself is the lock that serializes mint attempts.
package chain

import (
	"context"
	"sync"
	"time"

	"mintgate/internal/domain"
)

// EventType names the chain events the membership contract emits.
type EventType string

const (
	EventMembershipMinted EventType = "MembershipMinted"
	EventInitialFundSent  EventType = "InitialFundSent"
)

// Event is one entry in the append-only chain log. Seq is assigned at commit
// and is strictly increasing; the registry backfill scans a recent window of
// these as the canonical record.
type Event struct {
	Seq      uint64         `json:"seq"`
	Type     EventType      `json:"type"`
	Identity domain.Address `json:"identity"`
	TokenID  uint64         `json:"tokenId,omitempty"`
	Amount   domain.Amount  `json:"amount,omitempty"`
	At       time.Time      `json:"at"`
}

// TransferHook runs when an account is credited. A hook returning an error
// models a recipient that rejects value; the surrounding execution is
// discarded entirely.
type TransferHook func(amount domain.Amount) error

// Ledger holds balances, membership records, and the event log. All mutation
// goes through Execute; reads take the same lock so no partially applied
// state is ever observable.
type Ledger struct {
	mu          sync.Mutex
	balances    map[domain.Address]domain.Amount
	records     map[domain.Address]domain.MembershipRecord
	byToken     map[uint64]domain.Address
	hooks       map[domain.Address]TransferHook
	events      []Event
	nextTokenID uint64
	nextSeq     uint64
	now         func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock fixes the ledger clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		balances: make(map[domain.Address]domain.Amount),
		records:  make(map[domain.Address]domain.MembershipRecord),
		byToken:  make(map[uint64]domain.Address),
		hooks:    make(map[domain.Address]TransferHook),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetHook installs a transfer hook for an account. A nil hook removes it.
func (l *Ledger) SetHook(addr domain.Address, hook TransferHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hook == nil {
		delete(l.hooks, addr)
		return
	}
	l.hooks[addr] = hook
}

// Execute runs fn against a transactional view of the ledger. If fn returns
// an error, every staged change is discarded; otherwise balances, records,
// the token counter, and emitted events commit as one unit.
func (l *Ledger) Execute(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &Tx{
		ledger:   l,
		balances: make(map[domain.Address]domain.Amount),
		records:  make(map[domain.Address]domain.MembershipRecord),
		now:      l.now(),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for addr, bal := range tx.balances {
		l.balances[addr] = bal
	}
	for addr, rec := range tx.records {
		l.records[addr] = rec
		l.byToken[rec.TokenID] = addr
	}
	l.nextTokenID += tx.allocated
	for _, ev := range tx.events {
		l.nextSeq++
		ev.Seq = l.nextSeq
		ev.At = tx.now
		l.events = append(l.events, ev)
	}
	return nil
}

// Balance returns the committed balance of an account.
func (l *Ledger) Balance(addr domain.Address) domain.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

// Record returns the committed membership record for an identity.
func (l *Ledger) Record(addr domain.Address) (domain.MembershipRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[addr]
	return rec, ok
}

// RecordByToken looks a record up by its token id.
func (l *Ledger) RecordByToken(tokenID uint64) (domain.MembershipRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	addr, ok := l.byToken[tokenID]
	if !ok {
		return domain.MembershipRecord{}, false
	}
	return l.records[addr], true
}

// NextTokenID exposes the committed counter for tests and status endpoints.
func (l *Ledger) NextTokenID() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextTokenID
}

// RecentEvents returns up to window most recent committed events in log
// order. A window of zero returns the whole log.
func (l *Ledger) RecentEvents(window int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := 0
	if window > 0 && len(l.events) > window {
		start = len(l.events) - window
	}
	out := make([]Event, len(l.events)-start)
	copy(out, l.events[start:])
	return out
}

// Tx is the transactional view passed to Execute callbacks. It stages
// balances, records, counter allocations, and events until commit.
type Tx struct {
	ledger    *Ledger
	balances  map[domain.Address]domain.Amount
	records   map[domain.Address]domain.MembershipRecord
	events    []Event
	allocated uint64
	now       time.Time
}

// Now is the commit timestamp shared by everything staged in this execution.
func (tx *Tx) Now() time.Time { return tx.now }

// Balance reads the staged balance of an account, falling back to committed
// state.
func (tx *Tx) Balance(addr domain.Address) domain.Amount {
	if bal, ok := tx.balances[addr]; ok {
		return bal
	}
	return tx.ledger.balances[addr]
}

// Debit reduces an account balance, refusing to go negative.
func (tx *Tx) Debit(addr domain.Address, amount domain.Amount) bool {
	bal := tx.Balance(addr)
	if bal < amount {
		return false
	}
	tx.balances[addr] = bal - amount
	return true
}

// Credit increases an account balance after running its transfer hook, if
// any. A hook error aborts the credit and should abort the execution.
func (tx *Tx) Credit(addr domain.Address, amount domain.Amount) error {
	if hook, ok := tx.ledger.hooks[addr]; ok {
		if err := hook(amount); err != nil {
			return err
		}
	}
	tx.balances[addr] = tx.Balance(addr) + amount
	return nil
}

// Record reads a membership record, staged or committed.
func (tx *Tx) Record(addr domain.Address) (domain.MembershipRecord, bool) {
	if rec, ok := tx.records[addr]; ok {
		return rec, true
	}
	rec, ok := tx.ledger.records[addr]
	return rec, ok
}

// PutRecord stages a new membership record.
func (tx *Tx) PutRecord(rec domain.MembershipRecord) {
	tx.records[rec.Owner] = rec
}

// AllocateTokenID hands out the next monotonic token id within this
// execution. Allocations only advance the committed counter on commit, so an
// aborted execution leaves it untouched.
func (tx *Tx) AllocateTokenID() uint64 {
	id := tx.ledger.nextTokenID + tx.allocated
	tx.allocated++
	return id
}

// Emit stages a chain event; Seq and At are assigned at commit.
func (tx *Tx) Emit(ev Event) {
	tx.events = append(tx.events, ev)
}
