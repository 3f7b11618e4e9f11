package ap2

import (
	"fmt"
	"sync"
)

// Limits is the authorization envelope of an intent mandate, in minor
// currency units. Nil fields are unset and not enforced.
type Limits struct {
	// MaxAmount caps a single transaction. It is a scope check enforced by
	// the verifier before reservation, never by the ledger.
	MaxAmount *int64
	// MaxTotal caps cumulative spend across all uses.
	MaxTotal *int64
	// MaxUses caps how many times the mandate may be presented successfully.
	MaxUses *int64
}

// Usage is the accumulated state for one mandate identity.
type Usage struct {
	TotalSpentCents int64
	UseCount        int64
}

// UsageLedger tracks cumulative spend and use-count per mandate. Entries are
// created on first successful reservation and live for the process lifetime.
// It is the only shared mutable state in the verification core; every
// reservation is one atomic check-and-increment so concurrent presentations
// of the same mandate can never jointly exceed a limit.
type UsageLedger struct {
	mu      sync.Mutex
	entries map[string]*Usage
}

// NewUsageLedger returns an empty ledger.
func NewUsageLedger() *UsageLedger {
	return &UsageLedger{entries: make(map[string]*Usage)}
}

// CheckAndReserve atomically checks limits and, on success, records the spend.
// A rejection leaves the entry untouched.
func (l *UsageLedger) CheckAndReserve(mandateID string, amountCents int64, limits Limits) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.entries[mandateID]
	if entry == nil {
		entry = &Usage{}
	}
	if limits.MaxUses != nil && entry.UseCount >= *limits.MaxUses {
		return NewMandateError(LimitExceededUses,
			fmt.Sprintf("use count %d reached max_uses %d", entry.UseCount, *limits.MaxUses))
	}
	if limits.MaxTotal != nil && entry.TotalSpentCents+amountCents > *limits.MaxTotal {
		return NewMandateError(LimitExceededTotal,
			fmt.Sprintf("cumulative spend %d would exceed max_total %d", entry.TotalSpentCents+amountCents, *limits.MaxTotal))
	}
	entry.UseCount++
	entry.TotalSpentCents += amountCents
	l.entries[mandateID] = entry
	return nil
}

// Usage reports the current accumulated state for a mandate.
func (l *UsageLedger) Usage(mandateID string) (Usage, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[mandateID]
	if !ok {
		return Usage{}, false
	}
	return *entry, true
}
