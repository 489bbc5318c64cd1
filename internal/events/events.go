// Package events defines the ledger change notifications published after a
// successful write and consumed by the background worker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type Type string

const (
	EntryRecorded  Type = "entry.recorded"
	EntryUpdated   Type = "entry.updated"
	EntryRemoved   Type = "entry.removed"
	BudgetExceeded Type = "budget.exceeded"
)

func (t Type) Valid() bool {
	switch t {
	case EntryRecorded, EntryUpdated, EntryRemoved, BudgetExceeded:
		return true
	}
	return false
}

// LedgerEvent carries identifiers only. Consumers reload current state from
// the store, so redelivery and reordering are harmless.
type LedgerEvent struct {
	Type        Type      `json:"type"`
	AccountID   string    `json:"accountId"`
	EntryID     string    `json:"entryId,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	AmountCents int64     `json:"amountCents"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func New(t Type, accountID, entryID string, amountCents int64, categories ...string) LedgerEvent {
	return LedgerEvent{
		Type:        t,
		AccountID:   accountID,
		EntryID:     entryID,
		Categories:  categories,
		AmountCents: amountCents,
		OccurredAt:  time.Now().UTC(),
	}
}

func (e LedgerEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, err
	}
	if !e.Type.Valid() {
		return LedgerEvent{}, fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.AccountID == "" {
		return LedgerEvent{}, fmt.Errorf("event %s has no account id", e.Type)
	}
	return e, nil
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e LedgerEvent) error
	Close() error
}

// Handler processes one event. Returning an error asks the transport to
// redeliver it.
type Handler func(ctx context.Context, e LedgerEvent) error

// Consumer blocks delivering events to h until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, h Handler) error
	Close() error
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, LedgerEvent) error { return nil }
func (Nop) Close() error                               { return nil }

// Recorder keeps published events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []LedgerEvent
	Err    error
}

func (r *Recorder) Publish(_ context.Context, e LedgerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []LedgerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LedgerEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []Type {
	evs := r.Events()
	out := make([]Type, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}
