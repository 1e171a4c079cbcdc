// Package syncqueue serializes a user's collection changes against the
// remote store. Each operation is applied locally first, committed remotely
// and rolled back if the commit fails. At most one operation is in flight.
package syncqueue

import (
	"fmt"
	"time"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/collection"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

// Operation is one queued change to a user's balance and card counts.
type Operation struct {
	// ID is the idempotency key passed to the committer. Generated when empty.
	ID            string
	Username      string
	CardUpdates   map[string]model.CardDelta
	CurrencyDelta int64
	// OutcomeKind names the vaal outcome behind the change, for logs only.
	OutcomeKind string
	// Confirmed marks a change the remote store has already applied. It is
	// applied locally without a commit.
	Confirmed bool

	OnSuccess func(Result)
	OnError   func(*SyncError)
}

func (op *Operation) delta() collection.Delta {
	return collection.Delta{Currency: op.CurrencyDelta, Cards: op.CardUpdates}
}

// cloneUpdates copies updates, card metadata included, so later changes to
// the caller's map do not reach a queued operation.
func cloneUpdates(updates map[string]model.CardDelta) map[string]model.CardDelta {
	if updates == nil {
		return nil
	}
	out := make(map[string]model.CardDelta, len(updates))
	for id, d := range updates {
		if d.Card != nil {
			c := *d.Card
			if c.RelevanceScore != nil {
				score := *c.RelevanceScore
				c.RelevanceScore = &score
			}
			d.Card = &c
		}
		out[id] = d
	}
	return out
}

func (op *Operation) validate() error {
	if op.Username == "" {
		return fmt.Errorf("%w: missing username", ErrInvalidOperation)
	}
	if len(op.CardUpdates) == 0 && op.CurrencyDelta == 0 {
		return fmt.Errorf("%w: operation changes nothing", ErrInvalidOperation)
	}
	return op.delta().Validate()
}

// Result is the settled value of a successful operation.
type Result struct {
	OperationID string
	Username    string
	OutcomeKind string
	Confirmed   bool
	// Collection is the local state right after the operation settled.
	Collection collection.View
	SettledAt  time.Time
}

// Info describes the operation currently in flight.
type Info struct {
	ID          string
	Username    string
	OutcomeKind string
	StartedAt   time.Time
}
