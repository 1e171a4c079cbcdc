package syncqueue

import (
	"context"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/collection"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

// CardCommit is one card of a commit: the signed change and the absolute
// counts the client expects once it is applied.
type CardCommit struct {
	CardID      string      `json:"card_id"`
	NormalDelta int         `json:"normal_delta"`
	FoilDelta   int         `json:"foil_delta"`
	NormalCount int         `json:"normal_count"`
	FoilCount   int         `json:"foil_count"`
	Card        *model.Card `json:"card,omitempty"`
}

// CommitRequest is the remote form of an operation.
type CommitRequest struct {
	OperationID   string       `json:"operation_id"`
	Username      string       `json:"username"`
	CurrencyDelta int64        `json:"currency_delta"`
	OutcomeKind   string       `json:"outcome,omitempty"`
	Cards         []CardCommit `json:"cards"`
}

// Committer sends an operation to the remote store. Implementations must
// tolerate being called again with the same OperationID.
type Committer interface {
	Commit(ctx context.Context, req CommitRequest) error
}

// CommitterFunc adapts a function to Committer.
type CommitterFunc func(ctx context.Context, req CommitRequest) error

// Commit calls f.
func (f CommitterFunc) Commit(ctx context.Context, req CommitRequest) error {
	return f(ctx, req)
}

func buildCommit(op *Operation, after collection.View) CommitRequest {
	d := op.delta()
	req := CommitRequest{
		OperationID:   op.ID,
		Username:      op.Username,
		CurrencyDelta: op.CurrencyDelta,
		OutcomeKind:   op.OutcomeKind,
		Cards:         make([]CardCommit, 0, len(d.Cards)),
	}
	for _, id := range d.IDs() {
		cd := d.Cards[id]
		e := after.Entry(id)
		card := cd.Card
		if card == nil {
			card = e.Card
		}
		req.Cards = append(req.Cards, CardCommit{
			CardID:      id,
			NormalDelta: cd.NormalDelta,
			FoilDelta:   cd.FoilDelta,
			NormalCount: e.Normal,
			FoilCount:   e.Foil,
			Card:        card,
		})
	}
	return req
}
