// Package altar is the client side of the vaal altar. It picks or fetches
// an outcome for a card and feeds the resulting change through the user's
// sync queue.
package altar

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/catalogue"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/collection"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/outcome"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/service"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/settings"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/syncqueue"
)

// Common errors for vaal requests.
var (
	ErrCardNotOwned     = errors.New("card variant not owned")
	ErrInsufficientOrbs = errors.New("not enough vaal orbs")
)

// Remote is the altar server as seen by a client.
type Remote interface {
	outcome.AuthoritativeSource
	syncqueue.Committer
	Collection(ctx context.Context, username string) (*service.Collection, error)
}

// Options tunes a Client.
type Options struct {
	// Authoritative lets the server decide outcomes. Otherwise the client
	// rolls locally and commits the result.
	Authoritative bool
	Policy        outcome.Policy
	RNG           outcome.RandomSource
	IDs           syncqueue.IDGenerator
	Queue         syncqueue.Options
}

// Result is a vaal as seen by the caller: the decision, available at once,
// and the pending sync of its change. Pending is nil when the local state
// was reloaded from the server instead.
type Result struct {
	Decision outcome.Decision
	Pending  *syncqueue.Pending
}

// Client runs vaals for any number of users, one sync queue each.
type Client struct {
	engine    *outcome.Engine
	catalogue *catalogue.Catalogue
	settings  settings.Store
	remote    Remote
	queues    *syncqueue.Registry
	opts      Options
}

// NewClient creates a client. st may be nil, meaning outcomes are always
// random.
func NewClient(engine *outcome.Engine, cat *catalogue.Catalogue, st settings.Store, remote Remote, opts Options) *Client {
	if opts.Policy == "" {
		opts.Policy = outcome.PolicyAllow
	}
	if opts.RNG == nil {
		opts.RNG = outcome.DefaultRNG()
	}
	if opts.IDs == nil {
		opts.IDs = syncqueue.UUIDv7Generator{}
	}
	if opts.Queue.IDs == nil {
		opts.Queue.IDs = opts.IDs
	}

	c := &Client{
		engine:    engine,
		catalogue: cat,
		settings:  st,
		remote:    remote,
		opts:      opts,
	}
	c.queues = syncqueue.NewRegistry(func(string) (*syncqueue.Queue, error) {
		return syncqueue.New(collection.New(0, nil), remote, opts.Queue), nil
	})
	return c
}

// Queue returns the user's sync queue.
func (c *Client) Queue(username string) (*syncqueue.Queue, error) {
	return c.queues.GetOrCreate(username)
}

// Load replaces the user's local state with the server's collection. The
// fetch runs on the user's queue after the operations queued before it
// settle, so it never races an optimistic change.
func (c *Client) Load(ctx context.Context, username string) (collection.View, error) {
	q, err := c.Queue(username)
	if err != nil {
		return collection.View{}, err
	}
	v, err := q.Reload(ctx, func(ctx context.Context) (collection.View, error) {
		col, err := c.remote.Collection(ctx, username)
		if err != nil {
			return collection.View{}, fmt.Errorf("failed to load collection: %w", err)
		}
		return ViewOf(col), nil
	})
	if err != nil {
		return collection.View{}, err
	}

	log.Info().
		Str("username", username).
		Int64("vaal_orbs", v.Currency).
		Int("cards", len(v.Entries)).
		Msg("Collection loaded")
	return v, nil
}

// ViewOf converts a server collection to a local view.
func ViewOf(col *service.Collection) collection.View {
	v := collection.View{Currency: col.VaalOrbs, Entries: make(map[string]collection.Entry, len(col.Entries))}
	for _, e := range col.Entries {
		v.Entries[e.CardID] = collection.Entry{Normal: e.NormalCount, Foil: e.FoilCount, Card: e.Card}
	}
	return v
}

// Vaal corrupts one copy of cardID in the given variant.
func (c *Client) Vaal(ctx context.Context, username, cardID string, foil bool) (*Result, error) {
	q, err := c.Queue(username)
	if err != nil {
		return nil, err
	}
	card, err := c.catalogue.MustGet(cardID)
	if err != nil {
		return nil, err
	}
	card.Foil = foil

	if err := checkOwned(q.State(), cardID, foil); err != nil {
		return nil, err
	}

	if c.opts.Authoritative {
		return c.vaalRemote(ctx, q, username, card)
	}
	return c.vaalLocal(q, username, card)
}

func checkOwned(state *collection.State, cardID string, foil bool) error {
	if state.Currency() < outcome.OrbCost {
		return ErrInsufficientOrbs
	}
	e, _ := state.Entry(cardID)
	owned := e.Normal
	if foil {
		owned = e.Foil
	}
	if owned < 1 {
		return fmt.Errorf("%w: %s (foil=%t)", ErrCardNotOwned, cardID, foil)
	}
	return nil
}

func (c *Client) vaalLocal(q *syncqueue.Queue, username string, card model.Card) (*Result, error) {
	setting := outcome.SettingRandom
	if c.settings != nil {
		v, err := settings.ForcedOutcome(c.settings)
		if err != nil {
			return nil, err
		}
		setting = v
	}
	strategy, err := outcome.StrategyFor(setting, c.opts.Policy, c.opts.RNG)
	if err != nil {
		return nil, err
	}

	d, err := c.engine.WithStrategy(strategy).Roll(card, 0)
	if err != nil {
		return nil, err
	}

	p, err := q.Enqueue(syncqueue.Operation{
		ID:            c.opts.IDs.Generate(),
		Username:      username,
		CardUpdates:   d.Updates,
		CurrencyDelta: d.CurrencyDelta,
		OutcomeKind:   string(d.Kind),
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("username", username).
		Str("card_id", card.ID).
		Str("outcome", string(d.Kind)).
		Str("strategy", strategy.Name()).
		Msg("Vaal rolled locally")
	return &Result{Decision: d, Pending: p}, nil
}

func (c *Client) vaalRemote(ctx context.Context, q *syncqueue.Queue, username string, card model.Card) (*Result, error) {
	opID := c.opts.IDs.Generate()
	d, err := c.remote.Roll(ctx, outcome.RollRequest{
		OperationID: opID,
		Username:    username,
		CardID:      card.ID,
		Foil:        card.Foil,
	})
	if err != nil {
		return nil, err
	}

	p, err := q.Enqueue(syncqueue.Operation{
		ID:            opID,
		Username:      username,
		CardUpdates:   d.Updates,
		CurrencyDelta: d.CurrencyDelta,
		OutcomeKind:   string(d.Kind),
		Confirmed:     true,
	})
	if err == nil {
		return &Result{Decision: *d, Pending: p}, nil
	}

	var verr *syncqueue.ValidationError
	if !errors.As(err, &verr) {
		return nil, err
	}
	// the server already applied the change; local state has drifted
	log.Warn().Err(err).Str("username", username).Str("op_id", opID).Msg("Local state out of sync, reloading")
	if _, lerr := c.Load(ctx, username); lerr != nil {
		return nil, lerr
	}
	return &Result{Decision: *d}, nil
}

// Status returns the user's queue status.
func (c *Client) Status(username string) (syncqueue.Status, error) {
	q, err := c.Queue(username)
	if err != nil {
		return syncqueue.Status{}, err
	}
	return q.Status(), nil
}

// Close closes every queue, waiting for in-flight operations.
func (c *Client) Close() {
	c.queues.CloseAll()
}
