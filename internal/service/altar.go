// Package service provides the altar server's business logic.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/catalogue"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/outcome"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/pkg/lock"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/repository"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/settings"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/syncqueue"
)

// Common errors for altar operations.
var (
	ErrInsufficientOrbs = errors.New("not enough vaal orbs")
	ErrCardNotFound     = errors.New("card not found in collection")
	ErrInvalidUser      = errors.New("invalid user")
	ErrConflict         = errors.New("collection changed concurrently")
)

// Error codes sent to clients.
const (
	CodeInsufficientOrbs = "INSUFFICIENT_ORBS"
	CodeCardNotFound     = "CARD_NOT_FOUND"
	CodeInvalidUser      = "INVALID_USER"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorCode maps an altar error to its client-facing code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientOrbs):
		return CodeInsufficientOrbs
	case errors.Is(err, ErrCardNotFound):
		return CodeCardNotFound
	case errors.Is(err, ErrInvalidUser):
		return CodeInvalidUser
	case errors.Is(err, ErrConflict):
		return CodeConflict
	}
	return CodeInternal
}

const (
	opKindRoll   = "roll"
	opKindCommit = "commit"
)

// Collection is a user's orb balance and owned cards.
type Collection struct {
	Username string                  `json:"username"`
	VaalOrbs int64                   `json:"vaal_orbs"`
	Entries  []model.CollectionEntry `json:"entries"`
}

// AltarOptions tunes an AltarService.
type AltarOptions struct {
	InitialOrbs int64
	LockTimeout time.Duration
	Policy      outcome.Policy
	RNG         outcome.RandomSource
	Now         func() time.Time
}

// AltarService decides vaal outcomes and settles collection changes for
// every user. Work for one user is serialized by a per-user lock.
type AltarService struct {
	store     *repository.Store
	engine    *outcome.Engine
	catalogue *catalogue.Catalogue
	settings  settings.Store
	userLock  *lock.UserLock
	opts      AltarOptions
}

// NewAltarService creates a new AltarService instance.
func NewAltarService(
	store *repository.Store,
	engine *outcome.Engine,
	cat *catalogue.Catalogue,
	st settings.Store,
	userLock *lock.UserLock,
	opts AltarOptions,
) *AltarService {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}
	if opts.Policy == "" {
		opts.Policy = outcome.PolicyAllow
	}
	if opts.RNG == nil {
		opts.RNG = outcome.DefaultRNG()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if userLock == nil {
		userLock = lock.NewUserLock()
	}
	return &AltarService{
		store:     store,
		engine:    engine,
		catalogue: cat,
		settings:  st,
		userLock:  userLock,
		opts:      opts,
	}
}

// SyncCatalogue stores every catalogue template so collections can
// reference it.
func (s *AltarService) SyncCatalogue(ctx context.Context) error {
	for _, c := range s.catalogue.All() {
		if err := s.store.Cards.Upsert(ctx, c); err != nil {
			return err
		}
	}
	log.Info().Int("cards", s.catalogue.Count()).Msg("Card catalogue synced")
	return nil
}

// EnsureUser returns the user, creating it with the initial orb balance.
func (s *AltarService) EnsureUser(ctx context.Context, username string) (*model.User, error) {
	if username == "" {
		return nil, ErrInvalidUser
	}
	user, created, err := s.store.Users.GetOrCreate(ctx, username, s.opts.InitialOrbs)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	if created {
		log.Info().Str("username", username).Int64("vaal_orbs", user.VaalOrbs).Msg("Created user")
	}
	return user, nil
}

// Collection returns the user's orb balance and owned cards.
func (s *AltarService) Collection(ctx context.Context, username string) (*Collection, error) {
	user, err := s.EnsureUser(ctx, username)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.Collections.List(ctx, username)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.CollectionEntry{}
	}
	return &Collection{Username: username, VaalOrbs: user.VaalOrbs, Entries: entries}, nil
}

// GrantOrbs adds n vaal orbs to the user's balance.
func (s *AltarService) GrantOrbs(ctx context.Context, username string, n int64) (*model.User, error) {
	if n <= 0 {
		return nil, fmt.Errorf("grant must be positive, got %d", n)
	}
	if _, err := s.EnsureUser(ctx, username); err != nil {
		return nil, err
	}

	var user *model.User
	err := s.userLock.WithLockContext(ctx, username, s.opts.LockTimeout, func() error {
		return s.store.InTx(ctx, func(r *repository.Repositories) error {
			var err error
			user, err = r.Users.AddOrbs(ctx, username, n)
			if err != nil {
				return err
			}
			_, err = r.Activity.Create(ctx, username, model.ActivityOrbGrant, fmt.Sprintf("Received %d vaal orbs", n), nil, nil)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to grant orbs: %w", err)
	}
	return user, nil
}

// GrantCard adds copies of a template to the user's collection.
func (s *AltarService) GrantCard(ctx context.Context, username, cardID string, foil bool, n int) error {
	if n <= 0 {
		return fmt.Errorf("grant must be positive, got %d", n)
	}
	if _, err := s.catalogue.MustGet(cardID); err != nil {
		return ErrCardNotFound
	}
	if _, err := s.EnsureUser(ctx, username); err != nil {
		return err
	}

	normal, foils := n, 0
	if foil {
		normal, foils = 0, n
	}
	return s.userLock.WithLockContext(ctx, username, s.opts.LockTimeout, func() error {
		_, err := s.store.Collections.AddCounts(ctx, username, cardID, normal, foils)
		return err
	})
}

// GrantAtlasInfluence gives the user a foil boost for their next vaal.
func (s *AltarService) GrantAtlasInfluence(ctx context.Context, username string, boost float64, ttl time.Duration) error {
	if boost <= 0 || boost > 1 {
		return fmt.Errorf("foil chance boost must be in (0, 1], got %v", boost)
	}
	if _, err := s.EnsureUser(ctx, username); err != nil {
		return err
	}
	return s.store.Buffs.Grant(ctx, model.Buff{
		Username:        username,
		Type:            model.BuffAtlasInfluence,
		FoilChanceBoost: boost,
		ExpiresAt:       s.opts.Now().Add(ttl),
	})
}

// strategy builds the selection strategy from the forced outcome setting.
func (s *AltarService) strategy() (outcome.Strategy, error) {
	setting := outcome.SettingRandom
	if s.settings != nil {
		v, err := settings.ForcedOutcome(s.settings)
		if err != nil {
			return nil, err
		}
		setting = v
	}
	return outcome.StrategyFor(setting, s.opts.Policy, s.opts.RNG)
}

// Roll decides and applies a vaal on one owned card. The decision, the orb
// spent and the card changes are written in one transaction. Rolling again
// with a settled operation id replays the stored decision.
func (s *AltarService) Roll(ctx context.Context, req outcome.RollRequest) (*outcome.Decision, error) {
	if req.Username == "" {
		return nil, ErrInvalidUser
	}
	card, err := s.catalogue.MustGet(req.CardID)
	if err != nil {
		return nil, ErrCardNotFound
	}
	card.Foil = req.Foil

	strategy, err := s.strategy()
	if err != nil {
		return nil, fmt.Errorf("failed to build strategy: %w", err)
	}
	engine := s.engine.WithStrategy(strategy)

	var decision *outcome.Decision
	err = s.userLock.WithLockContext(ctx, req.Username, s.opts.LockTimeout, func() error {
		prev, ok, err := s.replay(ctx, req.OperationID, req.Username, opKindRoll)
		if err != nil {
			return err
		}
		if ok {
			decision = &outcome.Decision{}
			return json.Unmarshal(prev, decision)
		}

		return s.store.InTx(ctx, func(r *repository.Repositories) error {
			user, err := r.Users.GetForUpdate(ctx, req.Username)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					return ErrInvalidUser
				}
				return err
			}
			entry, err := r.Collections.GetForUpdate(ctx, req.Username, card.ID)
			if err != nil {
				return err
			}
			if err := checkRoll(user.VaalOrbs, entry, req.Foil); err != nil {
				return err
			}

			boost := 0.0
			buff, err := r.Buffs.Active(ctx, req.Username, model.BuffAtlasInfluence, s.opts.Now())
			if err != nil {
				return err
			}
			if buff != nil {
				boost = buff.FoilChanceBoost
			}

			d, err := engine.Roll(card, boost)
			if err != nil {
				return err
			}
			if err := applyUpdates(ctx, r, req.Username, d.Updates); err != nil {
				return err
			}
			user, err = r.Users.AddOrbs(ctx, req.Username, d.CurrencyDelta)
			if err != nil {
				if errors.Is(err, repository.ErrInsufficientOrbs) {
					return ErrInsufficientOrbs
				}
				return err
			}
			d.VaalOrbs = &user.VaalOrbs
			if d.BoostConsumed {
				if _, err := r.Buffs.Consume(ctx, req.Username, model.BuffAtlasInfluence); err != nil {
					return err
				}
			}

			kind := string(d.Kind)
			desc := describe(d)
			if _, err := r.Activity.Create(ctx, req.Username, model.ActivityVaalOutcome, desc, &card.ID, &kind); err != nil {
				return err
			}
			if err := saveOperation(ctx, r, req.OperationID, req.Username, opKindRoll, d); err != nil {
				return err
			}
			decision = &d
			return nil
		})
	})
	if err != nil {
		log.Warn().Err(err).
			Str("username", req.Username).
			Str("card_id", req.CardID).
			Str("operation_id", req.OperationID).
			Msg("Vaal roll rejected")
		return nil, err
	}

	log.Info().
		Str("username", req.Username).
		Str("card_id", req.CardID).
		Bool("foil", req.Foil).
		Str("outcome", string(decision.Kind)).
		Str("strategy", strategy.Name()).
		Msg("Vaal outcome settled")
	return decision, nil
}

// Commit settles an operation decided by the client. Every card's counts
// after the change must match what the client expects; a mismatch means
// the client worked on stale state and the whole commit is refused.
func (s *AltarService) Commit(ctx context.Context, req syncqueue.CommitRequest) error {
	if req.Username == "" {
		return ErrInvalidUser
	}
	for _, cc := range req.Cards {
		if _, ok := s.catalogue.Get(cc.CardID); !ok {
			return ErrCardNotFound
		}
	}
	if _, err := s.EnsureUser(ctx, req.Username); err != nil {
		return err
	}

	err := s.userLock.WithLockContext(ctx, req.Username, s.opts.LockTimeout, func() error {
		if _, ok, err := s.replay(ctx, req.OperationID, req.Username, opKindCommit); err != nil || ok {
			return err
		}

		return s.store.InTx(ctx, func(r *repository.Repositories) error {
			user, err := r.Users.GetForUpdate(ctx, req.Username)
			if err != nil {
				return err
			}
			if user.VaalOrbs+req.CurrencyDelta < 0 {
				return ErrInsufficientOrbs
			}

			for _, cc := range req.Cards {
				entry, err := r.Collections.GetForUpdate(ctx, req.Username, cc.CardID)
				if err != nil {
					return err
				}
				if err := checkCommit(entry, cc); err != nil {
					return err
				}
				if _, err := r.Collections.AddCounts(ctx, req.Username, cc.CardID, cc.NormalDelta, cc.FoilDelta); err != nil {
					return err
				}
			}
			if req.CurrencyDelta != 0 {
				if _, err := r.Users.AddOrbs(ctx, req.Username, req.CurrencyDelta); err != nil {
					if errors.Is(err, repository.ErrInsufficientOrbs) {
						return ErrInsufficientOrbs
					}
					return err
				}
			}

			var outcomePtr *string
			if req.OutcomeKind != "" {
				outcomePtr = &req.OutcomeKind
			}
			desc := fmt.Sprintf("Synced %d card change(s), %+d vaal orbs", len(req.Cards), req.CurrencyDelta)
			if _, err := r.Activity.Create(ctx, req.Username, model.ActivityCommit, desc, nil, outcomePtr); err != nil {
				return err
			}
			return saveOperation(ctx, r, req.OperationID, req.Username, opKindCommit, req)
		})
	})
	if err != nil {
		log.Warn().Err(err).
			Str("username", req.Username).
			Str("operation_id", req.OperationID).
			Msg("Commit rejected")
		return err
	}

	log.Debug().
		Str("username", req.Username).
		Str("operation_id", req.OperationID).
		Int("cards", len(req.Cards)).
		Msg("Commit settled")
	return nil
}

// replay looks up a settled operation. A known id owned by another user or
// settled by another kind of request is a conflict.
func (s *AltarService) replay(ctx context.Context, operationID, username, kind string) (json.RawMessage, bool, error) {
	if operationID == "" {
		return nil, false, nil
	}
	op, err := s.store.Operations.Get(ctx, operationID)
	if err != nil {
		if errors.Is(err, repository.ErrOperationNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if op.Username != username || op.Kind != kind {
		return nil, false, ErrConflict
	}
	log.Debug().Str("operation_id", operationID).Str("kind", kind).Msg("Replaying settled operation")
	return op.Result, true, nil
}

func saveOperation(ctx context.Context, r *repository.Repositories, operationID, username, kind string, result any) error {
	if operationID == "" {
		return nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode operation result: %w", err)
	}
	saved, err := r.Operations.Save(ctx, repository.ProcessedOperation{
		OperationID: operationID,
		Username:    username,
		Kind:        kind,
		Result:      b,
	})
	if err != nil {
		return err
	}
	if !saved {
		return ErrConflict
	}
	return nil
}

func applyUpdates(ctx context.Context, r *repository.Repositories, username string, updates map[string]model.CardDelta) error {
	for _, id := range sortedIDs(updates) {
		cd := updates[id]
		if _, err := r.Collections.AddCounts(ctx, username, id, cd.NormalDelta, cd.FoilDelta); err != nil {
			if errors.Is(err, repository.ErrNegativeCount) {
				return ErrConflict
			}
			return err
		}
	}
	return nil
}
