// Property-based tests for the altar's pure settlement rules.
package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/outcome"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/syncqueue"
)

// TestRollEligibilityProperty tests that a vaal is allowed exactly when the
// user holds an orb and at least one copy of the card in the rolled variant.
func TestRollEligibilityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		orbs := rapid.Int64Range(0, 5).Draw(t, "orbs")
		normal := rapid.IntRange(0, 3).Draw(t, "normal")
		foil := rapid.IntRange(0, 3).Draw(t, "foil")
		rollFoil := rapid.Bool().Draw(t, "rollFoil")

		err := checkRoll(orbs, model.CollectionEntry{NormalCount: normal, FoilCount: foil}, rollFoil)

		owned := normal
		if rollFoil {
			owned = foil
		}
		switch {
		case orbs < outcome.OrbCost:
			if !errors.Is(err, ErrInsufficientOrbs) {
				t.Fatalf("orbs=%d: expected ErrInsufficientOrbs, got %v", orbs, err)
			}
		case owned < 1:
			if !errors.Is(err, ErrCardNotFound) {
				t.Fatalf("owned=%d: expected ErrCardNotFound, got %v", owned, err)
			}
		default:
			if err != nil {
				t.Fatalf("expected roll to be allowed, got %v", err)
			}
		}
	})
}

// TestCommitExpectationProperty tests that a commit card is accepted only
// when its expected counts equal the server counts plus its deltas and
// those counts are non-negative.
func TestCommitExpectationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		entry := model.CollectionEntry{
			CardID:      "headhunter",
			NormalCount: rapid.IntRange(0, 5).Draw(t, "normal"),
			FoilCount:   rapid.IntRange(0, 5).Draw(t, "foil"),
		}
		cc := syncqueue.CardCommit{
			CardID:      "headhunter",
			NormalDelta: rapid.IntRange(-3, 3).Draw(t, "normalDelta"),
			FoilDelta:   rapid.IntRange(-3, 3).Draw(t, "foilDelta"),
		}
		drift := rapid.IntRange(-1, 1).Draw(t, "drift")
		cc.NormalCount = entry.NormalCount + cc.NormalDelta + drift
		cc.FoilCount = entry.FoilCount + cc.FoilDelta

		err := checkCommit(entry, cc)

		valid := drift == 0 &&
			entry.NormalCount+cc.NormalDelta >= 0 &&
			entry.FoilCount+cc.FoilDelta >= 0
		if valid && err != nil {
			t.Fatalf("expected commit to pass, got %v", err)
		}
		if !valid && !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{ErrInsufficientOrbs, CodeInsufficientOrbs},
		{ErrCardNotFound, CodeCardNotFound},
		{ErrInvalidUser, CodeInvalidUser},
		{checkCommit(model.CollectionEntry{}, syncqueue.CardCommit{NormalDelta: -1}), CodeConflict},
		{errors.New("db down"), CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, ErrorCode(tt.err), tt.err.Error())
	}
}

func TestDescribe(t *testing.T) {
	hh := model.Card{ID: "headhunter", Name: "Headhunter"}
	mb := model.Card{ID: "mageblood", Name: "Mageblood"}

	assert.Equal(t, "Vaaled Headhunter: nothing", describe(outcome.Decision{Kind: outcome.KindNothing, Card: hh}))
	assert.Equal(t, "Vaaled Headhunter: transform into Mageblood",
		describe(outcome.Decision{Kind: outcome.KindTransform, Card: hh, ResultCard: &mb}))

	hh.Foil = true
	assert.Equal(t, "Vaaled foil Headhunter: lose_foil", describe(outcome.Decision{Kind: outcome.KindLoseFoil, Card: hh}))
}
