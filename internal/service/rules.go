package service

import (
	"fmt"
	"sort"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/outcome"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/syncqueue"
)

// checkRoll reports whether a user holding orbs and entry may vaal one copy
// of the card in the given variant.
func checkRoll(orbs int64, entry model.CollectionEntry, foil bool) error {
	if orbs < outcome.OrbCost {
		return ErrInsufficientOrbs
	}
	owned := entry.NormalCount
	if foil {
		owned = entry.FoilCount
	}
	if owned < 1 {
		return ErrCardNotFound
	}
	return nil
}

// checkCommit verifies that applying cc to entry keeps both counts
// non-negative and lands on the counts the client expects.
func checkCommit(entry model.CollectionEntry, cc syncqueue.CardCommit) error {
	normal := entry.NormalCount + cc.NormalDelta
	foil := entry.FoilCount + cc.FoilDelta
	if normal < 0 || foil < 0 {
		return fmt.Errorf("%w: %s would hold %d normal and %d foil", ErrConflict, cc.CardID, normal, foil)
	}
	if normal != cc.NormalCount || foil != cc.FoilCount {
		return fmt.Errorf("%w: %s expected %d/%d, server has %d/%d",
			ErrConflict, cc.CardID, cc.NormalCount, cc.FoilCount, normal, foil)
	}
	return nil
}

// describe renders a decision for the activity log.
func describe(d outcome.Decision) string {
	name := d.Card.Name
	if name == "" {
		name = d.Card.ID
	}
	if d.Card.Foil {
		name = "foil " + name
	}
	switch d.Kind {
	case outcome.KindTransform, outcome.KindSynthesised:
		if d.ResultCard != nil {
			return fmt.Sprintf("Vaaled %s: %s into %s", name, d.Kind, d.ResultCard.Name)
		}
	}
	return fmt.Sprintf("Vaaled %s: %s", name, d.Kind)
}

func sortedIDs(updates map[string]model.CardDelta) []string {
	ids := make([]string, 0, len(updates))
	for id := range updates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
