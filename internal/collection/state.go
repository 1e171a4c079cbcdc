// Package collection holds a user's in-memory card collection and vaal orb
// balance. All writes are atomic: observers never see a half-applied change.
package collection

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

// Collection errors.
var (
	ErrNegativeCount    = errors.New("count would go negative")
	ErrNegativeCurrency = errors.New("insufficient vaal orbs")
	ErrInvalidDelta     = errors.New("invalid delta")
)

// Entry holds the owned counts of one template.
type Entry struct {
	Normal int
	Foil   int
	Card   *model.Card
}

// Total returns the number of owned copies.
func (e Entry) Total() int { return e.Normal + e.Foil }

// Delta is a signed change to the balance and to any number of templates.
type Delta struct {
	Currency int64
	Cards    map[string]model.CardDelta
}

// IDs returns the touched template ids in sorted order.
func (d Delta) IDs() []string {
	ids := make([]string, 0, len(d.Cards))
	for id := range d.Cards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks the delta's shape without looking at any state.
func (d Delta) Validate() error {
	for id := range d.Cards {
		if id == "" {
			return fmt.Errorf("%w: empty card id", ErrInvalidDelta)
		}
	}
	return nil
}

// View is a detached copy of the state.
type View struct {
	Currency int64
	Entries  map[string]Entry
}

// Entry returns the entry for id, or a zero entry.
func (v View) Entry(id string) Entry { return v.Entries[id] }

// Listener receives a copy of the state after every change.
type Listener func(View)

// State is a user's collection. It is safe for concurrent reads; writes are
// expected from a single owner (the sync queue).
type State struct {
	mu        sync.RWMutex
	currency  int64
	entries   map[string]Entry
	listeners map[int]Listener
	nextID    int
}

// New creates a state holding the given balance and entries.
func New(currency int64, entries map[string]Entry) *State {
	s := &State{
		currency:  currency,
		entries:   make(map[string]Entry, len(entries)),
		listeners: make(map[int]Listener),
	}
	for id, e := range entries {
		s.entries[id] = copyEntry(e)
	}
	return s
}

// FromEntries builds a state from repository rows.
func FromEntries(currency int64, rows []model.CollectionEntry) *State {
	entries := make(map[string]Entry, len(rows))
	for _, r := range rows {
		entries[r.CardID] = Entry{Normal: r.NormalCount, Foil: r.FoilCount, Card: r.Card}
	}
	return New(currency, entries)
}

// Currency returns the current vaal orb balance.
func (s *State) Currency() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currency
}

// Entry returns the entry for id and whether it exists.
func (s *State) Entry(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return copyEntry(e), ok
}

// View returns a detached copy of the whole state.
func (s *State) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked()
}

func (s *State) viewLocked() View {
	v := View{Currency: s.currency, Entries: make(map[string]Entry, len(s.entries))}
	for id, e := range s.entries {
		v.Entries[id] = copyEntry(e)
	}
	return v
}

// Check reports whether d can be applied without any count or the balance
// going below zero.
func (s *State) Check(d Delta) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkLocked(d)
}

func (s *State) checkLocked(d Delta) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if s.currency+d.Currency < 0 {
		return fmt.Errorf("%w: have %d, change %d", ErrNegativeCurrency, s.currency, d.Currency)
	}
	for _, id := range d.IDs() {
		cd := d.Cards[id]
		e := s.entries[id]
		if e.Normal+cd.NormalDelta < 0 {
			return fmt.Errorf("%w: %s normal %d%+d", ErrNegativeCount, id, e.Normal, cd.NormalDelta)
		}
		if e.Foil+cd.FoilDelta < 0 {
			return fmt.Errorf("%w: %s foil %d%+d", ErrNegativeCount, id, e.Foil, cd.FoilDelta)
		}
	}
	return nil
}

// Apply checks and applies d in one step.
func (s *State) Apply(d Delta) error {
	s.mu.Lock()
	if err := s.checkLocked(d); err != nil {
		s.mu.Unlock()
		return err
	}
	s.applyLocked(d)
	v := s.viewLocked()
	s.mu.Unlock()

	s.notify(v)
	return nil
}

// ApplyWithSnapshot captures the touched entries and the balance, then
// applies d, all under one lock. Nothing is captured when d is rejected.
func (s *State) ApplyWithSnapshot(d Delta) (Snapshot, error) {
	s.mu.Lock()
	if err := s.checkLocked(d); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	snap := s.snapshotLocked(d.IDs())
	s.applyLocked(d)
	v := s.viewLocked()
	s.mu.Unlock()

	s.notify(v)
	return snap, nil
}

func (s *State) applyLocked(d Delta) {
	s.currency += d.Currency
	for id, cd := range d.Cards {
		e := s.entries[id]
		e.Normal += cd.NormalDelta
		e.Foil += cd.FoilDelta
		if e.Card == nil && cd.Card != nil {
			c := *cd.Card
			e.Card = &c
		}
		s.entries[id] = e
	}
}

// Snapshot captures the balance and the entries for ids.
func (s *State) Snapshot(ids []string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(ids)
}

func (s *State) snapshotLocked(ids []string) Snapshot {
	snap := Snapshot{
		currency: s.currency,
		entries:  make(map[string]snapshotEntry, len(ids)),
	}
	for _, id := range ids {
		e, ok := s.entries[id]
		snap.entries[id] = snapshotEntry{entry: copyEntry(e), present: ok}
	}
	return snap
}

// Rollback restores the balance and every entry captured in snap, removing
// entries that did not exist at capture time. Other entries are untouched.
func (s *State) Rollback(snap Snapshot) {
	s.mu.Lock()
	s.currency = snap.currency
	for id, se := range snap.entries {
		if !se.present {
			delete(s.entries, id)
			continue
		}
		s.entries[id] = copyEntry(se.entry)
	}
	v := s.viewLocked()
	s.mu.Unlock()

	s.notify(v)
}

// Replace swaps the whole state, e.g. after loading it from the server.
func (s *State) Replace(v View) {
	s.mu.Lock()
	s.currency = v.Currency
	s.entries = make(map[string]Entry, len(v.Entries))
	for id, e := range v.Entries {
		s.entries[id] = copyEntry(e)
	}
	out := s.viewLocked()
	s.mu.Unlock()

	s.notify(out)
}

// Subscribe registers fn for change notifications and returns a function
// removing it. Listeners run on the writer's goroutine after the lock is
// released.
func (s *State) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *State) notify(v View) {
	s.mu.RLock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

func copyEntry(e Entry) Entry {
	if e.Card != nil {
		c := *e.Card
		e.Card = &c
	}
	return e
}
