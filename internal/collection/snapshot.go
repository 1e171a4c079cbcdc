package collection

import "sort"

type snapshotEntry struct {
	entry   Entry
	present bool
}

// Snapshot is an immutable capture of the balance and some entries, taken
// before an optimistic change so the change can be undone exactly.
type Snapshot struct {
	currency int64
	entries  map[string]snapshotEntry
}

// Currency returns the captured balance.
func (s Snapshot) Currency() int64 { return s.currency }

// Entry returns the captured entry for id. ok is false when the entry did
// not exist or was not captured.
func (s Snapshot) Entry(id string) (Entry, bool) {
	se, ok := s.entries[id]
	if !ok || !se.present {
		return Entry{}, false
	}
	return copyEntry(se.entry), true
}

// IDs returns the captured template ids in sorted order.
func (s Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
