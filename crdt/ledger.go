package crdt

import (
	"cmp"
)

// Structs

// Timestamps maps each element to the latest timestamp
// observed for it. It acts as a set of last-writer-wins
// registers that only ever move forward.
type Timestamps[K comparable, T cmp.Ordered] map[K]T

// Ledger bundles the add and remove timestamps of one
// element kind (vertices or edges) and derives presence
// from them.
type Ledger[K comparable, T cmp.Ordered] struct {
	Adds    Timestamps[K, T]
	Removes Timestamps[K, T]
}

// Functions

// Get returns the timestamp stored for k and
// whether there is one at all.
func (m Timestamps[K, T]) Get(k K) (T, bool) {
	t, ok := m[k]
	return t, ok
}

// Observe records t for k unless a later timestamp is
// already stored. It reports whether the map changed.
func (m Timestamps[K, T]) Observe(k K, t T) bool {

	old, found := m[k]
	if found && (old >= t) {
		return false
	}

	m[k] = t

	return true
}

// Join merges other into m by taking the per-key maximum.
// An absent key counts as smaller than any timestamp.
func (m Timestamps[K, T]) Join(other Timestamps[K, T]) {

	for k, t := range other {
		m.Observe(k, t)
	}
}

// Clone returns a deep copy of m.
func (m Timestamps[K, T]) Clone() Timestamps[K, T] {

	c := make(Timestamps[K, T], len(m))
	for k, t := range m {
		c[k] = t
	}

	return c
}

// NewLedger returns an empty initialized ledger.
func NewLedger[K comparable, T cmp.Ordered]() Ledger[K, T] {

	return Ledger[K, T]{
		Adds:    make(Timestamps[K, T]),
		Removes: make(Timestamps[K, T]),
	}
}

// Lookup decides whether k is present judged by its own
// timestamps only: it has to be added, and a remove only
// wins when it is strictly later than the add.
func (l Ledger[K, T]) Lookup(k K) bool {

	added, found := l.Adds[k]
	if !found {
		return false
	}

	removed, found := l.Removes[k]
	if !found {
		return true
	}

	return removed <= added
}

// Join merges both maps of other into l.
func (l Ledger[K, T]) Join(other Ledger[K, T]) {
	l.Adds.Join(other.Adds)
	l.Removes.Join(other.Removes)
}

// Clone returns a deep copy of l.
func (l Ledger[K, T]) Clone() Ledger[K, T] {

	return Ledger[K, T]{
		Adds:    l.Adds.Clone(),
		Removes: l.Removes.Clone(),
	}
}

// Max returns the largest timestamp stored in either map
// and false when the ledger is empty.
func (l Ledger[K, T]) Max() (T, bool) {

	var latest T
	found := false

	for _, m := range []Timestamps[K, T]{l.Adds, l.Removes} {
		for _, t := range m {
			if !found || (t > latest) {
				latest = t
				found = true
			}
		}
	}

	return latest, found
}
