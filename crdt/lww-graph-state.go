package crdt

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
)

// Structs

// State is the part of a graph that replicas exchange and
// persist: the vertex and the edge ledger. The adjacency
// index is derived from it on the receiving side.
type State[V cmp.Ordered, T cmp.Ordered] struct {
	Vertices Ledger[V, T]
	Edges    Ledger[Edge[V], T]
}

// vertexEntry is one marshalled timestamp of a vertex.
type vertexEntry[V cmp.Ordered, T cmp.Ordered] struct {
	Vertex    V `json:"v"`
	Timestamp T `json:"t"`
}

// edgeEntry is one marshalled timestamp of an edge.
type edgeEntry[V cmp.Ordered, T cmp.Ordered] struct {
	U         V `json:"u"`
	W         V `json:"w"`
	Timestamp T `json:"t"`
}

// wireState is the JSON layout of a State: four lists of
// (key, timestamp) pairs, sorted by key.
type wireState[V cmp.Ordered, T cmp.Ordered] struct {
	VertexAdds    []vertexEntry[V, T] `json:"vertexAdds"`
	VertexRemoves []vertexEntry[V, T] `json:"vertexRemoves"`
	EdgeAdds      []edgeEntry[V, T]   `json:"edgeAdds"`
	EdgeRemoves   []edgeEntry[V, T]   `json:"edgeRemoves"`
}

// Functions

// NewState returns an empty initialized state.
func NewState[V cmp.Ordered, T cmp.Ordered]() *State[V, T] {

	return &State[V, T]{
		Vertices: NewLedger[V, T](),
		Edges:    NewLedger[Edge[V], T](),
	}
}

// Validate checks that s can be joined into a graph:
// all maps exist, no key or timestamp is NaN, and every
// edge is canonical and connects two distinct vertices.
func (s *State[V, T]) Validate() error {

	if s == nil {
		return ErrMalformedState
	}

	if (s.Vertices.Adds == nil) || (s.Vertices.Removes == nil) ||
		(s.Edges.Adds == nil) || (s.Edges.Removes == nil) {
		return fmt.Errorf("%w: missing ledger map", ErrMalformedState)
	}

	for _, m := range []Timestamps[V, T]{s.Vertices.Adds, s.Vertices.Removes} {
		for v, t := range m {
			if invalid(v) || invalid(t) {
				return fmt.Errorf("%w: invalid vertex entry %v at %v", ErrMalformedState, v, t)
			}
		}
	}

	for _, m := range []Timestamps[Edge[V], T]{s.Edges.Adds, s.Edges.Removes} {
		for e, t := range m {
			if invalid(e.U) || invalid(e.W) || (e.U >= e.W) || invalid(t) {
				return fmt.Errorf("%w: invalid edge entry (%v, %v) at %v", ErrMalformedState, e.U, e.W, t)
			}
		}
	}

	return nil
}

// Join merges other into s. Both states have to be valid.
func (s *State[V, T]) Join(other *State[V, T]) {
	s.Vertices.Join(other.Vertices)
	s.Edges.Join(other.Edges)
}

// MaxTimestamp returns the latest timestamp mentioned
// anywhere in s and false if s is empty.
func (s *State[V, T]) MaxTimestamp() (T, bool) {

	vMax, vFound := s.Vertices.Max()
	eMax, eFound := s.Edges.Max()

	switch {
	case vFound && eFound:
		return max(vMax, eMax), true
	case eFound:
		return eMax, true
	default:
		return vMax, vFound
	}
}

// Equal reports whether s and other hold identical ledgers.
func (s *State[V, T]) Equal(other *State[V, T]) bool {

	return equalTimestamps(s.Vertices.Adds, other.Vertices.Adds) &&
		equalTimestamps(s.Vertices.Removes, other.Vertices.Removes) &&
		equalTimestamps(s.Edges.Adds, other.Edges.Adds) &&
		equalTimestamps(s.Edges.Removes, other.Edges.Removes)
}

func equalTimestamps[K comparable, T cmp.Ordered](a Timestamps[K, T], b Timestamps[K, T]) bool {

	if len(a) != len(b) {
		return false
	}

	for k, t := range a {
		if o, found := b[k]; !found || (o != t) {
			return false
		}
	}

	return true
}

// MarshalJSON turns s into its sorted wire representation.
func (s *State[V, T]) MarshalJSON() ([]byte, error) {

	w := wireState[V, T]{
		VertexAdds:    vertexEntries(s.Vertices.Adds),
		VertexRemoves: vertexEntries(s.Vertices.Removes),
		EdgeAdds:      edgeEntries(s.Edges.Adds),
		EdgeRemoves:   edgeEntries(s.Edges.Removes),
	}

	return json.Marshal(w)
}

// UnmarshalJSON parses the wire representation of a state.
// Edges are canonicalized, self loops are rejected.
func (s *State[V, T]) UnmarshalJSON(data []byte) error {

	var w wireState[V, T]
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	parsed := NewState[V, T]()

	for _, entry := range w.VertexAdds {
		parsed.Vertices.Adds.Observe(entry.Vertex, entry.Timestamp)
	}

	for _, entry := range w.VertexRemoves {
		parsed.Vertices.Removes.Observe(entry.Vertex, entry.Timestamp)
	}

	for _, entry := range w.EdgeAdds {

		e, err := NewEdge(entry.U, entry.W)
		if err != nil {
			return fmt.Errorf("%w: edge (%v, %v): %v", ErrMalformedState, entry.U, entry.W, err)
		}

		parsed.Edges.Adds.Observe(e, entry.Timestamp)
	}

	for _, entry := range w.EdgeRemoves {

		e, err := NewEdge(entry.U, entry.W)
		if err != nil {
			return fmt.Errorf("%w: edge (%v, %v): %v", ErrMalformedState, entry.U, entry.W, err)
		}

		parsed.Edges.Removes.Observe(e, entry.Timestamp)
	}

	*s = *parsed

	return nil
}

func vertexEntries[V cmp.Ordered, T cmp.Ordered](m Timestamps[V, T]) []vertexEntry[V, T] {

	entries := make([]vertexEntry[V, T], 0, len(m))
	for v, t := range m {
		entries = append(entries, vertexEntry[V, T]{Vertex: v, Timestamp: t})
	}

	slices.SortFunc(entries, func(a vertexEntry[V, T], b vertexEntry[V, T]) int {
		return cmp.Compare(a.Vertex, b.Vertex)
	})

	return entries
}

func edgeEntries[V cmp.Ordered, T cmp.Ordered](m Timestamps[Edge[V], T]) []edgeEntry[V, T] {

	entries := make([]edgeEntry[V, T], 0, len(m))
	for e, t := range m {
		entries = append(entries, edgeEntry[V, T]{U: e.U, W: e.W, Timestamp: t})
	}

	slices.SortFunc(entries, func(a edgeEntry[V, T], b edgeEntry[V, T]) int {
		return compareEdges(Edge[V]{U: a.U, W: a.W}, Edge[V]{U: b.U, W: b.W})
	})

	return entries
}
