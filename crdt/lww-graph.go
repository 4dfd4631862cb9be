package crdt

import (
	"cmp"
	"errors"
	"slices"
	"sync"
)

// Errors

var (
	// ErrInvalidKey is returned when a vertex or edge cannot
	// serve as a map key, e.g. a NaN vertex or a self loop.
	ErrInvalidKey = errors.New("invalid element identifier")

	// ErrInvalidTimestamp is returned for timestamps that do
	// not compare consistently, i.e. NaN.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrMalformedState is returned by merges of remote
	// states that are nil or break the ledger invariants.
	ErrMalformedState = errors.New("malformed remote state")
)

// Structs

// Edge is the canonical form of an undirected edge.
// U is always the smaller of both endpoints.
type Edge[V cmp.Ordered] struct {
	U V
	W V
}

// Graph is a state-based last-writer-wins element graph.
// It consists of one ledger for vertices, one for edges,
// and the adjacency index derived from both. incident
// lists every edge ever added per endpoint, so that a
// re-added vertex finds its edges without a ledger scan.
type Graph[V cmp.Ordered, T cmp.Ordered] struct {
	lock      *sync.RWMutex
	vertices  Ledger[V, T]
	edges     Ledger[Edge[V], T]
	adjacency map[V][]V
	incident  map[V][]Edge[V]
}

// Functions

// NewEdge returns the canonical edge between v1 and v2.
func NewEdge[V cmp.Ordered](v1 V, v2 V) (Edge[V], error) {

	if invalid(v1) || invalid(v2) || (v1 == v2) {
		return Edge[V]{}, ErrInvalidKey
	}

	if v2 < v1 {
		v1, v2 = v2, v1
	}

	return Edge[V]{U: v1, W: v2}, nil
}

// Other returns the endpoint of e that is not v.
func (e Edge[V]) Other(v V) V {

	if e.U == v {
		return e.W
	}

	return e.U
}

// Has reports whether v is one of the endpoints of e.
func (e Edge[V]) Has(v V) bool {
	return (e.U == v) || (e.W == v)
}

// invalid catches values that are not equal to themselves.
// Those can be inserted into a map but never be found again.
func invalid[X cmp.Ordered](x X) bool {
	return x != x
}

// New returns an empty initialized LWW graph.
func New[V cmp.Ordered, T cmp.Ordered]() *Graph[V, T] {

	return &Graph[V, T]{
		lock:      new(sync.RWMutex),
		vertices:  NewLedger[V, T](),
		edges:     NewLedger[Edge[V], T](),
		adjacency: make(map[V][]V),
		incident:  make(map[V][]Edge[V]),
	}
}

// vertexExists expects the caller to hold the lock.
func (g *Graph[V, T]) vertexExists(v V) bool {
	return g.vertices.Lookup(v)
}

// edgeExists expects the caller to hold the lock.
func (g *Graph[V, T]) edgeExists(e Edge[V]) bool {
	return g.vertexExists(e.U) && g.vertexExists(e.W) && g.edges.Lookup(e)
}

// VertexExists reports whether v is currently present.
func (g *Graph[V, T]) VertexExists(v V) (bool, error) {

	if invalid(v) {
		return false, ErrInvalidKey
	}

	g.lock.RLock()
	defer g.lock.RUnlock()

	return g.vertexExists(v), nil
}

// EdgeExists reports whether the edge between v1 and v2
// is present. An edge never outlives one of its endpoints.
func (g *Graph[V, T]) EdgeExists(v1 V, v2 V) (bool, error) {

	e, err := NewEdge(v1, v2)
	if err != nil {
		return false, err
	}

	g.lock.RLock()
	defer g.lock.RUnlock()

	return g.edgeExists(e), nil
}

// AddVertex adds v at timestamp t. It returns false if v
// is already present or if a remove later than t has been
// observed for v.
func (g *Graph[V, T]) AddVertex(v V, t T) (bool, error) {

	if invalid(v) {
		return false, ErrInvalidKey
	}

	if invalid(t) {
		return false, ErrInvalidTimestamp
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	if g.vertexExists(v) {
		return false, nil
	}

	// A remove from the future supersedes this add.
	removed, found := g.vertices.Removes.Get(v)
	if found && (removed > t) {
		return false, nil
	}

	// Any tombstone stays, it is not later than t.
	g.vertices.Adds.Observe(v, t)

	g.linkVertex(v)

	return true, nil
}

// RemoveVertex removes v at timestamp t. If v is not present,
// t still strengthens v's tombstone so that earlier adds
// arriving later on are rejected.
func (g *Graph[V, T]) RemoveVertex(v V, t T) (bool, error) {

	if invalid(v) {
		return false, ErrInvalidKey
	}

	if invalid(t) {
		return false, ErrInvalidTimestamp
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	if !g.vertexExists(v) {
		g.vertices.Removes.Observe(v, t)
		return false, nil
	}

	// Equal or newer add wins over this remove.
	added, _ := g.vertices.Adds.Get(v)
	if added >= t {
		return false, nil
	}

	g.vertices.Removes.Observe(v, t)

	// Incident edges vanish from the index, their
	// own timestamps in the edge ledger stay untouched.
	for _, u := range g.adjacency[v] {
		g.adjacency[u] = without(g.adjacency[u], v)
	}
	delete(g.adjacency, v)

	return true, nil
}

// AddEdge adds the edge between v1 and v2 at timestamp t.
// Both endpoints need to be present, otherwise the add is
// rejected and not recorded at all.
func (g *Graph[V, T]) AddEdge(v1 V, v2 V, t T) (bool, error) {

	e, err := NewEdge(v1, v2)
	if err != nil {
		return false, err
	}

	if invalid(t) {
		return false, ErrInvalidTimestamp
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	if !g.vertexExists(e.U) || !g.vertexExists(e.W) {
		return false, nil
	}

	if g.edges.Lookup(e) {
		return false, nil
	}

	removed, found := g.edges.Removes.Get(e)
	if found && (removed > t) {
		return false, nil
	}

	if _, known := g.edges.Adds[e]; !known {
		g.incident[e.U] = append(g.incident[e.U], e)
		g.incident[e.W] = append(g.incident[e.W], e)
	}

	g.edges.Adds.Observe(e, t)

	g.adjacency[e.U] = append(g.adjacency[e.U], e.W)
	g.adjacency[e.W] = append(g.adjacency[e.W], e.U)

	return true, nil
}

// RemoveEdge removes the edge between v1 and v2 at
// timestamp t. Like RemoveVertex, a remove of an absent
// edge is recorded as tombstone and reported as false.
func (g *Graph[V, T]) RemoveEdge(v1 V, v2 V, t T) (bool, error) {

	e, err := NewEdge(v1, v2)
	if err != nil {
		return false, err
	}

	if invalid(t) {
		return false, ErrInvalidTimestamp
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	if !g.edgeExists(e) {
		g.edges.Removes.Observe(e, t)
		return false, nil
	}

	added, _ := g.edges.Adds.Get(e)
	if added >= t {
		return false, nil
	}

	g.edges.Removes.Observe(e, t)

	g.adjacency[e.U] = without(g.adjacency[e.U], e.W)
	g.adjacency[e.W] = without(g.adjacency[e.W], e.U)

	return true, nil
}

// Neighbors returns all vertices currently connected to v.
// An absent vertex has no neighbors, which is no error.
func (g *Graph[V, T]) Neighbors(v V) ([]V, error) {

	if invalid(v) {
		return nil, ErrInvalidKey
	}

	g.lock.RLock()
	defer g.lock.RUnlock()

	row := g.adjacency[v]
	neighbors := make([]V, len(row))
	copy(neighbors, row)

	return neighbors, nil
}

// Vertices returns all present vertices in ascending order.
func (g *Graph[V, T]) Vertices() []V {

	g.lock.RLock()
	defer g.lock.RUnlock()

	vertices := make([]V, 0, len(g.adjacency))
	for v := range g.adjacency {
		vertices = append(vertices, v)
	}
	slices.Sort(vertices)

	return vertices
}

// Edges returns all present edges ordered by their endpoints.
func (g *Graph[V, T]) Edges() []Edge[V] {

	g.lock.RLock()
	defer g.lock.RUnlock()

	edges := make([]Edge[V], 0)
	for e := range g.edges.Adds {
		if g.edgeExists(e) {
			edges = append(edges, e)
		}
	}
	slices.SortFunc(edges, compareEdges[V])

	return edges
}

// Merge joins the state of other into g and returns g,
// so that merges can be chained. other is left untouched.
func (g *Graph[V, T]) Merge(other *Graph[V, T]) (*Graph[V, T], error) {

	if other == nil {
		return g, ErrMalformedState
	}

	// Snapshot first so that g.Merge(g) does not deadlock.
	if err := g.MergeState(other.State()); err != nil {
		return g, err
	}

	return g, nil
}

// MergeState joins a remote snapshot into g. The snapshot
// is validated before g is touched, a malformed one leaves
// g unmodified.
func (g *Graph[V, T]) MergeState(s *State[V, T]) error {

	if err := s.Validate(); err != nil {
		return err
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	g.vertices.Join(s.Vertices)
	g.edges.Join(s.Edges)

	g.rebuild()

	return nil
}

// State returns a deep copy of the four ledgers of g.
func (g *Graph[V, T]) State() *State[V, T] {

	g.lock.RLock()
	defer g.lock.RUnlock()

	return &State[V, T]{
		Vertices: g.vertices.Clone(),
		Edges:    g.edges.Clone(),
	}
}

// FromState returns a new graph holding the content of s.
func FromState[V cmp.Ordered, T cmp.Ordered](s *State[V, T]) (*Graph[V, T], error) {

	g := New[V, T]()
	if err := g.MergeState(s); err != nil {
		return nil, err
	}

	return g, nil
}

// linkVertex installs a fresh adjacency row for v that holds
// every neighbor whose edge to v exists again. The caller
// holds the write lock and v is present.
func (g *Graph[V, T]) linkVertex(v V) {

	present := make([]Edge[V], 0, len(g.incident[v]))
	for _, e := range g.incident[v] {
		if g.edgeExists(e) {
			present = append(present, e)
		}
	}
	slices.SortFunc(present, compareEdges[V])

	g.adjacency[v] = make([]V, 0, len(present))
	for _, e := range present {
		u := e.Other(v)
		g.adjacency[v] = append(g.adjacency[v], u)
		g.adjacency[u] = append(g.adjacency[u], v)
	}
}

// rebuild recomputes the whole adjacency index from the
// ledgers. The caller holds the write lock.
func (g *Graph[V, T]) rebuild() {

	g.adjacency = make(map[V][]V)
	g.incident = make(map[V][]Edge[V])

	for v := range g.vertices.Adds {
		if g.vertexExists(v) {
			g.adjacency[v] = make([]V, 0)
		}
	}

	present := make([]Edge[V], 0)
	for e := range g.edges.Adds {

		g.incident[e.U] = append(g.incident[e.U], e)
		g.incident[e.W] = append(g.incident[e.W], e)

		if g.edgeExists(e) {
			present = append(present, e)
		}
	}
	slices.SortFunc(present, compareEdges[V])

	for _, e := range present {
		g.adjacency[e.U] = append(g.adjacency[e.U], e.W)
		g.adjacency[e.W] = append(g.adjacency[e.W], e.U)
	}
}

// without removes the first occurrence of v from row.
func without[V cmp.Ordered](row []V, v V) []V {

	i := slices.Index(row, v)
	if i < 0 {
		return row
	}

	return slices.Delete(row, i, i+1)
}

func compareEdges[V cmp.Ordered](a Edge[V], b Edge[V]) int {

	if c := cmp.Compare(a.U, b.U); c != 0 {
		return c
	}

	return cmp.Compare(a.W, b.W)
}
