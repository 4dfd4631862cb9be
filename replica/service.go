package replica

import (
	"fmt"
	"sync"

	"github.com/tezer/Last-Writer-Wins-Element-Graph/crdt"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/storage"
)

// Interfaces

// Service defines the interface a replica node
// in an lwwgraph network provides.
type Service interface {

	// Name returns the name of this replica.
	Name() string

	// AddVertex adds vertex v at timestamp ts and
	// reports whether the add took effect.
	AddVertex(v string, ts int64) (bool, error)

	// RemoveVertex removes vertex v at timestamp ts and
	// reports whether the remove took effect.
	RemoveVertex(v string, ts int64) (bool, error)

	// AddEdge adds the edge between v1 and v2 at
	// timestamp ts. Both vertices need to be present.
	AddEdge(v1 string, v2 string, ts int64) (bool, error)

	// RemoveEdge removes the edge between v1 and v2
	// at timestamp ts.
	RemoveEdge(v1 string, v2 string, ts int64) (bool, error)

	// Apply executes a parsed graph operation. Operations
	// without a timestamp get one from the replica clock.
	Apply(op *crdt.GraphOp) (bool, error)

	// VertexExists reports whether v is present.
	VertexExists(v string) (bool, error)

	// EdgeExists reports whether the edge between
	// v1 and v2 is present.
	EdgeExists(v1 string, v2 string) (bool, error)

	// Neighbors lists all vertices adjacent to v.
	Neighbors(v string) ([]string, error)

	// FindPath returns some path from v1 to v2,
	// or an empty one if there is none.
	FindPath(v1 string, v2 string) ([]string, error)

	// Merge joins the state of a remote replica
	// into the local graph.
	Merge(state *crdt.ReplicaState) error

	// Snapshot returns a copy of the local state
	// to be sent to other replicas.
	Snapshot() *crdt.ReplicaState
}

type service struct {
	name     string
	graph    *crdt.ReplicaGraph
	store    storage.Store
	clock    *Clock
	saveLock *sync.Mutex
}

// Functions

// NewService takes in all required parameters for spinning
// up a new replica, restores the graph from store, and returns
// a service struct wrapping all information.
func NewService(name string, store storage.Store, clock *Clock) (Service, error) {

	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load stored state of replica %s: %v", name, err)
	}

	graph, err := crdt.FromState(state)
	if err != nil {
		return nil, fmt.Errorf("stored state of replica %s is unusable: %v", name, err)
	}

	if latest, found := state.MaxTimestamp(); found {
		clock.Observe(latest)
	}

	return &service{
		name:     name,
		graph:    graph,
		store:    store,
		clock:    clock,
		saveLock: new(sync.Mutex),
	}, nil
}

// persist writes the current graph state to the store.
// Snapshot and save happen under one lock, so a slower
// save never overwrites a newer state.
func (s *service) persist() error {

	s.saveLock.Lock()
	defer s.saveLock.Unlock()

	err := s.store.Save(s.graph.State())
	if err != nil {
		return fmt.Errorf("failed to persist state of replica %s: %v", s.name, err)
	}

	return nil
}

// mutated persists the graph after a mutation that did
// not fail. Rejected operations may still have recorded
// a tombstone, so they are persisted as well.
func (s *service) mutated(ok bool, err error) (bool, error) {

	if err != nil {
		return false, err
	}

	if err := s.persist(); err != nil {
		return ok, err
	}

	return ok, nil
}

func (s *service) Name() string {
	return s.name
}

func (s *service) AddVertex(v string, ts int64) (bool, error) {
	s.clock.Observe(ts)
	return s.mutated(s.graph.AddVertex(v, ts))
}

func (s *service) RemoveVertex(v string, ts int64) (bool, error) {
	s.clock.Observe(ts)
	return s.mutated(s.graph.RemoveVertex(v, ts))
}

func (s *service) AddEdge(v1 string, v2 string, ts int64) (bool, error) {
	s.clock.Observe(ts)
	return s.mutated(s.graph.AddEdge(v1, v2, ts))
}

func (s *service) RemoveEdge(v1 string, v2 string, ts int64) (bool, error) {
	s.clock.Observe(ts)
	return s.mutated(s.graph.RemoveEdge(v1, v2, ts))
}

func (s *service) Apply(op *crdt.GraphOp) (bool, error) {

	if op == nil {
		return false, fmt.Errorf("no graph operation supplied")
	}

	if !op.HasTimestamp {
		op.Timestamp = s.clock.Now()
		op.HasTimestamp = true
	} else {
		s.clock.Observe(op.Timestamp)
	}

	return s.mutated(op.ApplyTo(s.graph))
}

func (s *service) VertexExists(v string) (bool, error) {
	return s.graph.VertexExists(v)
}

func (s *service) EdgeExists(v1 string, v2 string) (bool, error) {
	return s.graph.EdgeExists(v1, v2)
}

func (s *service) Neighbors(v string) ([]string, error) {
	return s.graph.Neighbors(v)
}

func (s *service) FindPath(v1 string, v2 string) ([]string, error) {
	return s.graph.FindPath(v1, v2)
}

func (s *service) Merge(state *crdt.ReplicaState) error {

	err := s.graph.MergeState(state)
	if err != nil {
		return err
	}

	if latest, found := state.MaxTimestamp(); found {
		s.clock.Observe(latest)
	}

	return s.persist()
}

func (s *service) Snapshot() *crdt.ReplicaState {
	return s.graph.State()
}
