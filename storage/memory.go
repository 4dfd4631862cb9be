package storage

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/crdt"
)

// MemoryStore keeps the marshalled state in memory.
// Saved states are deep copies, later mutations of
// the graph do not leak into the store.
type MemoryStore struct {
	lock  *sync.Mutex
	saved []byte
}

// NewMemoryStore returns an empty memory store.
func NewMemoryStore() *MemoryStore {

	return &MemoryStore{
		lock: new(sync.Mutex),
	}
}

// Load returns the last saved state.
func (s *MemoryStore) Load() (*crdt.ReplicaState, error) {

	s.lock.Lock()
	defer s.lock.Unlock()

	return decode(s.saved)
}

// Save keeps a marshalled copy of state.
func (s *MemoryStore) Save(state *crdt.ReplicaState) error {

	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed to marshal replica state")
	}

	s.lock.Lock()
	s.saved = data
	s.lock.Unlock()

	return nil
}

// Close is a no-op for memory stores.
func (s *MemoryStore) Close() error {
	return nil
}

// decode parses a marshalled state. No data at
// all yields an empty state.
func decode(data []byte) (*crdt.ReplicaState, error) {

	if len(data) == 0 {
		return crdt.NewState[string, int64](), nil
	}

	state := new(crdt.ReplicaState)
	if err := json.Unmarshal(data, state); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal stored replica state")
	}

	return state, nil
}
