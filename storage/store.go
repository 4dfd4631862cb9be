package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/config"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/crdt"
)

// Interfaces

// Store defines the methods a persistence
// adapter of a replica has to provide.
type Store interface {

	// Load returns the last saved state or an
	// empty one if nothing was saved so far.
	Load() (*crdt.ReplicaState, error)

	// Save replaces the stored state with state.
	Save(state *crdt.ReplicaState) error

	// Close releases all resources held by the store.
	Close() error
}

// Functions

// Open initializes the store adapter named in the
// storage section of the config.
func Open(conf config.Storage, logger log.Logger) (Store, error) {

	switch strings.ToLower(conf.Adapter) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(conf.Path, conf.SyncWrites)
	case "badger":
		return NewBadgerStore(conf.Path, conf.SyncWrites, logger)
	case "postgres":
		return NewPostgresStore(context.Background(), conf.DSN, conf.Key)
	default:
		return nil, fmt.Errorf("unknown storage adapter '%s'", conf.Adapter)
	}
}
