package storage

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/crdt"
)

// stateKey is the badger key the marshalled state lives at.
var stateKey = []byte("lwwgraph/state")

// BadgerStore keeps the state of a replica in BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// badgerLogger adapts a go-kit logger to
// BadgerDB's Logger interface.
type badgerLogger struct {
	logger log.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	level.Error(l.logger).Log("msg", fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	level.Warn(l.logger).Log("msg", fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	level.Info(l.logger).Log("msg", fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	level.Debug(l.logger).Log("msg", fmt.Sprintf(format, args...))
}

// NewBadgerStore opens the BadgerDB at path. An empty
// path opens an in-memory database.
func NewBadgerStore(path string, syncWrites bool, logger log.Logger) (*BadgerStore, error) {

	var opts badger.Options

	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}

	opts = opts.WithSyncWrites(syncWrites).WithNumVersionsToKeep(1)

	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: log.With(logger, "component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open badger database")
	}

	return &BadgerStore{db: db}, nil
}

// Load reads the state stored under stateKey.
func (s *BadgerStore) Load() (*crdt.ReplicaState, error) {

	var data []byte

	err := s.db.View(func(txn *badger.Txn) error {

		item, err := txn.Get(stateKey)
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)

		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading state from badger failed")
	}

	return decode(data)
}

// Save stores state under stateKey.
func (s *BadgerStore) Save(state *crdt.ReplicaState) error {

	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed to marshal replica state")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stateKey, data)
	})
	if err != nil {
		return errors.Wrap(err, "writing state to badger failed")
	}

	return nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
