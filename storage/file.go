package storage

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"path/filepath"

	"github.com/pkg/errors"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/crdt"
)

// FileStore keeps the state of a replica as one JSON
// document in a file that is overwritten on every save.
type FileStore struct {
	lock       *sync.Mutex
	file       *os.File
	syncWrites bool
}

// NewFileStore opens or creates the state file at path.
func NewFileStore(path string, syncWrites bool) (*FileStore, error) {

	if path == "" {
		return nil, errors.New("file storage needs a path")
	}

	err := os.MkdirAll(filepath.Dir(path), 0700)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for state file '%s'", path)
	}

	file, err := os.OpenFile(path, (os.O_CREATE | os.O_RDWR), 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "opening state file '%s' failed", path)
	}

	return &FileStore{
		lock:       new(sync.Mutex),
		file:       file,
		syncWrites: syncWrites,
	}, nil
}

// Load reads the whole state file.
func (s *FileStore) Load() (*crdt.ReplicaState, error) {

	s.lock.Lock()
	defer s.lock.Unlock()

	// Reset position of read-write head to beginning.
	_, err := s.file.Seek(0, io.SeekStart)
	if err != nil {
		return nil, errors.Wrap(err, "could not reset position in state file")
	}

	data, err := io.ReadAll(s.file)
	if err != nil {
		return nil, errors.Wrap(err, "reading state file failed")
	}

	return decode(data)
}

// Save over-writes the state file with state.
func (s *FileStore) Save(state *crdt.ReplicaState) error {

	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed to marshal replica state")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	_, err = s.file.Seek(0, io.SeekStart)
	if err != nil {
		return errors.Wrap(err, "could not reset position in state file")
	}

	n, err := s.file.Write(data)
	if err != nil {
		return errors.Wrap(err, "writing state file failed")
	}

	// Truncate file to just written content.
	err = s.file.Truncate(int64(n))
	if err != nil {
		return errors.Wrap(err, "truncating state file failed")
	}

	if s.syncWrites {

		// Make sure to write to stable storage before returning.
		err = s.file.Sync()
		if err != nil {
			return errors.Wrap(err, "syncing state file failed")
		}
	}

	return nil
}

// Close closes the state file.
func (s *FileStore) Close() error {

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.file.Close()
}
