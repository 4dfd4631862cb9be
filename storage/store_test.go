package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/config"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/crdt"
)

// sampleGraph returns a small graph with at least
// one entry in each of the four ledgers.
func sampleGraph(t *testing.T) *crdt.ReplicaGraph {

	t.Helper()

	g := crdt.New[string, int64]()

	for _, msg := range []string{"addv|a|1", "addv|b|1", "addv|c|1", "adde|a|b|2", "adde|b|c|2", "rmve|b|c|3", "rmvv|c|4"} {

		op, err := crdt.ParseOp(msg)
		require.NoError(t, err)

		_, err = op.ApplyTo(g)
		require.NoError(t, err)
	}

	return g
}

// exerciseStore runs the behaviour every adapter shares.
func exerciseStore(t *testing.T, s Store) {

	t.Helper()

	// Nothing saved yet.
	state, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, state.Validate())
	assert.True(t, state.Equal(crdt.NewState[string, int64]()))

	g := sampleGraph(t)
	require.NoError(t, s.Save(g.State()))

	state, err = s.Load()
	require.NoError(t, err)
	assert.True(t, state.Equal(g.State()))

	// A smaller state replaces a bigger one completely.
	small := crdt.New[string, int64]()
	_, _ = small.AddVertex("z", 9)
	require.NoError(t, s.Save(small.State()))

	state, err = s.Load()
	require.NoError(t, err)
	assert.True(t, state.Equal(small.State()))
}

func TestMemoryStore(t *testing.T) {

	s := NewMemoryStore()
	defer s.Close()

	exerciseStore(t, s)
}

func TestFileStore(t *testing.T) {

	path := filepath.Join(t.TempDir(), "nested", "state.json")

	s, err := NewFileStore(path, true)
	require.NoError(t, err)

	exerciseStore(t, s)

	g := sampleGraph(t)
	require.NoError(t, s.Save(g.State()))
	require.NoError(t, s.Close())

	// Reopen and find the state again.
	s, err = NewFileStore(path, false)
	require.NoError(t, err)
	defer s.Close()

	state, err := s.Load()
	require.NoError(t, err)
	assert.True(t, state.Equal(g.State()))

	_, err = NewFileStore("", false)
	assert.Error(t, err)
}

func TestFileStoreCorrupted(t *testing.T) {

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := NewFileStore(path, false)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Load()
	assert.Error(t, err)
}

func TestBadgerStoreInMemory(t *testing.T) {

	s, err := NewBadgerStore("", false, log.NewNopLogger())
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestBadgerStorePersists(t *testing.T) {

	dir := t.TempDir()

	s, err := NewBadgerStore(dir, true, nil)
	require.NoError(t, err)

	g := sampleGraph(t)
	require.NoError(t, s.Save(g.State()))
	require.NoError(t, s.Close())

	s, err = NewBadgerStore(dir, true, nil)
	require.NoError(t, err)
	defer s.Close()

	state, err := s.Load()
	require.NoError(t, err)
	assert.True(t, state.Equal(g.State()))
}

func TestOpen(t *testing.T) {

	logger := log.NewNopLogger()

	s, err := Open(config.Storage{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(config.Storage{Adapter: "File", Path: filepath.Join(t.TempDir(), "state.json")}, logger)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(config.Storage{Adapter: "badger"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	// The postgres adapter needs a row key.
	_, err = Open(config.Storage{Adapter: "postgres"}, logger)
	assert.Error(t, err)

	_, err = Open(config.Storage{Adapter: "cassandra"}, logger)
	assert.Error(t, err)
}
