package replica_test

import (
	"errors"
	"testing"

	"github.com/go-kit/kit/log"
	kitprom "github.com/go-kit/kit/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/crdt"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/replica"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/storage"
)

// failingStore loads fine but refuses every save.
type failingStore struct {
	*storage.MemoryStore
}

func (s failingStore) Save(state *crdt.ReplicaState) error {
	return errors.New("disk full")
}

func newService(t *testing.T, store storage.Store) replica.Service {

	s, err := replica.NewService("test", store, replica.NewClock())
	require.NoError(t, err)

	return s
}

func TestServiceMutations(t *testing.T) {

	s := newService(t, storage.NewMemoryStore())
	assert.Equal(t, "test", s.Name())

	ok, err := s.AddVertex("a", 1)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AddVertex("b", 1)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AddEdge("b", "a", 2)
	assert.NoError(t, err)
	assert.True(t, ok)

	exists, err := s.EdgeExists("a", "b")
	assert.NoError(t, err)
	assert.True(t, exists)

	neighbors, err := s.Neighbors("a")
	assert.NoError(t, err)
	assert.Equal(t, []string{"b"}, neighbors)

	path, err := s.FindPath("a", "b")
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, path)

	ok, err = s.RemoveEdge("a", "b", 3)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RemoveVertex("a", 3)
	assert.NoError(t, err)
	assert.True(t, ok)

	exists, err = s.VertexExists("a")
	assert.NoError(t, err)
	assert.False(t, exists)

	_, err = s.AddEdge("a", "a", 4)
	assert.ErrorIs(t, err, crdt.ErrInvalidKey)
}

func TestServiceApplyAssignsTimestamps(t *testing.T) {

	s := newService(t, storage.NewMemoryStore())

	op, err := crdt.ParseOp("addv|a")
	require.NoError(t, err)

	ok, err := s.Apply(op)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, op.HasTimestamp)
	assert.Positive(t, op.Timestamp)

	// An explicit timestamp far in the future pushes the clock.
	future := op.Timestamp + 1_000_000_000_000
	op, err = crdt.ParseOp("rmvv|a")
	require.NoError(t, err)
	op.Timestamp, op.HasTimestamp = future, true

	ok, err = s.Apply(op)
	assert.NoError(t, err)
	assert.True(t, ok)

	// The next generated add is later than that remove.
	op, err = crdt.ParseOp("addv|a")
	require.NoError(t, err)

	ok, err = s.Apply(op)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Greater(t, op.Timestamp, future)

	_, err = s.Apply(nil)
	assert.Error(t, err)
}

func TestServicePersists(t *testing.T) {

	store := storage.NewMemoryStore()
	s := newService(t, store)

	_, err := s.AddVertex("a", 10)
	require.NoError(t, err)

	// A rejected remove still leaves its tombstone in the store.
	ok, err := s.RemoveVertex("ghost", 20)
	require.NoError(t, err)
	assert.False(t, ok)

	state, err := store.Load()
	require.NoError(t, err)
	assert.True(t, state.Equal(s.Snapshot()))

	ts, found := state.Vertices.Removes.Get("ghost")
	assert.True(t, found)
	assert.Equal(t, int64(20), ts)

	// A restarted replica sees the same graph and a clock past it.
	restarted := newService(t, store)

	exists, err := restarted.VertexExists("a")
	assert.NoError(t, err)
	assert.True(t, exists)

	op, _ := crdt.ParseOp("addv|ghost")
	ok, err = restarted.Apply(op)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Greater(t, op.Timestamp, int64(20))
}

func TestServiceSaveFailure(t *testing.T) {

	s := newService(t, failingStore{storage.NewMemoryStore()})

	ok, err := s.AddVertex("a", 1)
	assert.Error(t, err)
	assert.True(t, ok)

	// The mutation is still visible locally.
	exists, _ := s.VertexExists("a")
	assert.True(t, exists)
}

func TestServiceMerge(t *testing.T) {

	local := newService(t, storage.NewMemoryStore())
	remote := newService(t, storage.NewMemoryStore())

	_, _ = remote.AddVertex("x", 5)
	_, _ = remote.AddVertex("y", 5)
	_, _ = remote.AddEdge("x", "y", 6)
	_, _ = local.AddVertex("z", 7)

	require.NoError(t, local.Merge(remote.Snapshot()))
	require.NoError(t, remote.Merge(local.Snapshot()))

	assert.True(t, local.Snapshot().Equal(remote.Snapshot()))

	path, err := local.FindPath("y", "x")
	assert.NoError(t, err)
	assert.Equal(t, []string{"y", "x"}, path)

	broken := crdt.NewState[string, int64]()
	broken.Edges.Adds[crdt.Edge[string]{U: "y", W: "x"}] = 1
	assert.Error(t, local.Merge(broken))
	assert.Error(t, local.Merge(nil))
}

func TestMiddleware(t *testing.T) {

	ops := prom.NewCounterVec(prom.CounterOpts{Name: "ops_total"}, []string{"op", "result"})
	merges := prom.NewCounterVec(prom.CounterOpts{Name: "merges_total"}, []string{"result"})

	s := newService(t, storage.NewMemoryStore())
	s = replica.NewLoggingService(s, log.NewNopLogger())
	s = replica.NewMetricsService(s, kitprom.NewCounter(ops), kitprom.NewCounter(merges))

	_, _ = s.AddVertex("a", 1)
	_, _ = s.AddVertex("a", 2)
	_, _ = s.AddEdge("a", "a", 3)

	op, _ := crdt.ParseOp("addv|b")
	_, _ = s.Apply(op)

	_ = s.Merge(crdt.NewState[string, int64]())
	_ = s.Merge(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(ops.WithLabelValues(crdt.OpAddVertex, "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(crdt.OpAddVertex, "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(crdt.OpAddEdge, "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(merges.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(merges.WithLabelValues("failed")))
}
