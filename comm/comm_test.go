package comm_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/comm"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/crdt"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/replica"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/storage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// network connects replicas through in-memory listeners.
type network struct {
	listeners map[string]*bufconn.Listener
}

func newNetwork() *network {
	return &network{listeners: make(map[string]*bufconn.Listener)}
}

func (n *network) dialOptions() []grpc.DialOption {

	dialer := func(ctx context.Context, addr string) (net.Conn, error) {

		lis, found := n.listeners[addr]
		if !found {
			return nil, &net.OpError{Op: "dial", Net: "bufconn", Err: net.UnknownNetworkError(addr)}
		}

		return lis.DialContext(ctx)
	}

	return append(comm.SenderOptions(nil), grpc.WithContextDialer(dialer))
}

// start runs a receiver for a fresh replica called name
// and returns its service and address.
func (n *network) start(t *testing.T, name string) (replica.Service, string) {

	service, err := replica.NewService(name, storage.NewMemoryStore(), replica.NewClock())
	require.NoError(t, err)

	lis := bufconn.Listen(1024 * 1024)
	n.listeners[name] = lis

	recv := comm.NewReceiver(log.NewNopLogger(), service, comm.ReceiverOptions(nil)...)
	go func() {
		_ = recv.Serve(lis)
	}()
	t.Cleanup(recv.Stop)

	return service, "passthrough:///" + name
}

func (n *network) dial(t *testing.T, addr string) *comm.Client {

	c, err := comm.Dial(addr, n.dialOptions()...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func ctxWithTimeout(t *testing.T) context.Context {

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func TestApplyAndQuery(t *testing.T) {

	n := newNetwork()
	service, addr := n.start(t, "a")
	c := n.dial(t, addr)
	ctx := ctxWithTimeout(t)

	for _, op := range []string{"addv|x", "addv|y", "addv|z", "adde|x|y", "adde|z|y"} {

		reply, err := c.Apply(ctx, op)
		require.NoError(t, err)
		assert.True(t, reply.Applied, op)
	}

	// Explicit timestamps are kept, the reply carries them.
	reply, err := c.Apply(ctx, "rmve|x|y|1")
	require.NoError(t, err)
	assert.False(t, reply.Applied)
	assert.Equal(t, "rmve|x|y|1", reply.Op)

	q, err := c.Query(ctx, "path|x|z")
	require.NoError(t, err)
	assert.True(t, q.Found)
	assert.Equal(t, []string{"x", "y", "z"}, q.Vertices)

	q, err = c.Query(ctx, "neighbors|y")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "z"}, q.Vertices)

	q, err = c.Query(ctx, "edge|y|x")
	require.NoError(t, err)
	assert.True(t, q.Found)

	q, err = c.Query(ctx, "vertex|w")
	require.NoError(t, err)
	assert.False(t, q.Found)

	exists, err := service.EdgeExists("z", "y")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestInvalidRequests(t *testing.T) {

	n := newNetwork()
	_, addr := n.start(t, "a")
	c := n.dial(t, addr)
	ctx := ctxWithTimeout(t)

	_, err := c.Apply(ctx, "addv")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Apply(ctx, "adde|x|x")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Query(ctx, "route|x|y")
	assert.Error(t, err)

	// Self loops do not even decode on the receiving side.
	broken := crdt.NewState[string, int64]()
	broken.Edges.Adds[crdt.Edge[string]{U: "x", W: "x"}] = 1

	_, err = c.Push(ctx, &comm.StateMsg{Replica: "b", State: broken})
	assert.Error(t, err)

	_, err = c.Push(ctx, &comm.StateMsg{Replica: "b"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestQueryUnknownKind hands unparsed queries straight to
// a receiver, as a foreign client could send them.
func TestQueryUnknownKind(t *testing.T) {

	service, err := replica.NewService("a", storage.NewMemoryStore(), replica.NewClock())
	require.NoError(t, err)

	recv := comm.NewReceiver(log.NewNopLogger(), service)
	ctx := ctxWithTimeout(t)

	for _, msg := range []*comm.QueryMsg{
		{Kind: "bogus"},
		{Kind: ""},
		{Kind: "bogus", Vertices: []string{"x"}},
		{Kind: comm.QueryPath, Vertices: []string{"x"}},
	} {

		reply, err := recv.Query(ctx, msg)
		assert.Nil(t, reply, msg.Kind)
		assert.Equal(t, codes.InvalidArgument, status.Code(err), msg.Kind)
	}
}

func TestPullPush(t *testing.T) {

	n := newNetwork()
	service, addr := n.start(t, "a")
	c := n.dial(t, addr)
	ctx := ctxWithTimeout(t)

	_, err := service.AddVertex("x", 10)
	require.NoError(t, err)

	pulled, err := c.Pull(ctx, &comm.PullRequest{Replica: "b", Round: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "a", pulled.Replica)
	assert.Equal(t, "r1", pulled.Round)
	assert.True(t, pulled.State.Equal(service.Snapshot()))

	state := crdt.NewState[string, int64]()
	state.Vertices.Adds.Observe("y", 11)
	state.Vertices.Removes.Observe("x", 12)

	ack, err := c.Push(ctx, &comm.StateMsg{Replica: "b", Round: "r2", State: state})
	require.NoError(t, err)
	assert.Equal(t, "a", ack.Replica)

	exists, _ := service.VertexExists("x")
	assert.False(t, exists)

	exists, _ = service.VertexExists("y")
	assert.True(t, exists)
}

func TestSenderConverges(t *testing.T) {

	n := newNetwork()
	a, _ := n.start(t, "a")
	b, addrB := n.start(t, "b")
	c, addrC := n.start(t, "c")

	// Concurrent, conflicting updates on all three replicas.
	_, _ = a.AddVertex("v", 1)
	_, _ = a.AddVertex("w", 1)
	_, _ = a.AddEdge("v", "w", 2)
	_, _ = b.AddVertex("v", 3)
	_, _ = b.RemoveVertex("v", 4)
	_, _ = c.AddVertex("u", 5)

	sender := comm.NewSender(log.NewNopLogger(), a, map[string]string{
		"b": addrB,
		"c": addrC,
	}, time.Hour, 5*time.Second, n.dialOptions()...)
	defer sender.Close()

	ctx := ctxWithTimeout(t)

	// Two rounds carry c's updates to b and the other way around.
	require.NoError(t, sender.SyncAll(ctx))
	require.NoError(t, sender.SyncAll(ctx))

	assert.True(t, a.Snapshot().Equal(b.Snapshot()))
	assert.True(t, a.Snapshot().Equal(c.Snapshot()))

	for _, s := range []replica.Service{a, b, c} {

		exists, _ := s.VertexExists("v")
		assert.False(t, exists, s.Name())

		exists, _ = s.VertexExists("u")
		assert.True(t, exists, s.Name())

		exists, _ = s.EdgeExists("v", "w")
		assert.False(t, exists, s.Name())
	}
}

func TestSenderUnknownPeer(t *testing.T) {

	n := newNetwork()
	a, _ := n.start(t, "a")

	sender := comm.NewSender(log.NewNopLogger(), a, map[string]string{
		"gone": "passthrough:///gone",
	}, time.Hour, 200*time.Millisecond, n.dialOptions()...)
	defer sender.Close()

	assert.Error(t, sender.SyncAll(context.Background()))
	assert.Error(t, sender.Sync(context.Background(), "nobody"))
}

func TestSenderRunStops(t *testing.T) {

	n := newNetwork()
	a, _ := n.start(t, "a")
	b, addrB := n.start(t, "b")

	_, _ = b.AddVertex("q", 1)

	sender := comm.NewSender(log.NewNopLogger(), a, map[string]string{"b": addrB},
		10*time.Millisecond, time.Second, n.dialOptions()...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sender.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		exists, _ := a.VertexExists("q")
		return exists
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestParseQuery(t *testing.T) {

	for _, raw := range []string{"", "vertex", "vertex|a|b", "path|a", "edge|a|", "nodes|a"} {

		_, err := comm.ParseQuery(raw)
		assert.Error(t, err, raw)
	}

	q, err := comm.ParseQuery(" neighbors|a\n")
	require.NoError(t, err)
	assert.Equal(t, comm.QueryNeighbors, q.Kind)
	assert.Equal(t, []string{"a"}, q.Vertices)
	assert.Equal(t, "neighbors|a", q.String())
}
