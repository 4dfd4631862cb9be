package comm

import (
	"context"
	"errors"
	"net"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/crdt"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/replica"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Structs

// Receiver bundles all information needed to accept
// states and operations from peers and clients and to
// hand them to the local replica.
type Receiver struct {
	logger  log.Logger
	service replica.Service
	server  *grpc.Server
}

// Functions

// NewReceiver creates a gRPC server serving service
// under the lwwgraph.Replica API. Use ReceiverOptions
// for opts.
func NewReceiver(logger log.Logger, service replica.Service, opts ...grpc.ServerOption) *Receiver {

	recv := &Receiver{
		logger:  log.With(logger, "component", "receiver"),
		service: service,
		server:  grpc.NewServer(opts...),
	}

	RegisterReplicaServer(recv.server, recv)

	return recv
}

// Serve accepts connections on lis until Stop is called.
func (recv *Receiver) Serve(lis net.Listener) error {

	level.Info(recv.logger).Log(
		"msg", "accepting sync traffic",
		"replica", recv.service.Name(),
		"addr", lis.Addr().String(),
	)

	err := recv.server.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}

	return err
}

// Stop waits for pending calls to finish
// and shuts down the server.
func (recv *Receiver) Stop() {
	recv.server.GracefulStop()
}

// toStatus turns errors of the graph into gRPC
// status errors a remote caller can inspect.
func toStatus(err error) error {

	switch {
	case errors.Is(err, crdt.ErrInvalidKey),
		errors.Is(err, crdt.ErrInvalidTimestamp),
		errors.Is(err, crdt.ErrMalformedState):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Pull returns the complete local state.
func (recv *Receiver) Pull(ctx context.Context, req *PullRequest) (*StateMsg, error) {

	level.Debug(recv.logger).Log(
		"msg", "state pulled",
		"peer", req.Replica,
		"round", req.Round,
	)

	return &StateMsg{
		Replica: recv.service.Name(),
		Round:   req.Round,
		State:   recv.service.Snapshot(),
	}, nil
}

// Push merges a remote state into the local one.
func (recv *Receiver) Push(ctx context.Context, msg *StateMsg) (*Ack, error) {

	if msg.State == nil {
		return nil, status.Errorf(codes.InvalidArgument, "state pushed by '%s' is empty", msg.Replica)
	}

	err := recv.service.Merge(msg.State)
	if err != nil {

		level.Warn(recv.logger).Log(
			"msg", "failed to merge pushed state",
			"peer", msg.Replica,
			"round", msg.Round,
			"err", err,
		)

		return nil, toStatus(err)
	}

	level.Debug(recv.logger).Log(
		"msg", "merged pushed state",
		"peer", msg.Replica,
		"round", msg.Round,
	)

	return &Ack{Replica: recv.service.Name()}, nil
}

// Apply executes one graph operation on the local replica.
func (recv *Receiver) Apply(ctx context.Context, msg *OpMsg) (*OpReply, error) {

	op, err := crdt.ParseOp(msg.Op)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	applied, err := recv.service.Apply(op)
	if err != nil {
		return nil, toStatus(err)
	}

	return &OpReply{
		Applied: applied,
		Op:      op.String(),
	}, nil
}

// Query answers one read-only question about the local graph.
func (recv *Receiver) Query(ctx context.Context, msg *QueryMsg) (*QueryReply, error) {

	n := queryArity(msg.Kind)
	if n == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported query '%s'", msg.Kind)
	}

	if len(msg.Vertices) != n {
		return nil, status.Errorf(codes.InvalidArgument, "malformed query '%s'", msg.String())
	}

	var err error
	reply := new(QueryReply)

	switch msg.Kind {
	case QueryVertex:
		reply.Found, err = recv.service.VertexExists(msg.Vertices[0])
	case QueryEdge:
		reply.Found, err = recv.service.EdgeExists(msg.Vertices[0], msg.Vertices[1])
	case QueryNeighbors:
		reply.Vertices, err = recv.service.Neighbors(msg.Vertices[0])
		reply.Found = len(reply.Vertices) > 0
	case QueryPath:
		reply.Vertices, err = recv.service.FindPath(msg.Vertices[0], msg.Vertices[1])
		reply.Found = len(reply.Vertices) > 0
	}

	if err != nil {
		return nil, toStatus(err)
	}

	return reply, nil
}
