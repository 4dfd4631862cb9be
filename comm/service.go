package comm

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the fully qualified gRPC service name.
const serviceName = "lwwgraph.Replica"

// ReplicaServer is the server side of the
// replica-to-replica and client-to-replica API.
type ReplicaServer interface {
	Pull(ctx context.Context, req *PullRequest) (*StateMsg, error)
	Push(ctx context.Context, msg *StateMsg) (*Ack, error)
	Apply(ctx context.Context, msg *OpMsg) (*OpReply, error)
	Query(ctx context.Context, msg *QueryMsg) (*QueryReply, error)
}

// unaryHandler builds the gRPC method handler for one
// unary method of ReplicaServer.
func unaryHandler[Req any, Resp any](method string, call func(ReplicaServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {

	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			if interceptor == nil {
				return call(srv.(ReplicaServer), ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(method),
			}

			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(ReplicaServer), ctx, req.(*Req))
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

var replicaServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ReplicaServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Pull", ReplicaServer.Pull),
		unaryHandler("Push", ReplicaServer.Push),
		unaryHandler("Apply", ReplicaServer.Apply),
		unaryHandler("Query", ReplicaServer.Query),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lwwgraph",
}

// RegisterReplicaServer makes srv handle all
// lwwgraph.Replica calls arriving at s.
func RegisterReplicaServer(s *grpc.Server, srv ReplicaServer) {
	s.RegisterService(&replicaServiceDesc, srv)
}
