package comm

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
)

// Client calls the lwwgraph.Replica API of one remote replica.
type Client struct {
	addr string
	conn *grpc.ClientConn
}

// Dial prepares a client for the replica at addr. The
// connection is established lazily on the first call.
// Use SenderOptions for opts.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to set up connection to %s", addr)
	}

	return &Client{
		addr: addr,
		conn: conn,
	}, nil
}

func (c *Client) invoke(ctx context.Context, method string, in interface{}, out interface{}) error {

	err := c.conn.Invoke(ctx, fullMethod(method), in, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		return errors.Wrapf(err, "%s at %s failed", method, c.addr)
	}

	return nil
}

// Pull fetches the complete state of the remote replica.
func (c *Client) Pull(ctx context.Context, req *PullRequest) (*StateMsg, error) {

	out := new(StateMsg)
	if err := c.invoke(ctx, "Pull", req, out); err != nil {
		return nil, err
	}

	if out.State == nil {
		return nil, errors.Errorf("replica at %s answered pull without state", c.addr)
	}

	return out, nil
}

// Push hands a state to the remote replica for merging.
func (c *Client) Push(ctx context.Context, msg *StateMsg) (*Ack, error) {

	out := new(Ack)
	if err := c.invoke(ctx, "Push", msg, out); err != nil {
		return nil, err
	}

	return out, nil
}

// Apply executes an operation like "adde|a|b" remotely.
func (c *Client) Apply(ctx context.Context, op string) (*OpReply, error) {

	out := new(OpReply)
	if err := c.invoke(ctx, "Apply", &OpMsg{Op: op}, out); err != nil {
		return nil, err
	}

	return out, nil
}

// Query runs a query like "path|a|b" remotely.
func (c *Client) Query(ctx context.Context, query string) (*QueryReply, error) {

	q, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}

	out := new(QueryReply)
	if err := c.invoke(ctx, "Query", q, out); err != nil {
		return nil, err
	}

	return out, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
