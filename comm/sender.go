package comm

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/replica"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Structs

// Sender bundles information needed for periodically
// exchanging states with all peers of a replica.
type Sender struct {
	lock        *sync.Mutex
	logger      log.Logger
	service     replica.Service
	peers       map[string]string
	clients     map[string]*Client
	interval    time.Duration
	timeout     time.Duration
	gRPCOptions []grpc.DialOption
}

// Functions

// NewSender prepares anti-entropy rounds between service
// and peers, a map from peer name to sync address. Every
// interval, each peer is synced with, a single exchange
// may take up to timeout. Use SenderOptions for opts.
func NewSender(logger log.Logger, service replica.Service, peers map[string]string, interval time.Duration, timeout time.Duration, opts ...grpc.DialOption) *Sender {

	return &Sender{
		lock:        new(sync.Mutex),
		logger:      log.With(logger, "component", "sender"),
		service:     service,
		peers:       peers,
		clients:     make(map[string]*Client),
		interval:    interval,
		timeout:     timeout,
		gRPCOptions: opts,
	}
}

// Run syncs with all peers every interval until ctx
// is cancelled. Failed rounds are logged and retried
// with the next tick.
func (sender *Sender) Run(ctx context.Context) error {

	defer sender.Close()

	if len(sender.peers) == 0 {
		level.Info(sender.logger).Log("msg", "no peers configured, not syncing")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(sender.interval)
	defer ticker.Stop()

	for {

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := sender.SyncAll(ctx); err != nil {
			level.Warn(sender.logger).Log(
				"msg", "anti-entropy round incomplete",
				"err", err,
			)
		}
	}
}

// SyncAll syncs with every peer concurrently and returns
// the first error encountered. A failing peer does not
// stop the rounds with the others.
func (sender *Sender) SyncAll(ctx context.Context) error {

	var g errgroup.Group

	for _, name := range slices.Sorted(maps.Keys(sender.peers)) {
		g.Go(func() error {
			return sender.Sync(ctx, name)
		})
	}

	return g.Wait()
}

// client returns the cached client for peer name.
func (sender *Sender) client(name string) (*Client, error) {

	sender.lock.Lock()
	defer sender.lock.Unlock()

	if c, found := sender.clients[name]; found {
		return c, nil
	}

	addr, found := sender.peers[name]
	if !found {
		return nil, errors.Errorf("unknown peer '%s'", name)
	}

	c, err := Dial(addr, sender.gRPCOptions...)
	if err != nil {
		return nil, err
	}
	sender.clients[name] = c

	return c, nil
}

// Sync runs one anti-entropy round with peer name: it pulls
// the peer's state, merges it locally and pushes the merged
// state back, after which both replicas hold the same state
// unless either changed in between.
func (sender *Sender) Sync(ctx context.Context, name string) error {

	c, err := sender.client(name)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, sender.timeout)
	defer cancel()

	round := uuid.NewV4().String()
	logger := log.With(sender.logger, "peer", name, "round", round)

	remote, err := c.Pull(ctx, &PullRequest{
		Replica: sender.service.Name(),
		Round:   round,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to pull from peer '%s'", name)
	}

	err = sender.service.Merge(remote.State)
	if err != nil {
		return errors.Wrapf(err, "failed to merge state of peer '%s'", name)
	}

	_, err = c.Push(ctx, &StateMsg{
		Replica: sender.service.Name(),
		Round:   round,
		State:   sender.service.Snapshot(),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to push to peer '%s'", name)
	}

	level.Debug(logger).Log("msg", "synced with peer")

	return nil
}

// Close tears down all connections to peers.
func (sender *Sender) Close() {

	sender.lock.Lock()
	defer sender.lock.Unlock()

	for name, c := range sender.clients {

		if err := c.Close(); err != nil {
			level.Debug(sender.logger).Log(
				"msg", "failed to close connection",
				"peer", name,
				"err", err,
			)
		}

		delete(sender.clients, name)
	}
}
