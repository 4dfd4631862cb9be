package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"crypto/tls"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/comm"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/config"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/crypto"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/replica"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/storage"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Functions

// initLogger initializes a JSON gokit-logger set
// to the according log level supplied via cli flag.
func initLogger(w io.Writer, loglevel string) log.Logger {

	logger := log.NewJSONLogger(log.NewSyncWriter(w))
	logger = log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)

	switch strings.ToLower(loglevel) {
	case "info":
		logger = level.NewFilter(logger, level.AllowInfo())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowDebug())
	}

	return logger
}

// initTLS loads the internal TLS config if the
// config file names certificates, nil otherwise.
func initTLS(conf *config.Config) (*tls.Config, error) {

	if conf.TLS == nil {
		return nil, nil
	}

	return crypto.NewInternalTLSConfig(conf.TLS.CertLoc, conf.TLS.KeyLoc, conf.TLS.RootCertLoc)
}

// clientOptions prepares the dial options of client mode.
// If configFile exists and configures TLS, the client
// authenticates with that replica's certificate, otherwise
// it connects without transport security.
func clientOptions(configFile string) ([]grpc.DialOption, error) {

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		return comm.SenderOptions(nil), nil
	}

	conf, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := initTLS(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to load internal TLS config: %v", err)
	}

	return comm.SenderOptions(tlsConfig), nil
}

// runReplica serves the replica described by conf on lis and
// syncs with its peers until ctx is done or a component fails.
func runReplica(ctx context.Context, logger log.Logger, conf *config.Config, lis net.Listener, m *ReplicaMetrics, tlsConfig *tls.Config) error {

	logger = log.With(logger, "replica", conf.Replica.Name)

	store, err := storage.Open(conf.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	service, err := replica.NewService(conf.Replica.Name, store, replica.NewClock())
	if err != nil {
		return err
	}
	service = replica.NewLoggingService(service, logger)
	service = replica.NewMetricsService(service, m.Ops, m.Merges)

	var promLis net.Listener
	if m.Registry != nil {

		promLis, err = net.Listen("tcp", conf.Replica.PrometheusAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on prometheus address '%s': %v", conf.Replica.PrometheusAddr, err)
		}
	}

	recv := comm.NewReceiver(logger, service, comm.ReceiverOptions(tlsConfig)...)
	sender := comm.NewSender(logger, service, conf.Peers,
		conf.Replica.SyncInterval.Duration, conf.Replica.SyncTimeout.Duration,
		comm.SenderOptions(tlsConfig)...)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return recv.Serve(lis)
	})

	g.Go(func() error {
		<-ctx.Done()
		recv.Stop()
		return nil
	})

	g.Go(func() error {
		return sender.Run(ctx)
	})

	if promLis != nil {
		g.Go(func() error {
			return runPromHTTP(ctx, logger, promLis, m.Registry)
		})
	}

	return g.Wait()
}

// runClient sends one operation or one query to the
// replica at target and prints the outcome to out.
func runClient(ctx context.Context, out io.Writer, target string, exec string, query string, opts ...grpc.DialOption) error {

	c, err := comm.Dial(target, opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	if exec != "" {

		reply, err := c.Apply(ctx, exec)
		if err != nil {
			return err
		}

		outcome := "applied"
		if !reply.Applied {
			outcome = "ignored"
		}

		_, err = fmt.Fprintf(out, "%s %s\n", outcome, reply.Op)
		return err
	}

	q, err := comm.ParseQuery(query)
	if err != nil {
		return err
	}

	reply, err := c.Query(ctx, q.String())
	if err != nil {
		return err
	}

	switch q.Kind {
	case comm.QueryVertex, comm.QueryEdge:
		_, err = fmt.Fprintln(out, strconv.FormatBool(reply.Found))
	default:
		_, err = fmt.Fprintln(out, strings.Join(reply.Vertices, " "))
	}

	return err
}

// pkiHosts lists the local replica and all its
// peers together with their sync addresses.
func pkiHosts(conf *config.Config) map[string]string {

	hosts := make(map[string]string, (len(conf.Peers) + 1))
	for name, addr := range conf.Peers {
		hosts[name] = addr
	}
	hosts[conf.Replica.Name] = conf.Replica.ListenSyncAddr

	return hosts
}

func main() {

	configFlag := flag.String("config", "config.toml", "Provide path to configuration file in TOML syntax.")
	envFlag := flag.String("env", ".env", "Optional file with LWWGRAPH_* environment overrides.")
	loglevelFlag := flag.String("loglevel", "debug", "This flag sets the default logging level.")
	targetFlag := flag.String("target", "", "Address of a replica to send a single operation or query to.")
	execFlag := flag.String("exec", "", "Operation to apply at -target, e.g. 'adde|a|b' or 'rmvv|a|1700000000'.")
	queryFlag := flag.String("query", "", "Query to run at -target: 'vertex|v', 'edge|v1|v2', 'neighbors|v' or 'path|v1|v2'.")
	timeoutFlag := flag.Duration("timeout", 10*time.Second, "Timeout for client calls via -target.")
	genPKIFlag := flag.String("gen-pki", "", "Generate root and replica certificates for all replicas in the config into this directory and exit.")
	flag.Parse()

	logger := initLogger(os.Stdout, *loglevelFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Client mode takes only TLS settings from the config.
	if *targetFlag != "" {

		if (*execFlag == "") == (*queryFlag == "") {
			fmt.Fprintln(os.Stderr, "exactly one of -exec and -query is required with -target")
			os.Exit(1)
		}

		opts, err := clientOptions(*configFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		callCtx, cancel := context.WithTimeout(ctx, *timeoutFlag)
		defer cancel()

		err = runClient(callCtx, os.Stdout, *targetFlag, *execFlag, *queryFlag, opts...)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		return
	}

	// Read configuration from file.
	conf, err := config.LoadConfig(*configFlag)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to load the config", "err", err,
		)
		os.Exit(3)
	}

	env, err := config.LoadEnv(*envFlag)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to load the environment", "err", err,
		)
		os.Exit(3)
	}

	err = env.Apply(conf)
	if err != nil {
		level.Error(logger).Log(
			"msg", "invalid environment overrides", "err", err,
		)
		os.Exit(3)
	}

	if *genPKIFlag != "" {

		err := crypto.GeneratePKI(*genPKIFlag, pkiHosts(conf), (90 * 24 * time.Hour))
		if err != nil {
			level.Error(logger).Log(
				"msg", "failed to generate internal PKI", "err", err,
			)
			os.Exit(4)
		}

		level.Info(logger).Log("msg", "generated internal PKI", "dir", *genPKIFlag)
		return
	}

	tlsConfig, err := initTLS(conf)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to load internal TLS config", "err", err,
		)
		os.Exit(5)
	}

	lis, err := net.Listen("tcp", conf.Replica.ListenSyncAddr)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to listen on sync address",
			"addr", conf.Replica.ListenSyncAddr,
			"err", err,
		)
		os.Exit(6)
	}

	err = runReplica(ctx, logger, conf, lis, NewReplicaMetrics(conf.Replica.PrometheusAddr), tlsConfig)
	if err != nil {
		level.Error(logger).Log(
			"msg", "replica stopped with failure",
			"err", err,
		)
		os.Exit(7)
	}
}
