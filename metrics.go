package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReplicaMetrics holds the counters a replica updates
// and, if metrics are exposed, the registry they live in.
type ReplicaMetrics struct {
	Ops      metrics.Counter
	Merges   metrics.Counter
	Registry *prom.Registry
}

// NewReplicaMetrics returns discarding counters if no
// Prometheus address is configured and counters backed
// by a fresh Prometheus registry otherwise.
func NewReplicaMetrics(prometheusAddr string) *ReplicaMetrics {

	if prometheusAddr == "" {
		return &ReplicaMetrics{
			Ops:    discard.NewCounter(),
			Merges: discard.NewCounter(),
		}
	}

	ops := prom.NewCounterVec(prom.CounterOpts{
		Namespace: "lwwgraph",
		Subsystem: "replica",
		Name:      "operations_total",
		Help:      "Number of graph operations by operation and result",
	}, []string{"op", "result"})

	merges := prom.NewCounterVec(prom.CounterOpts{
		Namespace: "lwwgraph",
		Subsystem: "replica",
		Name:      "merges_total",
		Help:      "Number of merged remote states by result",
	}, []string{"result"})

	registry := prom.NewRegistry()
	registry.MustRegister(
		ops,
		merges,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &ReplicaMetrics{
		Ops:      prometheus.NewCounter(ops),
		Merges:   prometheus.NewCounter(merges),
		Registry: registry,
	}
}

// runPromHTTP serves the metrics of registry under
// /metrics on lis until ctx is done.
func runPromHTTP(ctx context.Context, logger log.Logger, lis net.Listener, registry *prom.Registry) error {

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	level.Info(logger).Log("msg", "prometheus handler listening", "addr", lis.Addr().String())

	err := server.Serve(lis)
	if (err != nil) && !errors.Is(err, http.ErrServerClosed) {
		level.Warn(logger).Log("msg", "failed to serve prometheus metrics", "err", err)
		return err
	}

	return nil
}
