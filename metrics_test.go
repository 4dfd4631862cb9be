package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReplicaMetrics(t *testing.T) {

	m := NewReplicaMetrics("")
	assert.NotNil(t, m.Ops)
	assert.NotNil(t, m.Merges)
	assert.Nil(t, m.Registry)

	// Discarding counters accept labels as well.
	m.Ops.With("op", "addv", "result", "applied").Add(1)

	m = NewReplicaMetrics(":9099")
	require.NotNil(t, m.Registry)

	m.Ops.With("op", "addv", "result", "applied").Add(2)
	m.Merges.With("result", "failed").Add(1)

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}

	assert.Contains(t, names, "lwwgraph_replica_operations_total")
	assert.Contains(t, names, "lwwgraph_replica_merges_total")

	// A second set of metrics does not collide with the first.
	assert.NotPanics(t, func() { NewReplicaMetrics(":9099") })
}

func TestRunPromHTTP(t *testing.T) {

	m := NewReplicaMetrics("127.0.0.1:0")
	m.Ops.With("op", "adde", "result", "rejected").Add(1)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runPromHTTP(ctx, log.NewNopLogger(), lis, m.Registry)
	}()

	resp, err := http.Get("http://" + lis.Addr().String() + "/metrics")
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `lwwgraph_replica_operations_total{op="adde",result="rejected"} 1`)

	cancel()
	assert.NoError(t, <-done)
}
