package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllMetricsWithoutPanicking(t *testing.T) {
	require.NotPanics(t, func() {
		r := New()
		require.NotNil(t, r)
	})
}

func TestNewCanBeCalledMoreThanOnce(t *testing.T) {
	// Each call builds its own prometheus.Registry, so registering the same
	// metric names twice across two Registries must not collide.
	require.NotPanics(t, func() {
		New()
		New()
	})
}

func TestCountersAndGaugesAreUsable(t *testing.T) {
	r := New()
	r.SyncPacketsSent.Inc()
	r.BacklogSize.Set(42)
	r.FramesBehind.Set(-3.5)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.SyncPacketsSent))
}

func TestServeRespectsContextCancellation(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx, "127.0.0.1:0", zerolog.Nop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}
