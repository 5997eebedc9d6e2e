// Package metrics exposes the engine's runtime counters and gauges on a
// dedicated Prometheus registry, served over HTTP via promhttp.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry collects every metric this engine exports. It is safe for
// concurrent use: the underlying prometheus types are themselves
// concurrency-safe.
type Registry struct {
	reg *prometheus.Registry

	SyncPacketsSent      prometheus.Counter
	RetransmitsServed    prometheus.Counter
	RetransmitsMissed    prometheus.Counter
	AudioPacketsSent     prometheus.Counter
	BacklogSize          prometheus.Gauge
	FramesBehind         prometheus.Gauge
	FramesBehindJitter   prometheus.Gauge
	KeepAliveFailures    prometheus.Counter
	SessionState         prometheus.Gauge
}

// New creates a Registry with every metric registered under the
// "raop_" namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		SyncPacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raop_sync_packets_sent_total",
			Help: "Sync packets emitted on the control channel.",
		}),
		RetransmitsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raop_retransmits_served_total",
			Help: "Retransmit requests answered from the packet backlog.",
		}),
		RetransmitsMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raop_retransmits_missed_total",
			Help: "Retransmit requests for sequence numbers no longer in the backlog.",
		}),
		AudioPacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raop_audio_packets_sent_total",
			Help: "Audio packets written to the audio sender.",
		}),
		BacklogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raop_backlog_size",
			Help: "Packets currently retained in the retransmit backlog.",
		}),
		FramesBehind: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raop_frames_behind",
			Help: "Frames the streaming loop is behind schedule, sampled each tick.",
		}),
		FramesBehindJitter: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raop_frames_behind_stddev",
			Help: "Running standard deviation of frames_behind.",
		}),
		KeepAliveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raop_keepalive_failures_total",
			Help: "Keep-alive FEEDBACK calls that returned an error.",
		}),
		SessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raop_session_state",
			Help: "Current lifecycle state: 0=Created 1=Initialized 2=Setup 3=Streaming 4=Stopped.",
		}),
	}
	for _, c := range []prometheus.Collector{
		r.SyncPacketsSent, r.RetransmitsServed, r.RetransmitsMissed,
		r.AudioPacketsSent, r.BacklogSize, r.FramesBehind,
		r.FramesBehindJitter, r.KeepAliveFailures, r.SessionState,
	} {
		if err := reg.Register(c); err != nil {
			are := &prometheus.AlreadyRegisteredError{}
			if !errors.As(err, are) {
				panic(err)
			}
		}
	}
	return r
}

// Serve starts an HTTP server exposing /metrics and blocks until ctx is
// cancelled or the server fails to start.
func (r *Registry) Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics: serve: %w", err)
		}
		return nil
	}
}
