// Package config loads the engine-tunable settings not fixed by the wire
// protocol itself: buffer sizing, keep-alive cadence, and where to serve
// metrics and logs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the engine exposes beyond the wire protocol's
// own fixed constants (FramesPerPacket, MaxPacketsCompensate, the packet
// byte layouts) which are never configurable.
type Config struct {
	// DefaultLatencyFrames is the receiver buffer depth assumed absent
	// other information, in frames at the negotiated sample rate.
	DefaultLatencyFrames uint32 `yaml:"default_latency_frames"`
	// BacklogCapacity bounds the retransmit backlog.
	BacklogCapacity int `yaml:"backlog_capacity"`
	// KeepAliveIntervalSeconds is how often FEEDBACK is issued while
	// streaming.
	KeepAliveIntervalSeconds int `yaml:"keep_alive_interval_seconds"`
	// MetricsListenAddr is the address the Prometheus /metrics endpoint
	// binds to. Empty disables the metrics server.
	MetricsListenAddr string `yaml:"metrics_listen_addr"`
	// LogLevel is a zerolog level name: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
}

// Default returns the baseline configuration: 2s of latency buffering at
// 44.1kHz, a 1000-entry retransmit backlog, and a 25s keep-alive cadence.
func Default() Config {
	return Config{
		DefaultLatencyFrames:     88200,
		BacklogCapacity:          1000,
		KeepAliveIntervalSeconds: 25,
		MetricsListenAddr:        "",
		LogLevel:                 "info",
	}
}

// Load reads a YAML config file from path, starting from Default and
// overriding only the fields present in the file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
