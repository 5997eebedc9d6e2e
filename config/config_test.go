package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesWireProtocolConstants(t *testing.T) {
	cfg := Default()
	assert.Equal(t, uint32(88200), cfg.DefaultLatencyFrames)
	assert.Equal(t, 1000, cfg.BacklogCapacity)
	assert.Equal(t, 25, cfg.KeepAliveIntervalSeconds)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raop.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backlog_capacity: 500\nlog_level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.BacklogCapacity)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Fields absent from the file keep their default.
	assert.Equal(t, 25, cfg.KeepAliveIntervalSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/raop.yaml")
	assert.Error(t, err)
}
