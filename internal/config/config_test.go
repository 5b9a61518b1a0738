package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "pulserate.sqlite3", cfg.Storage.DBPath)
	assert.Equal(t, 50, cfg.Monitor.SampleRate)
	assert.Equal(t, 3.0, cfg.Monitor.WindowSeconds)
	assert.Equal(t, 5, cfg.Monitor.SmoothingWindow)
	assert.Equal(t, 2*time.Second, cfg.Monitor.ComputeInterval)
	assert.Equal(t, "ppg.samples", cfg.NATS.SamplesSubject)
	assert.Equal(t, "ppg.rate", cfg.NATS.RateSubject)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	yaml := `
server:
  port: 9090
  origins: "http://a.test, http://b.test"
monitor:
  sample_rate: 100
  window_seconds: 4
  compute_interval: 500ms
nats:
  url: nats://broker:4222
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.OriginList())
	assert.Equal(t, 100, cfg.Monitor.SampleRate)
	assert.Equal(t, 4.0, cfg.Monitor.WindowSeconds)
	assert.Equal(t, 500*time.Millisecond, cfg.Monitor.ComputeInterval)
	assert.Equal(t, 5, cfg.Monitor.SmoothingWindow, "unset keys keep defaults")
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PULSE_SERVER_PORT", "7000")
	t.Setenv("PULSE_STORAGE_DB_PATH", "/data/pulse.db")
	t.Setenv("PULSE_MONITOR_SMOOTHING_WINDOW", "8")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "/data/pulse.db", cfg.Storage.DBPath)
	assert.Equal(t, 8, cfg.Monitor.SmoothingWindow)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidMonitor(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PULSE_MONITOR_SAMPLE_RATE", "0")

	_, err := Load("")
	assert.ErrorContains(t, err, "sample_rate")
}

func TestOriginList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{"*"}},
		{"*", []string{"*"}},
		{"http://x", []string{"http://x"}},
		{" http://x ,, http://y", []string{"http://x", "http://y"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ServerConfig{Origins: tt.in}.OriginList(), tt.in)
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
