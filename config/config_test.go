package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("VENDING_MACHINE_TYPE", "snack")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "snack", cfg.Machine.Type)
	assert.Equal(t, 0, cfg.Machine.InstanceID)
	assert.Equal(t, "http://localhost:8080", cfg.Controller.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Controller.Timeout)
	assert.Equal(t, TransportSSE, cfg.Controller.StreamTransport)
	assert.Equal(t, 3*time.Second, cfg.Controller.ReconnectDelay)
	assert.Equal(t, 5.0, cfg.Controller.CommandRate)
	assert.Equal(t, 3, cfg.Controller.CommandBurst)
	assert.Equal(t, uint32(5), cfg.Controller.BreakerFailures)
	assert.Equal(t, 10*time.Second, cfg.Controller.BreakerTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1:8089", cfg.HTTP.Addr)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vending.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
machine:
  type: coffee
  instance_id: 2
controller:
  base_url: http://file:9000
  stream_transport: ws
log:
  level: debug
`), 0o600))

	t.Setenv("VENDING_CONTROLLER_BASE_URL", "http://env:9001")

	flags := Flags()
	require.NoError(t, flags.Set("machine.instance_id", "7"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "coffee", cfg.Machine.Type, "from file")
	assert.Equal(t, 7, cfg.Machine.InstanceID, "flag beats file")
	assert.Equal(t, "http://env:9001", cfg.Controller.BaseURL, "env beats file")
	assert.Equal(t, TransportWebsocket, cfg.Controller.StreamTransport)

	lvl, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoadConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing machine type", env: map[string]string{}},
		{name: "unknown transport", env: map[string]string{"VENDING_MACHINE_TYPE": "x", "VENDING_CONTROLLER_STREAM_TRANSPORT": "grpc"}},
		{name: "unknown log format", env: map[string]string{"VENDING_MACHINE_TYPE": "x", "VENDING_LOG_FORMAT": "xml"}},
		{name: "unknown log level", env: map[string]string{"VENDING_MACHINE_TYPE": "x", "VENDING_LOG_LEVEL": "loud"}},
		{name: "sample ratio out of range", env: map[string]string{"VENDING_MACHINE_TYPE": "x", "VENDING_TRACING_SAMPLE_RATIO": "2"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("VENDING_MACHINE_TYPE", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig("", nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestConfig_WatchWithoutFileIsNoOp(t *testing.T) {
	t.Setenv("VENDING_MACHINE_TYPE", "snack")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		cfg.Watch(func(*Config) { t.Fatal("unexpected reload") }, nil)
	})
}
