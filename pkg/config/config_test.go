package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sousvide-ble/nano-go/pkg/connection"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10*time.Second, cfg.Timeouts.Discover)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Connect)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Response)
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)
	assert.False(t, cfg.Reconnect.Enabled)
	assert.Equal(t, connection.InitialBackoff, cfg.Reconnect.Backoff.Initial)
	assert.False(t, cfg.Relay.Enabled)
	assert.Empty(t, cfg.StatePath())
}

func TestParse(t *testing.T) {
	t.Run("OverridesDefaults", func(t *testing.T) {
		cfg, err := Parse([]byte(`
device:
  address: C8:2E:18:00:00:01
timeouts:
  response: 1500ms
poll:
  interval: 5s
reconnect:
  enabled: true
  backoff:
    initial: 500ms
    max: 1m
    max_attempts: 8
log:
  level: debug
  format: json
state_dir: /var/lib/nano
relay:
  enabled: true
  channel: kitchen
`))
		require.NoError(t, err)

		assert.Equal(t, "C8:2E:18:00:00:01", cfg.Device.Address)
		assert.Equal(t, 1500*time.Millisecond, cfg.Timeouts.Response)
		assert.Equal(t, 10*time.Second, cfg.Timeouts.Connect, "unset keys keep defaults")
		assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
		assert.True(t, cfg.Reconnect.Enabled)
		assert.Equal(t, 500*time.Millisecond, cfg.Reconnect.Backoff.Initial)
		assert.Equal(t, time.Minute, cfg.Reconnect.Backoff.Max)
		assert.Equal(t, 8, cfg.Reconnect.Backoff.MaxAttempts)
		assert.Equal(t, connection.BackoffMultiplier, cfg.Reconnect.Backoff.Multiplier)
		assert.Equal(t, "kitchen", cfg.Relay.Channel)
		assert.Equal(t, "localhost:6379", cfg.Relay.Addr)
		assert.Equal(t, filepath.Join("/var/lib/nano", "state.json"), cfg.StatePath())

		level, err := cfg.Log.SlogLevel()
		require.NoError(t, err)
		assert.Equal(t, slog.LevelDebug, level)
	})

	t.Run("Empty", func(t *testing.T) {
		cfg, err := Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("UnknownKey", func(t *testing.T) {
		_, err := Parse([]byte("poll:\n  intervall: 5s\n"))
		assert.Error(t, err)
	})

	t.Run("BadDuration", func(t *testing.T) {
		_, err := Parse([]byte("poll:\n  interval: soon\n"))
		assert.Error(t, err)
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := Parse([]byte("poll:\n  interval: 0s\nlog:\n  level: loud\n"))
		require.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), "poll.interval")
		assert.Contains(t, err.Error(), "log.level")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"DiscoverTimeout", func(c *Config) { c.Timeouts.Discover = 0 }},
		{"ConnectTimeout", func(c *Config) { c.Timeouts.Connect = -time.Second }},
		{"ResponseTimeout", func(c *Config) { c.Timeouts.Response = 0 }},
		{"Jitter", func(c *Config) { c.Reconnect.Backoff.Jitter = 1.5 }},
		{"MaxAttempts", func(c *Config) { c.Reconnect.Backoff.MaxAttempts = -1 }},
		{"LogFormat", func(c *Config) { c.Log.Format = "xml" }},
		{"RelayAddr", func(c *Config) {
			c.Relay.Enabled = true
			c.Relay.Addr = ""
		}},
		{"RelayTarget", func(c *Config) {
			c.Relay.Enabled = true
			c.Relay.Channel = ""
			c.Relay.ListKey = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nano.yaml")
		require.NoError(t, os.WriteFile(path, []byte("adapter: hci1\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "hci1", cfg.Adapter)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
