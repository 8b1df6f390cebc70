// Package config loads the monitor daemon's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sousvide-ble/nano-go/pkg/connection"
	"github.com/sousvide-ble/nano-go/pkg/interaction"
	"github.com/sousvide-ble/nano-go/pkg/poller"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root of the configuration file.
type Config struct {
	Device    DeviceConfig               `yaml:"device"`
	Adapter   string                     `yaml:"adapter"`
	Timeouts  TimeoutConfig              `yaml:"timeouts"`
	Poll      PollConfig                 `yaml:"poll"`
	Reconnect connection.ReconnectPolicy `yaml:"reconnect"`
	Log       LogConfig                  `yaml:"log"`
	StateDir  string                     `yaml:"state_dir"`
	History   HistoryConfig              `yaml:"history"`
	Metrics   MetricsConfig              `yaml:"metrics"`
	Relay     RelayConfig                `yaml:"relay"`
}

// DeviceConfig selects the cooker. An empty address means discover.
type DeviceConfig struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
}

// TimeoutConfig holds the protocol deadlines.
type TimeoutConfig struct {
	Discover time.Duration `yaml:"discover"`
	Connect  time.Duration `yaml:"connect"`
	Response time.Duration `yaml:"response"`
}

// PollConfig controls background sensor polling.
type PollConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Autostart bool          `yaml:"autostart"`
}

// LogConfig controls operational and protocol logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	ProtocolLog string `yaml:"protocol_log"`
}

// HistoryConfig configures the snapshot database. An empty path disables it.
type HistoryConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// RelayConfig configures publishing snapshots to Redis.
type RelayConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	ListKey  string `yaml:"list_key"`
	ListLen  int64  `yaml:"list_len"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Adapter: "hci0",
		Timeouts: TimeoutConfig{
			Discover: connection.DefaultDiscoverTimeout,
			Connect:  connection.DefaultConnectTimeout,
			Response: interaction.DefaultResponseTimeout,
		},
		Poll: PollConfig{
			Interval:  poller.DefaultInterval,
			Autostart: true,
		},
		Reconnect: connection.ReconnectPolicy{
			Backoff: connection.BackoffConfig{
				Initial:    connection.InitialBackoff,
				Max:        connection.MaxBackoff,
				Multiplier: connection.BackoffMultiplier,
				Jitter:     connection.JitterFactor,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		History: HistoryConfig{
			Retention: 30 * 24 * time.Hour,
		},
		Relay: RelayConfig{
			Addr:    "localhost:6379",
			Channel: "nano:snapshots",
			ListKey: "nano:history",
			ListLen: 1000,
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Timeouts.Discover > 0, "timeouts.discover must be positive")
	check(c.Timeouts.Connect > 0, "timeouts.connect must be positive")
	check(c.Timeouts.Response > 0, "timeouts.response must be positive")
	check(c.Poll.Interval > 0, "poll.interval must be positive")
	check(c.Reconnect.Backoff.Initial >= 0, "reconnect.backoff.initial must not be negative")
	check(c.Reconnect.Backoff.MaxAttempts >= 0, "reconnect.backoff.max_attempts must not be negative")
	check(c.Reconnect.Backoff.Jitter >= 0 && c.Reconnect.Backoff.Jitter <= 1, "reconnect.backoff.jitter must be within [0, 1]")
	check(c.History.Retention >= 0, "history.retention must not be negative")

	_, err := c.Log.SlogLevel()
	check(err == nil, fmt.Sprintf("log.level %q is not a level", c.Log.Level))
	check(c.Log.Format == "text" || c.Log.Format == "json", fmt.Sprintf("log.format %q must be text or json", c.Log.Format))

	if c.Relay.Enabled {
		check(c.Relay.Addr != "", "relay.addr is required when the relay is enabled")
		check(c.Relay.Channel != "" || c.Relay.ListKey != "", "relay needs a channel or a list_key")
		check(c.Relay.ListLen >= 0, "relay.list_len must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}

// StatePath returns the path of the persisted state file, or "" when no
// state directory is configured.
func (c *Config) StatePath() string {
	if c.StateDir == "" {
		return ""
	}
	return filepath.Join(c.StateDir, "state.json")
}
