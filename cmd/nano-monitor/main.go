// Command nano-monitor connects to a Nano sous-vide cooker over Bluetooth LE
// and reports its sensors.
//
// It offers:
//   - one-shot commands (set temperature, timer, unit, start, stop)
//   - background polling with snapshots saved to a state file
//   - SQLite snapshot history and Redis publishing
//   - a Prometheus metrics endpoint
//
// Usage:
//
//	nano-monitor [flags]
//
// Flags:
//
//	-config string     Configuration file path
//	-address string    Cooker address (discovered if empty)
//	-log-level string  Log level: debug, info, warn, error (overrides config)
//	-set-temp float    Set the target temperature before monitoring
//	-set-timer int     Set the cooking timer in minutes before monitoring
//	-set-unit string   Set the display unit, C or F, before monitoring
//	-start             Start cooking before monitoring
//	-stop              Stop cooking before monitoring
//	-once              Print the status and exit
//	-version           Show version information
//
// Examples:
//
//	# Discover a cooker and print its status
//	nano-monitor -once
//
//	# Start a cook at 57.5 degrees and monitor it
//	nano-monitor -config /etc/nano/monitor.yaml -set-temp 57.5 -start
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sousvide-ble/nano-go/pkg/config"
	"github.com/sousvide-ble/nano-go/pkg/cooker"
	"github.com/sousvide-ble/nano-go/pkg/history"
	nanolog "github.com/sousvide-ble/nano-go/pkg/log"
	"github.com/sousvide-ble/nano-go/pkg/metrics"
	"github.com/sousvide-ble/nano-go/pkg/persistence"
	"github.com/sousvide-ble/nano-go/pkg/relay"
	"github.com/sousvide-ble/nano-go/pkg/transport"
	"github.com/sousvide-ble/nano-go/pkg/transport/bluez"
)

// Version information - set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "dev"
	GitCommit = "unknown"
)

const pruneInterval = time.Hour

var (
	configPath  = flag.String("config", "", "Configuration file path")
	address     = flag.String("address", "", "Cooker address (discovered if empty)")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	setTemp     = flag.Float64("set-temp", math.NaN(), "Set the target temperature before monitoring")
	setTimer    = flag.Int("set-timer", -1, "Set the cooking timer in minutes before monitoring")
	setUnit     = flag.String("set-unit", "", "Set the display unit, C or F, before monitoring")
	start       = flag.Bool("start", false, "Start cooking before monitoring")
	stop        = flag.Bool("stop", false, "Stop cooking before monitoring")
	once        = flag.Bool("once", false, "Print the status and exit")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Printf("nano-monitor %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		return 0
	}
	if *start && *stop {
		fmt.Fprintln(os.Stderr, "Error: -start and -stop are mutually exclusive")
		return 2
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := monitorCooker(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("nano-monitor failed", "error", err)
		return 1
	}
	return 0
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if *address != "" {
		cfg.Device.Address = *address
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	return cfg, cfg.Validate()
}

func newLogger(lc config.LogConfig) (*slog.Logger, error) {
	level, err := lc.SlogLevel()
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", lc.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func monitorCooker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	adapter, err := bluez.New(bluez.Config{Adapter: cfg.Adapter, Logger: logger})
	if err != nil {
		return err
	}
	defer adapter.Close()

	protoLog, closeProtoLog, err := newProtocolLogger(cfg.Log, logger)
	if err != nil {
		return err
	}
	defer closeProtoLog()

	var (
		state  *persistence.ClientState
		states *persistence.StateStore
	)
	if path := cfg.StatePath(); path != "" {
		if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
			return fmt.Errorf("state dir: %w", err)
		}
		states = persistence.NewStateStore(path)
		if state, err = states.Load(); err != nil {
			logger.Warn("ignoring unreadable state file", "path", path, "error", err)
			state = nil
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Address != "" {
		reg := prometheus.NewRegistry()
		if m, err = metrics.New(reg, nil); err != nil {
			return err
		}
		srv := serveMetrics(cfg.Metrics.Address, reg, logger)
		defer srv.Close()
	}

	client := cooker.New(cooker.Config{
		Adapter:         adapter,
		Device:          targetDevice(cfg.Device, state),
		ConnectTimeout:  cfg.Timeouts.Connect,
		DiscoverTimeout: cfg.Timeouts.Discover,
		ResponseTimeout: cfg.Timeouts.Response,
		PollInterval:    cfg.Poll.Interval,
		Reconnect:       cfg.Reconnect,
		Logger:          logger,
		ProtocolLogger:  protoLog,
		Metrics:         m,
	})
	defer client.Close()

	mon := newMonitor(client, logger)
	mon.state = states
	mon.autostart = cfg.Poll.Autostart && !*once
	mon.restore(state)

	if cfg.History.Path != "" {
		if mon.history, err = history.Open(cfg.History.Path); err != nil {
			return err
		}
		defer mon.history.Close()
	}
	if cfg.Relay.Enabled {
		mon.relay, err = relay.Dial(ctx, &redis.Options{
			Addr:     cfg.Relay.Addr,
			Password: cfg.Relay.Password,
			DB:       cfg.Relay.DB,
		}, relay.Options{
			Channel: cfg.Relay.Channel,
			ListKey: cfg.Relay.ListKey,
			ListLen: cfg.Relay.ListLen,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		defer mon.relay.Close()
	}
	mon.attach()
	defer func() {
		client.StopPoll()
		mon.wait()
	}()

	if err := client.Connect(ctx, nil); err != nil {
		return err
	}
	if err := applyCommands(ctx, client); err != nil {
		return err
	}

	if *once {
		return printStatus(ctx, client)
	}

	pruneDone := make(chan struct{})
	go func() {
		defer close(pruneDone)
		mon.prune(ctx, cfg.History.Retention, pruneInterval)
	}()

	<-ctx.Done()
	<-pruneDone
	logger.Info("shutting down")
	return nil
}

func targetDevice(dc config.DeviceConfig, state *persistence.ClientState) *transport.Device {
	switch {
	case dc.Address != "":
		return &transport.Device{Address: dc.Address, Name: dc.Name}
	case state != nil && state.Device != nil:
		dev := state.Device.Device()
		return &dev
	default:
		return nil
	}
}

func newProtocolLogger(lc config.LogConfig, logger *slog.Logger) (nanolog.Logger, func(), error) {
	loggers := []nanolog.Logger{nanolog.NewSlogAdapter(logger)}
	closeFn := func() {}

	if lc.ProtocolLog != "" {
		fl, err := nanolog.NewFileLogger(lc.ProtocolLog)
		if err != nil {
			return nil, nil, fmt.Errorf("protocol log: %w", err)
		}
		loggers = append(loggers, fl)
		closeFn = func() {
			if err := fl.Close(); err != nil {
				logger.Warn("failed to close protocol log", "error", err)
			}
			if n := fl.Dropped(); n > 0 {
				logger.Warn("protocol log dropped events", "count", n)
			}
		}
	}
	return nanolog.NewMultiLogger(loggers...), closeFn, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

func applyCommands(ctx context.Context, client *cooker.Client) error {
	if *setUnit != "" {
		if err := client.SetUnit(ctx, *setUnit); err != nil {
			return fmt.Errorf("set unit: %w", err)
		}
	}
	if !math.IsNaN(*setTemp) {
		if err := client.SetTargetTemperature(ctx, *setTemp); err != nil {
			return fmt.Errorf("set temperature: %w", err)
		}
	}
	if *setTimer >= 0 {
		if err := client.SetTimer(ctx, int32(*setTimer)); err != nil {
			return fmt.Errorf("set timer: %w", err)
		}
	}
	switch {
	case *start:
		if _, err := client.Start(ctx); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	case *stop:
		if _, err := client.Stop(ctx); err != nil {
			return fmt.Errorf("stop: %w", err)
		}
	}
	return nil
}

func printStatus(ctx context.Context, client *cooker.Client) error {
	fw, err := client.FirmwareInfo(ctx)
	if err != nil {
		return err
	}
	v, err := client.SensorValues(ctx)
	if err != nil {
		return err
	}
	target, err := client.TargetTemperature(ctx)
	if err != nil {
		return err
	}
	timer, err := client.Timer(ctx)
	if err != nil {
		return err
	}

	dev, _ := client.Device()
	fmt.Printf("Cooker:   %s\n", dev)
	fmt.Printf("Firmware: %s (%s)\n", fw.Version, fw.BuildDate)
	fmt.Printf("Status:   %s\n", v.Status())
	fmt.Printf("Water:    %s (target %g%s)\n", v.WaterTemp, target, v.WaterTemp.Unit)
	fmt.Printf("Timer:    %d min\n", timer)
	if v.WaterLow {
		fmt.Println("Warning:  water level low")
	}
	if v.WaterLeak {
		fmt.Println("Warning:  water leak detected")
	}
	return nil
}
