package bluez

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/sousvide-ble/nano-go/pkg/transport"
)

// Defaults.
const (
	DefaultAdapter                 = "hci0"
	DefaultPollInterval            = 500 * time.Millisecond
	DefaultServicesResolvedTimeout = 15 * time.Second
)

// Config configures an Adapter.
type Config struct {
	// Adapter is the local controller name, e.g. "hci0".
	Adapter string

	// PollInterval is how often discovered devices are collected during a
	// scan and how often ServicesResolved is checked after connecting.
	PollInterval time.Duration

	// ServicesResolvedTimeout bounds GATT service discovery after connect.
	ServicesResolvedTimeout time.Duration

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Adapter talks to one local Bluetooth controller through BlueZ.
type Adapter struct {
	conn   *dbus.Conn
	cfg    Config
	owned  bool
	logger *slog.Logger
}

// New connects to the system bus and checks that the configured adapter
// exists.
func New(cfg Config) (*Adapter, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: system bus: %v", transport.ErrAdapterUnavailable, err)
	}
	a := NewWithConn(conn, cfg)
	a.owned = true

	if _, err := getProperty[bool](conn, adapterPath(a.cfg.Adapter), bluezAdapter1, "Powered"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %s: %v", transport.ErrAdapterUnavailable, a.cfg.Adapter, err)
	}
	return a, nil
}

// NewWithConn returns an Adapter using an existing bus connection.
func NewWithConn(conn *dbus.Conn, cfg Config) *Adapter {
	if cfg.Adapter == "" {
		cfg.Adapter = DefaultAdapter
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ServicesResolvedTimeout <= 0 {
		cfg.ServicesResolvedTimeout = DefaultServicesResolvedTimeout
	}
	return &Adapter{conn: conn, cfg: cfg, logger: cfg.Logger}
}

// Close releases the bus connection if New opened it.
func (a *Adapter) Close() error {
	if a.owned {
		return a.conn.Close()
	}
	return nil
}

// Scan implements transport.Adapter.
func (a *Adapter) Scan(ctx context.Context, serviceUUID string, found func(transport.Device)) error {
	adapter := a.conn.Object(bluezBus, adapterPath(a.cfg.Adapter))

	filter := map[string]dbus.Variant{
		"Transport": dbus.MakeVariant("le"),
	}
	if serviceUUID != "" {
		filter["UUIDs"] = dbus.MakeVariant([]string{serviceUUID})
	}
	if call := adapter.Call(bluezAdapter1+".SetDiscoveryFilter", 0, filter); call.Err != nil {
		return fmt.Errorf("set discovery filter: %w", call.Err)
	}
	if call := adapter.Call(bluezAdapter1+".StartDiscovery", 0); call.Err != nil {
		return fmt.Errorf("start discovery: %w", call.Err)
	}
	defer adapter.Call(bluezAdapter1+".StopDiscovery", 0)
	a.debugLog("bluez: discovery started", "adapter", a.cfg.Adapter, "service", serviceUUID)

	prefix := string(adapterPath(a.cfg.Adapter)) + "/"
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		objects, err := getManagedObjects(a.conn)
		if err != nil {
			a.debugLog("bluez: poll failed", "error", err)
		}
		for path, ifaces := range objects {
			props, ok := ifaces[bluezDevice1]
			if !ok || !strings.HasPrefix(string(path), prefix) {
				continue
			}
			if dev, ok := deviceFromProps(props); ok {
				found(dev)
			}
		}

		select {
		case <-ctx.Done():
			a.debugLog("bluez: discovery stopped", "adapter", a.cfg.Adapter)
			return nil
		case <-ticker.C:
		}
	}
}

// Connect implements transport.Adapter.
func (a *Adapter) Connect(ctx context.Context, dev transport.Device, onDisconnect func()) (transport.Conn, error) {
	path := devicePath(a.cfg.Adapter, dev.Address)
	device := a.conn.Object(bluezBus, path)

	connected, err := getProperty[bool](a.conn, path, bluezDevice1, "Connected")
	if err != nil || !connected {
		if call := device.CallWithContext(ctx, bluezDevice1+".Connect", 0); call.Err != nil {
			return nil, fmt.Errorf("connect %s: %w", dev.Address, call.Err)
		}
	}

	if err := a.waitServicesResolved(ctx, path); err != nil {
		device.Call(bluezDevice1+".Disconnect", 0)
		return nil, err
	}

	chars, err := a.discoverCharacteristics(path)
	if err != nil {
		device.Call(bluezDevice1+".Disconnect", 0)
		return nil, err
	}

	c := newConn(a.conn, dev, path, chars, onDisconnect, a.logger)
	if err := c.watch(); err != nil {
		device.Call(bluezDevice1+".Disconnect", 0)
		return nil, err
	}
	a.debugLog("bluez: connected", "device", dev.String())
	return c, nil
}

func (a *Adapter) waitServicesResolved(ctx context.Context, path dbus.ObjectPath) error {
	deadline := time.NewTimer(a.cfg.ServicesResolvedTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		resolved, err := getProperty[bool](a.conn, path, bluezDevice1, "ServicesResolved")
		if err == nil && resolved {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("service discovery timed out after %v", a.cfg.ServicesResolvedTimeout)
		case <-ticker.C:
		}
	}
}

// discoverCharacteristics maps lower-case characteristic UUIDs to object
// paths under the device.
func (a *Adapter) discoverCharacteristics(path dbus.ObjectPath) (map[string]dbus.ObjectPath, error) {
	objects, err := getManagedObjects(a.conn)
	if err != nil {
		return nil, err
	}

	prefix := string(path) + "/"
	chars := make(map[string]dbus.ObjectPath)
	for p, ifaces := range objects {
		props, ok := ifaces[bluezGattChar]
		if !ok || !strings.HasPrefix(string(p), prefix) {
			continue
		}
		if uuid, ok := variantValue[string](props, "UUID"); ok {
			chars[strings.ToLower(uuid)] = p
		}
	}

	for _, uuid := range []string{transport.WriteCharUUID, transport.NotifyCharUUID} {
		if _, ok := chars[uuid]; !ok {
			return nil, fmt.Errorf("%w: %s", transport.ErrCharacteristicAbsent, uuid)
		}
	}
	return chars, nil
}

func (a *Adapter) debugLog(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

var _ transport.Adapter = (*Adapter)(nil)
