package bluez

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"

	"github.com/sousvide-ble/nano-go/pkg/transport"
)

// Conn is a GATT connection through BlueZ.
type Conn struct {
	bus    *dbus.Conn
	dev    transport.Device
	path   dbus.ObjectPath
	chars  map[string]dbus.ObjectPath
	logger *slog.Logger

	onDisconnect func()
	connected    atomic.Bool
	closeOnce    sync.Once
	stopCh       chan struct{}
	matchRule    string

	mu      sync.Mutex
	subs    map[dbus.ObjectPath]map[int]func([]byte)
	nextSub int
}

func newConn(bus *dbus.Conn, dev transport.Device, path dbus.ObjectPath, chars map[string]dbus.ObjectPath, onDisconnect func(), logger *slog.Logger) *Conn {
	c := &Conn{
		bus:          bus,
		dev:          dev,
		path:         path,
		chars:        chars,
		logger:       logger,
		onDisconnect: onDisconnect,
		stopCh:       make(chan struct{}),
		subs:         make(map[dbus.ObjectPath]map[int]func([]byte)),
	}
	c.connected.Store(true)
	return c
}

// watch routes PropertiesChanged signals below the device path.
func (c *Conn) watch() error {
	c.matchRule = fmt.Sprintf(
		"type='signal',sender='%s',interface='%s',member='PropertiesChanged',path_namespace='%s'",
		bluezBus, dbusProperties, c.path,
	)
	if call := c.bus.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, c.matchRule); call.Err != nil {
		return fmt.Errorf("add signal match: %w", call.Err)
	}

	sigCh := make(chan *dbus.Signal, 64)
	c.bus.Signal(sigCh)

	go func() {
		defer c.bus.RemoveSignal(sigCh)
		for {
			select {
			case <-c.stopCh:
				return
			case sig, ok := <-sigCh:
				if !ok {
					c.lost()
					return
				}
				c.handleSignal(sig)
			}
		}
	}()
	return nil
}

func (c *Conn) handleSignal(sig *dbus.Signal) {
	if sig.Name != dbusProperties+".PropertiesChanged" || len(sig.Body) < 2 {
		return
	}
	iface, _ := sig.Body[0].(string)
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	switch {
	case sig.Path == c.path && iface == bluezDevice1:
		if connected, ok := variantValue[bool](changed, "Connected"); ok && !connected {
			c.lost()
		}
	case iface == bluezGattChar:
		value, ok := variantValue[[]byte](changed, "Value")
		if !ok {
			return
		}
		c.mu.Lock()
		handlers := make([]func([]byte), 0, len(c.subs[sig.Path]))
		for _, h := range c.subs[sig.Path] {
			handlers = append(handlers, h)
		}
		c.mu.Unlock()
		for _, h := range handlers {
			h(value)
		}
	}
}

// lost marks the connection closed and fires onDisconnect once.
func (c *Conn) lost() {
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		close(c.stopCh)
		c.bus.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, c.matchRule)
		if c.logger != nil {
			c.logger.Debug("bluez: disconnected", "device", c.dev.String())
		}
		if c.onDisconnect != nil {
			go c.onDisconnect()
		}
	})
}

func (c *Conn) charPath(uuid string) (dbus.ObjectPath, error) {
	p, ok := c.chars[strings.ToLower(uuid)]
	if !ok {
		return "", fmt.Errorf("%w: %s", transport.ErrCharacteristicAbsent, uuid)
	}
	return p, nil
}

// Device implements transport.Conn.
func (c *Conn) Device() transport.Device {
	return c.dev
}

// Write implements transport.Conn.
func (c *Conn) Write(ctx context.Context, charUUID string, data []byte, withResponse bool) error {
	if !c.connected.Load() {
		return transport.ErrNotConnected
	}
	p, err := c.charPath(charUUID)
	if err != nil {
		return err
	}

	writeType := "command"
	if withResponse {
		writeType = "request"
	}
	call := c.bus.Object(bluezBus, p).CallWithContext(ctx, bluezGattChar+".WriteValue", 0, data, map[string]dbus.Variant{
		"type": dbus.MakeVariant(writeType),
	})
	if call.Err != nil {
		return fmt.Errorf("write %s: %w", charUUID, call.Err)
	}
	return nil
}

// Subscribe implements transport.Conn.
func (c *Conn) Subscribe(charUUID string, onChunk func([]byte)) (func(), error) {
	if !c.connected.Load() {
		return nil, transport.ErrNotConnected
	}
	p, err := c.charPath(charUUID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.subs[p]) == 0 {
		if call := c.bus.Object(bluezBus, p).Call(bluezGattChar+".StartNotify", 0); call.Err != nil {
			return nil, fmt.Errorf("start notify %s: %w", charUUID, call.Err)
		}
		c.subs[p] = make(map[int]func([]byte))
	}
	id := c.nextSub
	c.nextSub++
	c.subs[p][id] = onChunk

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[p][id]; !ok {
			return
		}
		delete(c.subs[p], id)
		if len(c.subs[p]) == 0 && c.connected.Load() {
			c.bus.Object(bluezBus, p).Call(bluezGattChar+".StopNotify", 0)
		}
	}, nil
}

// Disconnect implements transport.Conn.
func (c *Conn) Disconnect() error {
	if !c.connected.Load() {
		return nil
	}
	call := c.bus.Object(bluezBus, c.path).Call(bluezDevice1+".Disconnect", 0)
	c.lost()
	if call.Err != nil {
		return fmt.Errorf("disconnect %s: %w", c.dev.Address, call.Err)
	}
	return nil
}

// Connected implements transport.Conn.
func (c *Conn) Connected() bool {
	return c.connected.Load()
}

var _ transport.Conn = (*Conn)(nil)
