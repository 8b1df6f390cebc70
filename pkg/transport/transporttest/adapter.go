package transporttest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sousvide-ble/nano-go/pkg/transport"
)

// Adapter is an in-memory transport.Adapter.
type Adapter struct {
	mu          sync.Mutex
	peripherals []*Peripheral
	connectErr  error
	scanDelay   time.Duration

	scans    atomic.Int32
	connects atomic.Int32
}

// NewAdapter returns an adapter that can see the given peripherals.
func NewAdapter(peripherals ...*Peripheral) *Adapter {
	return &Adapter{peripherals: peripherals}
}

// Add makes another peripheral visible.
func (a *Adapter) Add(p *Peripheral) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.peripherals = append(a.peripherals, p)
}

// SetConnectError makes subsequent Connect calls fail with err.
func (a *Adapter) SetConnectError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectErr = err
}

// SetScanDelay delays the first advertisement reported by Scan.
func (a *Adapter) SetScanDelay(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scanDelay = d
}

// Scans returns how many scans were started.
func (a *Adapter) Scans() int { return int(a.scans.Load()) }

// Connects returns how many connect attempts were made.
func (a *Adapter) Connects() int { return int(a.connects.Load()) }

// Scan implements transport.Adapter.
func (a *Adapter) Scan(ctx context.Context, serviceUUID string, found func(transport.Device)) error {
	a.scans.Add(1)

	a.mu.Lock()
	peripherals := append([]*Peripheral(nil), a.peripherals...)
	delay := a.scanDelay
	a.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}

	for _, p := range peripherals {
		dev := p.Device()
		if serviceUUID != "" && !dev.AdvertisesService() && dev.Name != transport.DeviceLocalName {
			continue
		}
		found(dev)
	}

	<-ctx.Done()
	return nil
}

// Connect implements transport.Adapter.
func (a *Adapter) Connect(ctx context.Context, dev transport.Device, onDisconnect func()) (transport.Conn, error) {
	a.connects.Add(1)

	a.mu.Lock()
	err := a.connectErr
	var target *Peripheral
	for _, p := range a.peripherals {
		if p.Device().Address == dev.Address {
			target = p
			break
		}
	}
	a.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, transport.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return target.attach(onDisconnect), nil
}

var _ transport.Adapter = (*Adapter)(nil)
