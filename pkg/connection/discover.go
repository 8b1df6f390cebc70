package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sousvide-ble/nano-go/pkg/transport"
)

// discoverPoll is how often Discover checks its deadline.
const discoverPoll = 100 * time.Millisecond

// DiscoverOptions configures Discover.
type DiscoverOptions struct {
	// Connect stops the scan at the first cooker found and connects to it.
	Connect bool

	// ListAll suppresses ErrDiscoveryTimeout when Connect found nothing.
	ListAll bool

	// Timeout bounds the scan. Zero uses Config.DiscoverTimeout.
	Timeout time.Duration
}

// Discover scans for cookers and returns every device seen that advertises
// the cooker service. With opts.Connect the first device that advertises
// the service or is named "Nano" ends the scan, becomes the remembered
// device, and is connected.
func (s *Session) Discover(ctx context.Context, opts DiscoverOptions) ([]transport.Device, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.cfg.DiscoverTimeout
	}

	scanCtx, stopScan := context.WithCancel(ctx)
	defer stopScan()

	var (
		mu        sync.Mutex
		seen      []transport.Device
		index     = make(map[string]int)
		candidate *transport.Device
	)
	found := func(dev transport.Device) {
		mu.Lock()
		defer mu.Unlock()

		if i, ok := index[dev.Address]; ok {
			seen[i] = dev
		} else {
			index[dev.Address] = len(seen)
			seen = append(seen, dev)
		}

		if !opts.Connect {
			s.debugLog("found device", "device", dev.String())
			return
		}
		if !dev.IsCooker() {
			s.debugLog("skipping unknown device", "device", dev.String())
			return
		}
		if candidate != nil {
			return
		}
		// Leave the scan running while another connect is in flight.
		if !s.connectLock.TryAcquire(1) {
			return
		}
		s.connectLock.Release(1)

		if s.logger != nil {
			s.logger.Info("found cooker", "device", dev.String(), "rssi", dev.RSSI)
		}
		d := dev
		candidate = &d
		stopScan()
	}

	scanDone := make(chan error, 1)
	go func() {
		scanDone <- s.adapter.Scan(scanCtx, transport.ServiceUUID, found)
	}()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(discoverPoll)
	defer ticker.Stop()

	var scanErr error
wait:
	for {
		select {
		case scanErr = <-scanDone:
			break wait
		case <-ticker.C:
			if time.Now().Before(deadline) {
				continue
			}
			stopScan()
			scanErr = <-scanDone
			break wait
		}
	}

	if scanErr != nil {
		return nil, fmt.Errorf("scan: %w", scanErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu.Lock()
	if candidate != nil {
		s.remember(*candidate)
	}
	devices := make([]transport.Device, 0, len(seen))
	for _, dev := range seen {
		if dev.AdvertisesService() {
			devices = append(devices, dev)
		}
	}
	mu.Unlock()

	if !opts.Connect {
		return devices, nil
	}

	target, ok := s.Device()
	if !ok {
		if opts.ListAll {
			return devices, nil
		}
		return devices, ErrDiscoveryTimeout
	}
	if err := s.connect(ctx, target, s.cfg.ConnectTimeout); err != nil {
		return devices, err
	}
	return devices, nil
}
