package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sousvide-ble/nano-go/pkg/connection"
	"github.com/sousvide-ble/nano-go/pkg/cooker"
	"github.com/sousvide-ble/nano-go/pkg/history"
	"github.com/sousvide-ble/nano-go/pkg/persistence"
	"github.com/sousvide-ble/nano-go/pkg/relay"
	"github.com/sousvide-ble/nano-go/pkg/sensor"
)

// sinkTimeout bounds the writes made for one snapshot.
const sinkTimeout = 5 * time.Second

// monitor forwards client events to the optional state file, history
// database and Redis relay. Nil sinks are skipped.
type monitor struct {
	client  *cooker.Client
	state   *persistence.StateStore
	history *history.Store
	relay   *relay.Relay
	logger  *slog.Logger
	now     func() time.Time

	// autostart restarts polling each time the link comes up.
	autostart bool

	mu      sync.Mutex
	pending sync.WaitGroup
}

func newMonitor(client *cooker.Client, logger *slog.Logger) *monitor {
	return &monitor{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// restore seeds the client cache from a loaded state file.
func (m *monitor) restore(st *persistence.ClientState) {
	if st == nil {
		return
	}
	if st.Snapshot != nil {
		m.client.RestoreStatus(st.Snapshot.Values())
	}
	if st.PollInterval > 0 {
		m.client.SetPollInterval(st.PollInterval)
	}
}

// attach subscribes the monitor to client events.
func (m *monitor) attach() {
	m.client.OnStateChange(m.handleStateChange)
	m.client.Subscribe(m.handleSnapshot)
}

// wait blocks until in-flight sink writes finish.
func (m *monitor) wait() {
	m.pending.Wait()
}

func (m *monitor) handleStateChange(sc connection.StateChange) {
	if sc.New != connection.StateConnected {
		return
	}
	if m.autostart {
		m.client.StartPoll(0)
	}
	if m.state == nil {
		return
	}
	dev, ok := m.client.Device()
	if !ok {
		return
	}
	err := m.state.Update(func(st *persistence.ClientState) {
		st.Device = persistence.NewDeviceRecord(dev, m.now())
		st.PollInterval = m.client.PollInterval()
	})
	if err != nil {
		m.logger.Warn("failed to save device", "error", err)
	}
}

func (m *monitor) handleSnapshot(v sensor.Values) {
	m.pending.Add(1)
	defer m.pending.Done()

	// Snapshots from consecutive polls are written in order.
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	takenAt := m.now()
	var address string
	if dev, ok := m.client.Device(); ok {
		address = dev.Address
	}

	m.logger.Info("sensor update", "address", address, "status", v.Status(), "values", v)

	if m.state != nil {
		err := m.state.Update(func(st *persistence.ClientState) {
			st.Snapshot = persistence.NewSnapshotRecord(v, takenAt)
		})
		if err != nil {
			m.logger.Warn("failed to save snapshot", "error", err)
		}
	}
	if m.history != nil {
		if err := m.history.Record(ctx, address, takenAt, v); err != nil {
			m.logger.Warn("failed to record snapshot", "error", err)
		}
	}
	if m.relay != nil {
		if err := m.relay.Publish(ctx, address, takenAt, v); err != nil {
			m.logger.Warn("failed to publish snapshot", "error", err)
		}
	}
}

// prune deletes history older than retention every interval until ctx is
// done.
func (m *monitor) prune(ctx context.Context, retention, interval time.Duration) {
	if m.history == nil || retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := m.history.Prune(ctx, m.now().Add(-retention))
		switch {
		case err != nil && ctx.Err() == nil:
			m.logger.Warn("failed to prune history", "error", err)
		case n > 0:
			m.logger.Debug("pruned history", "rows", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
