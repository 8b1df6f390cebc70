package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sousvide-ble/nano-go/pkg/config"
	"github.com/sousvide-ble/nano-go/pkg/connection"
	"github.com/sousvide-ble/nano-go/pkg/cooker"
	"github.com/sousvide-ble/nano-go/pkg/history"
	"github.com/sousvide-ble/nano-go/pkg/persistence"
	"github.com/sousvide-ble/nano-go/pkg/relay"
	"github.com/sousvide-ble/nano-go/pkg/sensor"
	"github.com/sousvide-ble/nano-go/pkg/transport"
	"github.com/sousvide-ble/nano-go/pkg/transport/transporttest"
)

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func (f *fakePublisher) LPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	return redis.NewIntCmd(ctx)
}

func (f *fakePublisher) LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd {
	return redis.NewStatusCmd(ctx)
}

func (f *fakePublisher) published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channels)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type monitorFixture struct {
	cooker    *transporttest.Cooker
	client    *cooker.Client
	mon       *monitor
	states    *persistence.StateStore
	publisher *fakePublisher
}

func newMonitorFixture(t *testing.T, opts ...func(*cooker.Config)) *monitorFixture {
	t.Helper()

	ck := transporttest.NewCooker("C8:2E:18:00:20:01")
	cfg := cooker.Config{
		Adapter:    transporttest.NewAdapter(ck.Peripheral),
		UnitSettle: -1,
		Logger:     discardLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	client := cooker.New(cfg)
	t.Cleanup(func() { _ = client.Close() })

	store, err := history.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	pub := &fakePublisher{}
	f := &monitorFixture{
		cooker:    ck,
		client:    client,
		mon:       newMonitor(client, discardLogger()),
		states:    persistence.NewStateStore(filepath.Join(t.TempDir(), "state.json")),
		publisher: pub,
	}
	f.mon.state = f.states
	f.mon.history = store
	f.mon.relay = relay.New(pub, relay.Options{Channel: "nano:snapshots"})
	f.mon.attach()
	return f
}

func TestMonitorSavesDeviceOnConnect(t *testing.T) {
	f := newMonitorFixture(t)
	f.client.SetPollInterval(2 * time.Minute)

	require.NoError(t, f.client.Connect(context.Background(), nil))

	st, err := f.states.Load()
	require.NoError(t, err)
	require.NotNil(t, st)
	require.NotNil(t, st.Device)
	assert.Equal(t, "C8:2E:18:00:20:01", st.Device.Address)
	assert.Equal(t, 2*time.Minute, st.PollInterval)
}

func TestMonitorForwardsSnapshots(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()
	require.NoError(t, f.client.Connect(ctx, nil))

	f.client.StartPoll(5 * time.Millisecond)
	require.Eventually(t, func() bool { return f.publisher.published() > 0 }, 2*time.Second, time.Millisecond)
	f.client.StopPoll()
	f.mon.wait()

	entry, err := f.mon.history.Latest(ctx, "C8:2E:18:00:20:01")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 21.3, entry.Values.WaterTemp.Value)

	st, err := f.states.Load()
	require.NoError(t, err)
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, 21.3, st.Snapshot.WaterTemp)
	assert.Equal(t, sensor.Celsius, st.Snapshot.Unit)
}

func TestMonitorAutostart(t *testing.T) {
	t.Run("StartsOnConnect", func(t *testing.T) {
		f := newMonitorFixture(t)
		f.mon.autostart = true
		f.client.SetPollInterval(5 * time.Millisecond)

		require.NoError(t, f.client.Connect(context.Background(), nil))
		assert.True(t, f.client.IsPolling())
		require.Eventually(t, func() bool { return f.publisher.published() > 0 }, 2*time.Second, time.Millisecond)
	})

	t.Run("RestartsAfterReconnect", func(t *testing.T) {
		f := newMonitorFixture(t, func(cfg *cooker.Config) {
			cfg.Reconnect = connection.ReconnectPolicy{
				Enabled: true,
				Backoff: connection.BackoffConfig{Initial: 20 * time.Millisecond},
			}
		})
		f.mon.autostart = true
		f.client.SetPollInterval(5 * time.Millisecond)

		require.NoError(t, f.client.Connect(context.Background(), nil))
		require.Eventually(t, func() bool { return f.publisher.published() > 0 }, 2*time.Second, time.Millisecond)

		f.cooker.Drop()
		require.Eventually(t, func() bool { return !f.client.IsConnected() }, 2*time.Second, time.Millisecond)
		require.Eventually(t, func() bool { return f.client.IsConnected() }, 2*time.Second, time.Millisecond)
		before := f.publisher.published()

		require.Eventually(t, func() bool { return f.client.IsPolling() }, 2*time.Second, time.Millisecond)
		require.Eventually(t, func() bool { return f.publisher.published() > before }, 2*time.Second, time.Millisecond)
	})

	t.Run("Off", func(t *testing.T) {
		f := newMonitorFixture(t)
		require.NoError(t, f.client.Connect(context.Background(), nil))
		assert.False(t, f.client.IsPolling())
	})
}

func TestMonitorRestore(t *testing.T) {
	f := newMonitorFixture(t)

	f.mon.restore(nil)
	_, ok := f.client.LastStatus()
	assert.False(t, ok)

	saved := sensor.Values{
		WaterTemp:  sensor.Temperature{Value: 55.5, Unit: sensor.Celsius},
		MotorSpeed: 1200,
	}
	f.mon.restore(&persistence.ClientState{
		Snapshot:     persistence.NewSnapshotRecord(saved, time.Now()),
		PollInterval: time.Minute,
	})

	last, ok := f.client.LastStatus()
	require.True(t, ok)
	assert.Equal(t, 55.5, last.WaterTemp.Value)
	assert.Equal(t, sensor.StatusRunning, last.Status())
	assert.Equal(t, time.Minute, f.client.PollInterval())
}

func TestMonitorPrune(t *testing.T) {
	f := newMonitorFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.mon.now = func() time.Time { return now }

	v := sensor.Values{WaterTemp: sensor.Temperature{Value: 50, Unit: sensor.Celsius}}
	require.NoError(t, f.mon.history.Record(ctx, "dev", now.Add(-48*time.Hour), v))
	require.NoError(t, f.mon.history.Record(ctx, "dev", now.Add(-time.Hour), v))

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.mon.prune(ctx, 24*time.Hour, time.Hour)
	}()

	require.Eventually(t, func() bool {
		entries, err := f.mon.history.Range(ctx, "dev", time.Time{}, time.Time{}, 0)
		return err == nil && len(entries) == 1
	}, 2*time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestTargetDevice(t *testing.T) {
	saved := &persistence.ClientState{
		Device: persistence.NewDeviceRecord(transport.Device{Address: "C8:2E:18:00:20:02", Name: "Nano"}, time.Now()),
	}

	tests := []struct {
		name  string
		dc    config.DeviceConfig
		state *persistence.ClientState
		want  string
	}{
		{"configured", config.DeviceConfig{Address: "C8:2E:18:00:20:03"}, saved, "C8:2E:18:00:20:03"},
		{"remembered", config.DeviceConfig{}, saved, "C8:2E:18:00:20:02"},
		{"discover", config.DeviceConfig{}, nil, ""},
		{"no device in state", config.DeviceConfig{}, &persistence.ClientState{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := targetDevice(tt.dc, tt.state)
			if tt.want == "" {
				assert.Nil(t, dev)
				return
			}
			require.NotNil(t, dev)
			assert.Equal(t, tt.want, dev.Address)
		})
	}
}
