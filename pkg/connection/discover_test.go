package connection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sousvide-ble/nano-go/pkg/transport"
	"github.com/sousvide-ble/nano-go/pkg/transport/mocks"
	"github.com/sousvide-ble/nano-go/pkg/transport/transporttest"
)

func TestDiscover(t *testing.T) {
	t.Run("ListsServiceDevices", func(t *testing.T) {
		a := transporttest.NewCooker("C8:2E:18:00:05:01")
		b := transporttest.NewCooker("C8:2E:18:00:05:02")
		// Matches by name only: reported by the scan, not returned.
		named := transporttest.NewPeripheral(transport.Device{Address: "C8:2E:18:00:05:03", Name: "Nano"}, nil)
		adapter := transporttest.NewAdapter(a.Peripheral, b.Peripheral, named)
		s := newTestSession(t, Config{Adapter: adapter})

		start := time.Now()
		devices, err := s.Discover(context.Background(), DiscoverOptions{Timeout: 150 * time.Millisecond})
		require.NoError(t, err)

		assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond, "scan runs until the timeout")
		require.Len(t, devices, 2)
		assert.Equal(t, "C8:2E:18:00:05:01", devices[0].Address)
		assert.Equal(t, "C8:2E:18:00:05:02", devices[1].Address)
		assert.False(t, s.IsConnected())
		_, remembered := s.Device()
		assert.False(t, remembered)
	})

	t.Run("ConnectStopsAtFirstCooker", func(t *testing.T) {
		cooker := transporttest.NewCooker("C8:2E:18:00:06:01")
		adapter := transporttest.NewAdapter(cooker.Peripheral)
		s := newTestSession(t, Config{Adapter: adapter})

		start := time.Now()
		_, err := s.Discover(context.Background(), DiscoverOptions{Connect: true, Timeout: 5 * time.Second})
		require.NoError(t, err)

		assert.Less(t, time.Since(start), time.Second)
		assert.True(t, s.IsConnected())
		assert.True(t, cooker.Connected())
	})

	t.Run("ConnectByName", func(t *testing.T) {
		named := transporttest.NewPeripheral(transport.Device{Address: "C8:2E:18:00:06:02", Name: "Nano"}, nil)
		s := newTestSession(t, Config{Adapter: transporttest.NewAdapter(named)})

		_, err := s.Discover(context.Background(), DiscoverOptions{Connect: true, Timeout: time.Second})
		require.NoError(t, err)
		assert.True(t, s.IsConnected())
	})

	t.Run("Timeout", func(t *testing.T) {
		s := newTestSession(t, Config{Adapter: transporttest.NewAdapter()})

		devices, err := s.Discover(context.Background(), DiscoverOptions{Connect: true, Timeout: 120 * time.Millisecond})
		assert.ErrorIs(t, err, ErrDiscoveryTimeout)
		assert.Empty(t, devices)
	})

	t.Run("ListAllSuppressesTimeout", func(t *testing.T) {
		s := newTestSession(t, Config{Adapter: transporttest.NewAdapter()})

		devices, err := s.Discover(context.Background(), DiscoverOptions{Connect: true, ListAll: true, Timeout: 120 * time.Millisecond})
		assert.NoError(t, err)
		assert.Empty(t, devices)
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		s := newTestSession(t, Config{Adapter: transporttest.NewAdapter()})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := s.Discover(ctx, DiscoverOptions{Timeout: 5 * time.Second})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("ScanError", func(t *testing.T) {
		adapter := mocks.NewMockAdapter(t)
		adapter.EXPECT().
			Scan(mock.Anything, transport.ServiceUUID, mock.Anything).
			Return(transport.ErrAdapterUnavailable).
			Once()
		s := newTestSession(t, Config{Adapter: adapter})

		_, err := s.Discover(context.Background(), DiscoverOptions{Timeout: time.Second})
		assert.True(t, errors.Is(err, transport.ErrAdapterUnavailable))
	})
}
