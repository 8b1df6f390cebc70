package interaction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sousvide-ble/nano-go/pkg/command"
	"github.com/sousvide-ble/nano-go/pkg/frame"
	"github.com/sousvide-ble/nano-go/pkg/log"
	"github.com/sousvide-ble/nano-go/pkg/transport"
	"github.com/sousvide-ble/nano-go/pkg/transport/transporttest"
	"github.com/sousvide-ble/nano-go/pkg/wire"
)

// setpointFrame is a GET_TEMP_SETPOINT response carrying 420.
var setpointFrame = []byte{0x01, 0x05, 0x04, 0x08, 0xa4, 0x03, 0x00}

type staticConns struct {
	mu   sync.Mutex
	conn transport.Conn
}

func (s *staticConns) Conn() transport.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *staticConns) set(conn transport.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(ev log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingLogger) exchangeStates() []log.ExchangeState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []log.ExchangeState
	for _, ev := range r.events {
		if ev.Exchange != nil {
			out = append(out, ev.Exchange.State)
		}
	}
	return out
}

func (r *recordingLogger) frames(layer log.Layer) []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []log.Event
	for _, ev := range r.events {
		if ev.Frame != nil && ev.Layer == layer {
			out = append(out, ev)
		}
	}
	return out
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
	routed   int
	dropped  int
}

func (o *recordingObserver) ObserveExchange(_ command.Command, outcome Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) ObserveChunk(dropped bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if dropped {
		o.dropped++
	} else {
		o.routed++
	}
}

func (o *recordingObserver) snapshot() ([]Outcome, int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Outcome(nil), o.outcomes...), o.routed, o.dropped
}

func dial(t *testing.T, p *transporttest.Peripheral) transport.Conn {
	t.Helper()
	adapter := transporttest.NewAdapter(p)
	conn, err := adapter.Connect(context.Background(), p.Device(), nil)
	require.NoError(t, err)
	return conn
}

func newTestClient(t *testing.T, p *transporttest.Peripheral, cfg Config) (*Client, *staticConns) {
	t.Helper()
	conns := &staticConns{conn: dial(t, p)}
	cfg.Conns = conns
	c := NewClient(cfg)
	t.Cleanup(c.Close)
	return c, conns
}

func testPeripheral(address string, respond transporttest.Responder) *transporttest.Peripheral {
	return transporttest.NewPeripheral(transport.Device{
		Address:      address,
		Name:         transport.DeviceLocalName,
		ServiceUUIDs: []string{transport.ServiceUUID},
	}, respond)
}

func TestClientRead(t *testing.T) {
	t.Run("IntegerResponse", func(t *testing.T) {
		p := testPeripheral("C8:2E:18:00:01:01", transporttest.Reply(setpointFrame))
		c, _ := newTestClient(t, p, Config{})

		msg, err := c.Read(context.Background(), command.ReadTargetTemp)
		require.NoError(t, err)

		v, ok := msg.(*wire.IntegerValue)
		require.True(t, ok)
		assert.Equal(t, int32(420), v.Value)

		require.Len(t, p.Writes(), 1)
		assert.Equal(t, command.Request(command.ReadTargetTemp, nil), p.Writes()[0])
	})

	t.Run("SensorList", func(t *testing.T) {
		cooker := transporttest.NewCooker("C8:2E:18:00:01:02")
		c, _ := newTestClient(t, cooker.Peripheral, Config{})

		msg, err := c.Read(context.Background(), command.GetSensorValues)
		require.NoError(t, err)

		list, ok := msg.(*wire.SensorValueList)
		require.True(t, ok)
		require.Len(t, list.Values, 8)
		assert.Equal(t, int32(2130), list.Values[0].Value)
		assert.Equal(t, wire.UnitDegreesPoint01C, list.Values[0].Units)
		assert.Equal(t, wire.SensorMotorSpeed, list.Values[7].SensorType)
		assert.Zero(t, list.Values[7].Value)

		assert.Greater(t, len(cooker.Events()), 2, "response spans several chunks")
	})

	t.Run("FirmwareInfo", func(t *testing.T) {
		cooker := transporttest.NewCooker("C8:2E:18:00:01:03")
		c, _ := newTestClient(t, cooker.Peripheral, Config{})

		msg, err := c.Read(context.Background(), command.GetFirmwareInfo)
		require.NoError(t, err)

		fw, ok := msg.(*wire.FirmwareInfo)
		require.True(t, ok)
		assert.Equal(t, "2.1.7", fw.Version)
		assert.Equal(t, "2023-04-11", fw.BuildDate)
	})

	t.Run("SubscribesOncePerConnection", func(t *testing.T) {
		cooker := transporttest.NewCooker("C8:2E:18:00:01:04")
		c, conns := newTestClient(t, cooker.Peripheral, Config{})
		ctx := context.Background()

		for range 3 {
			_, err := c.Read(ctx, command.ReadUnit)
			require.NoError(t, err)
		}
		assert.Equal(t, 1, cooker.Subscriptions())

		conns.set(dial(t, cooker.Peripheral))
		_, err := c.Read(ctx, command.ReadUnit)
		require.NoError(t, err)
		assert.Equal(t, 2, cooker.Subscriptions())
	})

	t.Run("WrongDirection", func(t *testing.T) {
		cooker := transporttest.NewCooker("C8:2E:18:00:01:05")
		c, _ := newTestClient(t, cooker.Peripheral, Config{})

		_, err := c.Read(context.Background(), command.SetUnit)
		assert.ErrorIs(t, err, ErrWrongDirection)
		assert.Empty(t, cooker.Writes())
	})

	t.Run("UnknownCommand", func(t *testing.T) {
		cooker := transporttest.NewCooker("C8:2E:18:00:01:06")
		c, _ := newTestClient(t, cooker.Peripheral, Config{})

		_, err := c.Send(context.Background(), command.Command(200), nil)
		assert.ErrorIs(t, err, command.ErrUnknownCommand)
	})
}

func TestClientWrite(t *testing.T) {
	t.Run("FrameBytes", func(t *testing.T) {
		cooker := transporttest.NewCooker("C8:2E:18:00:02:01")
		c, _ := newTestClient(t, cooker.Peripheral, Config{})

		err := c.Write(context.Background(), command.SetUnit, &wire.IntegerValue{Value: 2})
		require.NoError(t, err)

		require.Len(t, cooker.Writes(), 1)
		assert.Equal(t, []byte{1, 4, 6, 8, 2, 0}, cooker.Writes()[0])
		assert.Zero(t, cooker.Subscriptions(), "writes do not enable notifications")
	})

	t.Run("ReachesDevice", func(t *testing.T) {
		cooker := transporttest.NewCooker("C8:2E:18:00:02:02")
		c, _ := newTestClient(t, cooker.Peripheral, Config{})

		require.NoError(t, c.Write(context.Background(), command.SetTemp, &wire.IntegerValue{Value: 615}))
		assert.Equal(t, int32(615), cooker.Setpoint())
	})

	t.Run("WrongDirection", func(t *testing.T) {
		cooker := transporttest.NewCooker("C8:2E:18:00:02:03")
		c, _ := newTestClient(t, cooker.Peripheral, Config{})

		err := c.Write(context.Background(), command.ReadUnit, nil)
		assert.ErrorIs(t, err, ErrWrongDirection)
	})

	t.Run("TransportError", func(t *testing.T) {
		cooker := transporttest.NewCooker("C8:2E:18:00:02:04")
		obs := &recordingObserver{}
		c, _ := newTestClient(t, cooker.Peripheral, Config{Observer: obs})

		gattErr := errors.New("att error 0x0e")
		cooker.SetWriteError(gattErr)

		err := c.Write(context.Background(), command.SetTimer, &wire.IntegerValue{Value: 90})
		require.ErrorIs(t, err, gattErr)
		assert.NotErrorIs(t, err, ErrConnectionLost)

		outcomes, _, _ := obs.snapshot()
		assert.Equal(t, []Outcome{OutcomeTransportError}, outcomes)
	})
}

func TestClientTimeout(t *testing.T) {
	t.Run("NoResponse", func(t *testing.T) {
		p := testPeripheral("C8:2E:18:00:03:01", transporttest.Silent)
		obs := &recordingObserver{}
		c, _ := newTestClient(t, p, Config{ResponseTimeout: 50 * time.Millisecond, Observer: obs})

		start := time.Now()
		_, err := c.Read(context.Background(), command.ReadTargetTemp)
		require.ErrorIs(t, err, ErrCommandTimeout)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

		outcomes, _, _ := obs.snapshot()
		assert.Equal(t, []Outcome{OutcomeTimeout}, outcomes)
	})

	t.Run("LockReleased", func(t *testing.T) {
		p := testPeripheral("C8:2E:18:00:03:02", transporttest.Silent)
		c, _ := newTestClient(t, p, Config{ResponseTimeout: 30 * time.Millisecond})

		_, err := c.Read(context.Background(), command.ReadTargetTemp)
		require.ErrorIs(t, err, ErrCommandTimeout)

		p.Respond(transporttest.Reply(setpointFrame))
		msg, err := c.Read(context.Background(), command.ReadTargetTemp)
		require.NoError(t, err)
		assert.Equal(t, int32(420), msg.(*wire.IntegerValue).Value)
	})

	t.Run("PartialFrame", func(t *testing.T) {
		list := &wire.SensorValueList{Values: []wire.SensorValue{
			{Value: 2130, Units: wire.UnitDegreesPoint01C, SensorType: wire.SensorWaterTemp},
			{Value: 20, Units: wire.UnitDegreesC, SensorType: wire.SensorHeaterTemp},
			{Value: 22, Units: wire.UnitDegreesC, SensorType: wire.SensorTriacTemp},
			{Value: 25, Units: wire.UnitDegreesC, SensorType: wire.SensorInternalTemp},
		}}
		chunks := transporttest.Chunk(transporttest.ResponseFrame(wire.MessageTypeGetSensors, list))
		require.Greater(t, len(chunks), 1)

		p := testPeripheral("C8:2E:18:00:03:03", func([]byte) [][]byte { return chunks[:1] })
		rec := &recordingLogger{}
		c, _ := newTestClient(t, p, Config{ResponseTimeout: 50 * time.Millisecond, ProtocolLogger: rec})

		_, err := c.Read(context.Background(), command.GetSensorValues)
		require.ErrorIs(t, err, ErrCommandTimeout)
		assert.Contains(t, err.Error(), "20 bytes received")

		frames := rec.frames(log.LayerFrame)
		require.Len(t, frames, 1)
		assert.Equal(t, 20, frames[0].Frame.Size)

		states := rec.exchangeStates()
		require.NotEmpty(t, states)
		assert.Equal(t, log.ExchangeTimedOut, states[len(states)-1])
	})
}

func TestClientChunksQueuedAtDeadline(t *testing.T) {
	// With a nanosecond timeout the deadline has passed by the time the
	// response is collected, so both the timer and the queued chunks are
	// ready together.
	c := NewClient(Config{Conns: &staticConns{}, ResponseTimeout: time.Nanosecond})
	t.Cleanup(c.Close)

	for i := 0; i < 50; i++ {
		ex := c.begin(command.ReadTargetTemp)
		ex.chunks <- setpointFrame[:3]
		ex.chunks <- setpointFrame[3:]

		res, err := c.await(context.Background(), transport.Device{}, ex)
		c.end(ex)
		require.NoError(t, err, "attempt %d", i)
		assert.Equal(t, 2, ex.count)

		var v wire.IntegerValue
		require.NoError(t, v.Unmarshal(res.Payload))
		assert.Equal(t, int32(420), v.Value)
	}
}

func TestClientSerializesExchanges(t *testing.T) {
	cooker := transporttest.NewCooker("C8:2E:18:00:04:01")
	cooker.SetChunkDelay(time.Millisecond)
	c, _ := newTestClient(t, cooker.Peripheral, Config{})

	const readers = 5
	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Read(context.Background(), command.GetSensorValues)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Every write is followed by the full set of its response chunks
	// before the next write.
	var groups []int
	for _, ev := range cooker.Events() {
		switch ev.Kind {
		case transporttest.EventWrite:
			groups = append(groups, 0)
		case transporttest.EventNotify:
			require.NotEmpty(t, groups, "notification before first write")
			groups[len(groups)-1]++
		}
	}
	require.Len(t, groups, readers)
	for i, n := range groups {
		assert.Equal(t, groups[0], n, "exchange %d", i)
	}
	assert.Greater(t, groups[0], 1)
}

func TestClientLateChunk(t *testing.T) {
	p := testPeripheral("C8:2E:18:00:05:01", transporttest.Reply(setpointFrame))
	obs := &recordingObserver{}
	c, _ := newTestClient(t, p, Config{Observer: obs})
	ctx := context.Background()

	_, err := c.Read(ctx, command.ReadTargetTemp)
	require.NoError(t, err)

	p.Notify([]byte{0x01, 0x02})

	_, routed, dropped := obs.snapshot()
	assert.Equal(t, 1, routed)
	assert.Equal(t, 1, dropped)

	msg, err := c.Read(ctx, command.ReadTargetTemp)
	require.NoError(t, err)
	assert.Equal(t, int32(420), msg.(*wire.IntegerValue).Value)
}

func TestClientNotConnected(t *testing.T) {
	t.Run("NoConnection", func(t *testing.T) {
		obs := &recordingObserver{}
		c := NewClient(Config{Conns: &staticConns{}, Observer: obs})

		_, err := c.Read(context.Background(), command.ReadUnit)
		assert.ErrorIs(t, err, ErrNotConnected)

		outcomes, _, _ := obs.snapshot()
		assert.Equal(t, []Outcome{OutcomeNotConnected}, outcomes)
	})

	t.Run("ClosedConnection", func(t *testing.T) {
		cooker := transporttest.NewCooker("C8:2E:18:00:06:01")
		c, conns := newTestClient(t, cooker.Peripheral, Config{})
		require.NoError(t, conns.Conn().Disconnect())

		err := c.Write(context.Background(), command.SetUnit, &wire.IntegerValue{Value: int32(wire.UnitDegreesF)})
		assert.ErrorIs(t, err, ErrNotConnected)
		assert.Empty(t, cooker.Writes())
	})
}

func TestClientHandleDisconnect(t *testing.T) {
	p := testPeripheral("C8:2E:18:00:07:01", transporttest.Silent)
	obs := &recordingObserver{}
	c, conns := newTestClient(t, p, Config{ResponseTimeout: 5 * time.Second, Observer: obs})

	errs := make(chan error, 1)
	go func() {
		_, err := c.Read(context.Background(), command.ReadTargetTemp)
		errs <- err
	}()

	require.Eventually(t, func() bool { return len(p.Writes()) == 1 }, time.Second, 5*time.Millisecond)
	c.HandleDisconnect()

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrConnectionLost)
	case <-time.After(time.Second):
		t.Fatal("exchange did not fail after disconnect")
	}

	outcomes, _, _ := obs.snapshot()
	assert.Equal(t, []Outcome{OutcomeConnectionLost}, outcomes)

	// The next exchange on a fresh connection subscribes again.
	p.Respond(transporttest.Reply(setpointFrame))
	conns.set(dial(t, p))
	_, err := c.Read(context.Background(), command.ReadTargetTemp)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Subscriptions())
}

func TestClientDecodeFailure(t *testing.T) {
	raw := frame.Encode([]byte{byte(wire.DomainConfig), byte(wire.MessageTypeGetTempSetpoint), 0x08}, true)
	p := testPeripheral("C8:2E:18:00:08:01", transporttest.Reply(raw))
	obs := &recordingObserver{}
	c, _ := newTestClient(t, p, Config{Observer: obs})

	_, err := c.Read(context.Background(), command.ReadTargetTemp)
	require.ErrorIs(t, err, ErrDecodeFailure)
	assert.ErrorIs(t, err, wire.ErrMalformed)

	outcomes, _, _ := obs.snapshot()
	assert.Equal(t, []Outcome{OutcomeDecodeFailure}, outcomes)
}

func TestClientContextCancel(t *testing.T) {
	t.Run("DuringExchange", func(t *testing.T) {
		p := testPeripheral("C8:2E:18:00:09:01", transporttest.Silent)
		c, _ := newTestClient(t, p, Config{ResponseTimeout: 5 * time.Second})

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		_, err := c.Read(ctx, command.ReadTargetTemp)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("WaitingForLock", func(t *testing.T) {
		p := testPeripheral("C8:2E:18:00:09:02", transporttest.Silent)
		c, _ := newTestClient(t, p, Config{ResponseTimeout: 200 * time.Millisecond})

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = c.Read(context.Background(), command.ReadTargetTemp)
		}()
		require.Eventually(t, func() bool { return len(p.Writes()) == 1 }, time.Second, 5*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Read(ctx, command.ReadUnit)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, p.Writes(), 1, "cancelled caller never reaches the device")

		<-done
	})
}

func TestClientProtocolLog(t *testing.T) {
	p := testPeripheral("C8:2E:18:00:0a:01", transporttest.Reply(setpointFrame))
	rec := &recordingLogger{}
	c, _ := newTestClient(t, p, Config{ProtocolLogger: rec, SessionID: "test-session"})

	_, err := c.Read(context.Background(), command.ReadTargetTemp)
	require.NoError(t, err)

	assert.Equal(t, []log.ExchangeState{
		log.ExchangeSending,
		log.ExchangeAwaitingResponse,
		log.ExchangeComplete,
	}, rec.exchangeStates())

	transportFrames := rec.frames(log.LayerTransport)
	require.Len(t, transportFrames, 2)
	assert.Equal(t, log.DirectionOut, transportFrames[0].Direction)
	assert.Equal(t, transport.WriteCharUUID, transportFrames[0].Frame.Characteristic)
	assert.Equal(t, log.DirectionIn, transportFrames[1].Direction)
	assert.Equal(t, setpointFrame, transportFrames[1].Frame.Data)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	last := rec.events[len(rec.events)-1]
	require.NotNil(t, last.Exchange)
	assert.Equal(t, "test-session", last.SessionID)
	assert.Equal(t, "READ_TARGET_TEMP", last.Exchange.Command)
	assert.Equal(t, uint8(wire.MessageTypeGetTempSetpoint), last.Exchange.Instruction)
	assert.Equal(t, []byte{0x08, 0xa4, 0x03}, last.Exchange.Payload)
	assert.Equal(t, 1, last.Exchange.Chunks)
	require.NotNil(t, last.Exchange.Duration)
}
