package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sousvide-ble/nano-go/pkg/command"
	"github.com/sousvide-ble/nano-go/pkg/frame"
	"github.com/sousvide-ble/nano-go/pkg/log"
	"github.com/sousvide-ble/nano-go/pkg/transport"
	"github.com/sousvide-ble/nano-go/pkg/wire"
)

// DefaultResponseTimeout bounds the wait for a complete response frame.
const DefaultResponseTimeout = 3 * time.Second

// defaultChunkBuffer is the capacity of the per-exchange chunk queue.
const defaultChunkBuffer = 32

// Client errors.
var (
	ErrCommandTimeout = errors.New("command timed out")
	ErrDecodeFailure  = errors.New("response decode failure")
	ErrNotConnected   = errors.New("not connected")
	ErrConnectionLost = errors.New("connection lost during exchange")
	ErrWrongDirection = errors.New("command used in the wrong direction")
)

// ConnSource provides the current connection. connection.Session
// implements it.
type ConnSource interface {
	Conn() transport.Conn
}

// Config configures a Client.
type Config struct {
	// Conns provides the connection for each exchange. Required.
	Conns ConnSource

	// ResponseTimeout bounds the wait for a response frame.
	ResponseTimeout time.Duration

	// ChunkBuffer is the capacity of the chunk queue of one exchange.
	ChunkBuffer int

	// Logger is the operational logger. If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger captures chunks, frames and exchange states.
	ProtocolLogger log.Logger

	// SessionID tags protocol log events.
	SessionID string

	// Observer receives exchange statistics. Optional.
	Observer Observer
}

// Client runs command exchanges one at a time.
type Client struct {
	conns     ConnSource
	timeout   time.Duration
	bufSize   int
	logger    *slog.Logger
	protoLog  log.Logger
	sessionID string
	observer  Observer

	// lock admits one exchange at a time.
	lock *semaphore.Weighted

	mu        sync.Mutex
	pending   *exchange
	subConn   transport.Conn
	cancelSub func()
}

// exchange is the state of one read command awaiting its response.
type exchange struct {
	cmd    command.Command
	chunks chan []byte
	abort  chan error
	count  int
}

// NewClient creates a dispatcher.
func NewClient(cfg Config) *Client {
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	if cfg.ChunkBuffer <= 0 {
		cfg.ChunkBuffer = defaultChunkBuffer
	}
	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}

	return &Client{
		conns:     cfg.Conns,
		timeout:   cfg.ResponseTimeout,
		bufSize:   cfg.ChunkBuffer,
		logger:    cfg.Logger,
		protoLog:  log.OrNoop(cfg.ProtocolLogger),
		sessionID: cfg.SessionID,
		observer:  observer,
		lock:      semaphore.NewWeighted(1),
	}
}

// Timeout returns the response timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Read sends a read command and returns its decoded response.
func (c *Client) Read(ctx context.Context, cmd command.Command) (wire.Message, error) {
	if e, ok := command.Lookup(cmd); ok && !e.ExpectsResponse() {
		return nil, fmt.Errorf("%w: %s is a write command", ErrWrongDirection, cmd)
	}
	return c.Send(ctx, cmd, nil)
}

// Write sends a write command with value.
func (c *Client) Write(ctx context.Context, cmd command.Command, value wire.Message) error {
	if e, ok := command.Lookup(cmd); ok && e.ExpectsResponse() {
		return fmt.Errorf("%w: %s is a read command", ErrWrongDirection, cmd)
	}
	_, err := c.Send(ctx, cmd, value)
	return err
}

// Send runs one exchange. For write commands the returned message is nil.
// Send blocks while another exchange is in progress; ctx bounds both the
// wait for admission and the exchange itself.
func (c *Client) Send(ctx context.Context, cmd command.Command, value wire.Message) (wire.Message, error) {
	entry, ok := command.Lookup(cmd)
	if !ok {
		return nil, fmt.Errorf("%w: %s", command.ErrUnknownCommand, cmd)
	}

	if err := c.lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.lock.Release(1)

	start := time.Now()

	conn := c.conns.Conn()
	if conn == nil || !conn.Connected() {
		c.observer.ObserveExchange(cmd, OutcomeNotConnected, 0)
		return nil, fmt.Errorf("%s: %w", cmd, ErrNotConnected)
	}
	dev := conn.Device()

	req := command.Request(cmd, value)
	c.logExchange(dev, cmd, entry, log.ExchangeSending, log.DirectionOut, req, nil, 0)

	var ex *exchange
	if entry.ExpectsResponse() {
		if err := c.ensureSubscribed(conn); err != nil {
			return nil, c.fail(dev, cmd, entry, start, 0, OutcomeTransportError, fmt.Errorf("%s: subscribe: %w", cmd, err))
		}
		ex = c.begin(cmd)
		defer c.end(ex)
	}

	c.logFrame(dev, log.DirectionOut, log.LayerTransport, transport.WriteCharUUID, req, 0)
	if err := conn.Write(ctx, transport.WriteCharUUID, req, true); err != nil {
		outcome := OutcomeTransportError
		if errors.Is(err, transport.ErrNotConnected) {
			outcome = OutcomeConnectionLost
			err = fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
		return nil, c.fail(dev, cmd, entry, start, 0, outcome, fmt.Errorf("%s: write: %w", cmd, err))
	}

	if ex == nil {
		d := time.Since(start)
		c.logExchange(dev, cmd, entry, log.ExchangeComplete, log.DirectionOut, nil, &d, 0)
		c.observer.ObserveExchange(cmd, OutcomeOK, d)
		return nil, nil
	}

	c.logExchange(dev, cmd, entry, log.ExchangeAwaitingResponse, log.DirectionIn, nil, nil, 0)

	res, err := c.await(ctx, dev, ex)
	if err != nil {
		outcome := OutcomeTransportError
		switch {
		case errors.Is(err, ErrCommandTimeout):
			outcome = OutcomeTimeout
		case errors.Is(err, ErrConnectionLost):
			outcome = OutcomeConnectionLost
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			outcome = OutcomeCancelled
		}
		return nil, c.fail(dev, cmd, entry, start, ex.count, outcome, err)
	}

	msg := entry.NewResponse()
	if err := msg.Unmarshal(res.Payload); err != nil {
		return nil, c.fail(dev, cmd, entry, start, ex.count, OutcomeDecodeFailure,
			fmt.Errorf("%w: %s: %w", ErrDecodeFailure, cmd, err))
	}

	d := time.Since(start)
	c.logExchange(dev, cmd, entry, log.ExchangeComplete, log.DirectionIn, res.Payload, &d, ex.count)
	c.observer.ObserveExchange(cmd, OutcomeOK, d)
	return msg, nil
}

// HandleDisconnect fails a waiting exchange with ErrConnectionLost and
// forgets the notify subscription of the dropped connection.
func (c *Client) HandleDisconnect() {
	c.Abort(ErrConnectionLost)

	c.mu.Lock()
	c.subConn = nil
	c.cancelSub = nil
	c.mu.Unlock()
}

// Abort fails the waiting exchange, if any, with err.
func (c *Client) Abort(err error) {
	c.mu.Lock()
	ex := c.pending
	c.mu.Unlock()

	if ex == nil {
		return
	}
	select {
	case ex.abort <- err:
	default:
	}
}

// Close cancels the notify subscription.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.cancelSub
	c.subConn = nil
	c.cancelSub = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// await collects chunks until they decode to a complete frame.
func (c *Client) await(ctx context.Context, dev transport.Device, ex *exchange) (frame.Result, error) {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	acc := frame.NewAccumulator()
	for {
		select {
		case <-ctx.Done():
			return frame.Result{}, ctx.Err()

		case err := <-ex.abort:
			return frame.Result{}, fmt.Errorf("%s: %w", ex.cmd, err)

		case <-timer.C:
			// Chunks queued before the deadline still count.
			if res, ok := c.drain(dev, ex, acc); ok {
				return res, nil
			}
			if acc.Len() > 0 {
				res := frame.Decode(acc.Bytes())
				c.logFrame(dev, log.DirectionIn, log.LayerFrame, transport.NotifyCharUUID, acc.Bytes(), res.Missing)
			}
			return frame.Result{}, fmt.Errorf("%w: %s after %s (%d bytes received)", ErrCommandTimeout, ex.cmd, c.timeout, acc.Len())

		case chunk := <-ex.chunks:
			if res, ok := c.accept(dev, ex, acc, chunk); ok {
				return res, nil
			}
		}
	}
}

// accept adds chunk to acc and reports whether the frame is complete.
func (c *Client) accept(dev transport.Device, ex *exchange, acc *frame.Accumulator, chunk []byte) (frame.Result, bool) {
	ex.count++
	res, complete := acc.Add(chunk)
	if complete {
		c.logFrame(dev, log.DirectionIn, log.LayerFrame, transport.NotifyCharUUID, acc.Bytes(), 0)
	}
	return res, complete
}

// drain accepts the chunks already queued without waiting for more.
func (c *Client) drain(dev transport.Device, ex *exchange, acc *frame.Accumulator) (frame.Result, bool) {
	for {
		select {
		case chunk := <-ex.chunks:
			if res, ok := c.accept(dev, ex, acc, chunk); ok {
				return res, true
			}
		default:
			return frame.Result{}, false
		}
	}
}

// ensureSubscribed enables notifications once per connection. Only the
// holder of the exchange lock calls it.
func (c *Client) ensureSubscribed(conn transport.Conn) error {
	c.mu.Lock()
	if c.subConn == conn {
		c.mu.Unlock()
		return nil
	}
	stale := c.cancelSub
	c.subConn = nil
	c.cancelSub = nil
	c.mu.Unlock()

	if stale != nil {
		stale()
	}

	cancel, err := conn.Subscribe(transport.NotifyCharUUID, c.onChunk)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.subConn = conn
	c.cancelSub = cancel
	c.mu.Unlock()

	c.debugLog("notify subscription enabled", "device", conn.Device().Address)
	return nil
}

// onChunk routes one notification chunk to the waiting exchange.
func (c *Client) onChunk(chunk []byte) {
	c.mu.Lock()
	ex := c.pending
	conn := c.subConn
	c.mu.Unlock()

	var dev transport.Device
	if conn != nil {
		dev = conn.Device()
	}
	c.logFrame(dev, log.DirectionIn, log.LayerTransport, transport.NotifyCharUUID, chunk, 0)

	if ex == nil {
		c.debugLog("dropping chunk without pending exchange", "len", len(chunk))
		c.observer.ObserveChunk(true)
		return
	}

	select {
	case ex.chunks <- chunk:
		c.observer.ObserveChunk(false)
	default:
		c.debugLog("dropping chunk, exchange queue full", "command", ex.cmd.String())
		c.observer.ObserveChunk(true)
	}
}

func (c *Client) begin(cmd command.Command) *exchange {
	ex := &exchange{
		cmd:    cmd,
		chunks: make(chan []byte, c.bufSize),
		abort:  make(chan error, 1),
	}
	c.mu.Lock()
	c.pending = ex
	c.mu.Unlock()
	return ex
}

func (c *Client) end(ex *exchange) {
	c.mu.Lock()
	if c.pending == ex {
		c.pending = nil
	}
	c.mu.Unlock()
}

// fail records a failed exchange and returns err.
func (c *Client) fail(dev transport.Device, cmd command.Command, entry command.Entry, start time.Time, chunks int, outcome Outcome, err error) error {
	d := time.Since(start)
	state := log.ExchangeFailed
	if outcome == OutcomeTimeout {
		state = log.ExchangeTimedOut
	}
	c.logExchange(dev, cmd, entry, state, log.DirectionIn, nil, &d, chunks)
	c.protoLog.Log(log.Event{
		Timestamp:     time.Now(),
		SessionID:     c.sessionID,
		Direction:     log.DirectionIn,
		Layer:         log.LayerCommand,
		Category:      log.CategoryError,
		DeviceAddress: dev.Address,
		Error:         &log.ErrorEventData{Layer: log.LayerCommand, Message: err.Error(), Context: cmd.String()},
	})
	c.observer.ObserveExchange(cmd, outcome, d)

	if c.logger != nil {
		c.logger.Warn("command failed", "command", cmd.String(), "outcome", string(outcome), "error", err)
	}
	return err
}

func (c *Client) logExchange(dev transport.Device, cmd command.Command, entry command.Entry, state log.ExchangeState, dir log.Direction, payload []byte, d *time.Duration, chunks int) {
	c.protoLog.Log(log.Event{
		Timestamp:     time.Now(),
		SessionID:     c.sessionID,
		Direction:     dir,
		Layer:         log.LayerCommand,
		Category:      log.CategoryMessage,
		DeviceAddress: dev.Address,
		DeviceName:    dev.Name,
		Exchange: &log.ExchangeEvent{
			Command:     cmd.String(),
			Instruction: uint8(entry.Instruction),
			State:       state,
			Payload:     payload,
			Duration:    d,
			Chunks:      chunks,
		},
	})
}

func (c *Client) logFrame(dev transport.Device, dir log.Direction, layer log.Layer, charUUID string, data []byte, missing int) {
	ev := log.NewFrameEvent(charUUID, data)
	ev.Missing = missing
	c.protoLog.Log(log.Event{
		Timestamp:     time.Now(),
		SessionID:     c.sessionID,
		Direction:     dir,
		Layer:         layer,
		Category:      log.CategoryMessage,
		DeviceAddress: dev.Address,
		Frame:         ev,
	})
}

// debugLog logs a debug message if logging is enabled.
func (c *Client) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
