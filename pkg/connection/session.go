package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sousvide-ble/nano-go/pkg/log"
	"github.com/sousvide-ble/nano-go/pkg/subscription"
	"github.com/sousvide-ble/nano-go/pkg/transport"
)

// Default timeouts.
const (
	DefaultConnectTimeout  = 10 * time.Second
	DefaultDiscoverTimeout = 10 * time.Second
)

// Session errors.
var (
	ErrDiscoveryTimeout  = errors.New("no cooker discovered before the timeout")
	ErrConnectionFailure = errors.New("connection failure")
	ErrClosed            = errors.New("session closed")
)

// ReconnectPolicy controls automatic reconnection after a link loss.
type ReconnectPolicy struct {
	Enabled bool          `yaml:"enabled"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// Config configures a Session.
type Config struct {
	// Adapter discovers and connects to peripherals. Required.
	Adapter transport.Adapter

	// Device is remembered as the connect target. Optional.
	Device *transport.Device

	// ConnectTimeout bounds one connection attempt.
	ConnectTimeout time.Duration

	// DiscoverTimeout bounds a scan when DiscoverOptions.Timeout is zero.
	DiscoverTimeout time.Duration

	// Reconnect is disabled by default.
	Reconnect ReconnectPolicy

	// Logger is the operational logger. If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives state change events. If nil, no events are
	// captured.
	ProtocolLogger log.Logger

	// SessionID tags protocol log events. Generated when empty.
	SessionID string
}

// Session manages the connection to one cooker.
type Session struct {
	adapter   transport.Adapter
	cfg       Config
	logger    *slog.Logger
	protoLog  log.Logger
	sessionID string

	// connectLock serializes connection attempts.
	connectLock *semaphore.Weighted

	mu     sync.RWMutex
	state  State
	conn   transport.Conn
	gen    uint64
	device *transport.Device
	closed bool

	disconnects  *subscription.Set[transport.Device]
	stateChanges *subscription.Set[StateChange]

	backoff *Backoff
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// reconnecting is set while the reconnect loop runs.
	reconnecting bool

	// stopReconnect cancels the running reconnect loop; reconnectDone is
	// closed when it returns.
	stopReconnect context.CancelFunc
	reconnectDone chan struct{}
}

// NewSession creates a session. It does not connect.
func NewSession(cfg Config) *Session {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.DiscoverTimeout <= 0 {
		cfg.DiscoverTimeout = DefaultDiscoverTimeout
	}
	if cfg.SessionID == "" {
		cfg.SessionID = log.NewSessionID()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		adapter:      cfg.Adapter,
		cfg:          cfg,
		logger:       cfg.Logger,
		protoLog:     log.OrNoop(cfg.ProtocolLogger),
		sessionID:    cfg.SessionID,
		connectLock:  semaphore.NewWeighted(1),
		state:        StateDisconnected,
		disconnects:  subscription.NewSet[transport.Device]("disconnect", cfg.Logger),
		stateChanges: subscription.NewSet[StateChange]("state", cfg.Logger),
		backoff:      NewBackoffWithConfig(cfg.Reconnect.Backoff),
		ctx:          ctx,
		cancel:       cancel,
	}
	if cfg.Device != nil {
		d := *cfg.Device
		s.device = &d
	}
	return s
}

// SessionID returns the identifier used in protocol log events.
func (s *Session) SessionID() string {
	return s.sessionID
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsConnected reports whether a live connection exists.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateConnected && s.conn != nil && s.conn.Connected()
}

// Conn returns the active connection, or nil.
func (s *Session) Conn() transport.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// Device returns the remembered device.
func (s *Session) Device() (transport.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.device == nil {
		return transport.Device{}, false
	}
	return *s.device, true
}

// OnDisconnect registers fn to be called with the device whenever the link
// drops, whether requested or not.
func (s *Session) OnDisconnect(fn func(transport.Device)) subscription.ID {
	return s.disconnects.Subscribe(fn)
}

// RemoveOnDisconnect removes a disconnect subscription.
func (s *Session) RemoveOnDisconnect(id subscription.ID) bool {
	return s.disconnects.Unsubscribe(id)
}

// OnStateChange registers fn to be called on every state transition.
func (s *Session) OnStateChange(fn func(StateChange)) subscription.ID {
	return s.stateChanges.Subscribe(fn)
}

// RemoveOnStateChange removes a state change subscription.
func (s *Session) RemoveOnStateChange(id subscription.ID) bool {
	return s.stateChanges.Unsubscribe(id)
}

// Connect connects to dev, or to the remembered device when dev is nil.
// Without either, it discovers a cooker and connects to it. Connect is a
// no-op when already connected. timeout bounds the attempt; zero uses
// Config.ConnectTimeout.
func (s *Session) Connect(ctx context.Context, dev *transport.Device, timeout time.Duration) error {
	if s.isClosed() {
		return ErrClosed
	}
	if s.IsConnected() {
		return nil
	}
	if dev != nil {
		s.remember(*dev)
	}

	target, ok := s.Device()
	if !ok {
		s.debugLog("no device specified, starting discovery")
		_, err := s.Discover(ctx, DiscoverOptions{Connect: true})
		return err
	}
	return s.connect(ctx, target, timeout)
}

// Disconnect closes the active connection, if any, and stops a pending
// reconnect. Subscribers of OnDisconnect are notified before Disconnect
// returns.
func (s *Session) Disconnect(ctx context.Context) error {
	stopped := s.cancelReconnect()

	s.mu.RLock()
	conn, gen := s.conn, s.gen
	s.mu.RUnlock()

	if conn == nil {
		if stopped {
			s.setState(StateDisconnected, "disconnect requested")
		}
		return nil
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "disconnecting", "device", conn.Device().Address)
	}
	// Detach first so the transport's own disconnect callback is stale.
	live := conn.Connected()
	s.lost(gen, "disconnect requested", true)

	var err error
	if live {
		err = conn.Disconnect()
	}

	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// Close disconnects, stops any reconnect loop, and moves the session to
// StateClosed. It is safe to call Close multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	err := s.Disconnect(context.Background())
	s.setState(StateClosed, "closed")
	return err
}

// connect performs one attempt under the connect lock.
func (s *Session) connect(ctx context.Context, dev transport.Device, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.cfg.ConnectTimeout
	}

	if err := s.connectLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.connectLock.Release(1)

	// Another caller may have connected while this one waited.
	if s.IsConnected() {
		return nil
	}
	if s.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.remember(dev)
	s.setState(StateConnecting, dev.String())

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.debugLog("connecting", "device", dev.String(), "timeout", timeout)
	conn, err := s.adapter.Connect(cctx, dev, func() {
		s.lost(gen, "link lost", false)
	})
	if err != nil {
		s.setState(s.idleState(), err.Error())
		s.logError(fmt.Sprintf("connect %s: %v", dev.Address, err))
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailure, dev.Address, err)
	}

	s.mu.Lock()
	if s.closed {
		// Close ran while connecting.
		s.mu.Unlock()
		_ = conn.Disconnect()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		// The attempt was cancelled while the link came up.
		s.mu.Unlock()
		_ = conn.Disconnect()
		s.setState(s.idleState(), err.Error())
		return err
	}
	s.conn = conn
	s.mu.Unlock()

	s.backoff.Reset()
	s.setState(StateConnected, dev.String())
	if s.logger != nil {
		s.logger.Info("connected", "device", dev.String(), "session", s.sessionID)
	}
	return nil
}

// lost handles the end of connection gen. Stale and repeated calls are
// ignored, so the transport callback and Disconnect can both report the
// same loss.
func (s *Session) lost(gen uint64, reason string, requested bool) {
	s.mu.Lock()
	if s.conn == nil || gen != s.gen {
		s.mu.Unlock()
		return
	}
	dev := s.conn.Device()
	s.conn = nil
	reconnect := !requested && !s.closed && s.cfg.Reconnect.Enabled && !s.reconnecting
	var (
		rctx context.Context
		done chan struct{}
	)
	if reconnect {
		s.reconnecting = true
		rctx, s.stopReconnect = context.WithCancel(s.ctx)
		done = make(chan struct{})
		s.reconnectDone = done
		s.wg.Add(1)
	}
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("disconnected", "device", dev.String(), "reason", reason)
	}

	if reconnect {
		s.setState(StateReconnecting, reason)
	} else {
		s.setState(StateDisconnected, reason)
	}

	s.disconnects.Notify(dev)

	if reconnect {
		go s.reconnectLoop(rctx, dev, done)
	}
}

// cancelReconnect stops a running reconnect loop and waits for it to
// return. It reports whether a loop was stopped.
func (s *Session) cancelReconnect() bool {
	s.mu.Lock()
	stop, done := s.stopReconnect, s.reconnectDone
	s.stopReconnect, s.reconnectDone = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return false
	}
	stop()
	<-done
	s.backoff.Reset()
	return true
}

// reconnectLoop re-establishes the link with backoff until it succeeds,
// the attempts run out, or the session closes.
func (s *Session) reconnectLoop(ctx context.Context, dev transport.Device, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.reconnecting = false
		if s.reconnectDone == done {
			s.stopReconnect()
			s.stopReconnect, s.reconnectDone = nil, nil
		}
		s.mu.Unlock()
	}()

	for {
		delay, ok := s.backoff.Next()
		if !ok {
			s.setState(StateDisconnected, "reconnect attempts exhausted")
			if s.logger != nil {
				s.logger.Warn("giving up reconnecting", "device", dev.String(), "attempts", s.backoff.Attempts())
			}
			return
		}

		s.debugLog("reconnecting", "device", dev.String(), "attempt", s.backoff.Attempts(), "delay", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		err := s.connect(ctx, dev, s.cfg.ConnectTimeout)
		if err == nil {
			return
		}
		if errors.Is(err, ErrClosed) || ctx.Err() != nil {
			return
		}
		s.debugLog("reconnect attempt failed", "error", err)
	}
}

func (s *Session) remember(dev transport.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != nil && s.device.Address == dev.Address {
		return
	}
	d := dev
	s.device = &d
}

// idleState is the state to fall back to after a failed attempt.
func (s *Session) idleState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reconnecting {
		return StateReconnecting
	}
	return StateDisconnected
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) setState(newState State, reason string) {
	s.mu.Lock()
	oldState := s.state
	if oldState == newState || oldState == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = newState
	s.mu.Unlock()

	s.protoLog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.sessionID,
		Layer:     log.LayerSession,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})
	s.stateChanges.Notify(StateChange{Old: oldState, New: newState, Reason: reason})
}

func (s *Session) logError(msg string) {
	s.protoLog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.sessionID,
		Layer:     log.LayerSession,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Layer: log.LayerSession, Message: msg, Context: "connect"},
	})
}

// debugLog logs a debug message if logging is enabled.
func (s *Session) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
