// Package poller periodically reads the cooker's sensors and fans the
// readings out to subscribers.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sousvide-ble/nano-go/pkg/log"
	"github.com/sousvide-ble/nano-go/pkg/sensor"
	"github.com/sousvide-ble/nano-go/pkg/subscription"
)

// DefaultInterval is the pause between two sensor reads.
const DefaultInterval = 30 * time.Second

// Poller states as they appear in the protocol log.
const (
	stateIdle    = "IDLE"
	statePolling = "POLLING"
)

// Observer receives poll statistics.
type Observer interface {
	ObservePoll(err error)
}

// Config configures a Poller.
type Config struct {
	// Read fetches one sensor snapshot. Required.
	Read func(ctx context.Context) (sensor.Values, error)

	// Connected reports whether the link is up. The loop ends once it
	// returns false. Required.
	Connected func() bool

	// Interval is the pause between reads. Defaults to DefaultInterval.
	Interval time.Duration

	Logger         *slog.Logger
	ProtocolLogger log.Logger
	SessionID      string
	Observer       Observer
}

// Poller runs at most one polling loop at a time.
type Poller struct {
	read      func(ctx context.Context) (sensor.Values, error)
	connected func() bool
	logger    *slog.Logger
	protoLog  log.Logger
	sessionID string
	observer  Observer

	subscribers *subscription.Set[sensor.Values]

	mu       sync.Mutex
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	last     sensor.Values
	hasLast  bool

	cycles   atomic.Uint64
	failures atomic.Uint64
}

// New creates a stopped poller.
func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Poller{
		read:        cfg.Read,
		connected:   cfg.Connected,
		logger:      cfg.Logger,
		protoLog:    log.OrNoop(cfg.ProtocolLogger),
		sessionID:   cfg.SessionID,
		observer:    cfg.Observer,
		subscribers: subscription.NewSet[sensor.Values]("sensor-updates", cfg.Logger),
		interval:    cfg.Interval,
	}
}

// Start launches the polling loop. A positive interval replaces the
// configured one first. Start returns false if a loop is already running.
func (p *Poller) Start(interval time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if interval > 0 {
		p.interval = interval
	}
	if p.runningLocked() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.loop(ctx, done)
	return true
}

// Stop cancels the loop and waits until it has exited.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningLocked()
}

// SetInterval changes the pause between reads. It takes effect after the
// current pause. Non-positive values are ignored.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.interval = d
	p.mu.Unlock()
}

// Interval returns the pause between reads.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// Last returns the most recent snapshot.
func (p *Poller) Last() (sensor.Values, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.hasLast
}

// Record replaces the cached snapshot without notifying subscribers.
func (p *Poller) Record(v sensor.Values) {
	p.mu.Lock()
	p.last = v
	p.hasLast = true
	p.mu.Unlock()
}

// Subscribe registers fn for every polled snapshot.
func (p *Poller) Subscribe(fn func(sensor.Values)) subscription.ID {
	return p.subscribers.Subscribe(fn)
}

// Unsubscribe removes a subscriber.
func (p *Poller) Unsubscribe(id subscription.ID) bool {
	return p.subscribers.Unsubscribe(id)
}

// Stats returns the number of poll cycles and failed reads.
func (p *Poller) Stats() (cycles, failures uint64) {
	return p.cycles.Load(), p.failures.Load()
}

func (p *Poller) runningLocked() bool {
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// stillConnected checks the link under p.mu and, when it is gone, detaches
// the loop owning done so a concurrent Start launches a fresh one.
func (p *Poller) stillConnected(done chan struct{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected() {
		return true
	}
	if p.done == done {
		p.cancel()
		p.cancel, p.done = nil, nil
	}
	return false
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.logState(stateIdle, statePolling, "started")
	reason := "stopped"
	defer func() { p.logState(statePolling, stateIdle, reason) }()

	for {
		if !p.stillConnected(done) {
			reason = "not connected"
			p.debugLog("polling ended, not connected")
			return
		}

		p.poll(ctx)

		timer := time.NewTimer(p.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// poll runs one cycle: read, cache, fan out.
func (p *Poller) poll(ctx context.Context) {
	v, err := p.read(ctx)
	if ctx.Err() != nil {
		return
	}
	p.cycles.Add(1)
	if p.observer != nil {
		p.observer.ObservePoll(err)
	}
	if err != nil {
		p.failures.Add(1)
		if p.logger != nil {
			p.logger.Warn("sensor poll failed", "error", err)
		}
		return
	}

	p.Record(v)
	p.protoLog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: p.sessionID,
		Direction: log.DirectionIn,
		Layer:     log.LayerSession,
		Category:  log.CategorySnapshot,
		Snapshot:  v.Snapshot(),
	})
	p.subscribers.Notify(v)
}

func (p *Poller) logState(oldState, newState, reason string) {
	p.protoLog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: p.sessionID,
		Layer:     log.LayerSession,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityPoller,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (p *Poller) debugLog(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
