package cooker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sousvide-ble/nano-go/pkg/command"
	"github.com/sousvide-ble/nano-go/pkg/connection"
	"github.com/sousvide-ble/nano-go/pkg/interaction"
	"github.com/sousvide-ble/nano-go/pkg/log"
	"github.com/sousvide-ble/nano-go/pkg/metrics"
	"github.com/sousvide-ble/nano-go/pkg/poller"
	"github.com/sousvide-ble/nano-go/pkg/sensor"
	"github.com/sousvide-ble/nano-go/pkg/subscription"
	"github.com/sousvide-ble/nano-go/pkg/transport"
	"github.com/sousvide-ble/nano-go/pkg/wire"
)

// ErrInvalidTemperature is returned for a setpoint that is not finite or
// does not fit the cooker's tenths-of-a-degree register.
var ErrInvalidTemperature = errors.New("invalid target temperature")

// DefaultUnitSettle is the pause after a unit change before the next
// command.
const DefaultUnitSettle = 100 * time.Millisecond

// Config configures a Client.
type Config struct {
	// Adapter is the Bluetooth adapter. Required.
	Adapter transport.Adapter

	// Device is the cooker to connect to. When nil, Connect discovers one.
	Device *transport.Device

	ConnectTimeout  time.Duration
	DiscoverTimeout time.Duration
	ResponseTimeout time.Duration

	// PollInterval is the default pause between sensor polls.
	PollInterval time.Duration

	// UnitSettle is the pause after SetUnit. Zero uses DefaultUnitSettle;
	// a negative value disables it.
	UnitSettle time.Duration

	// Reconnect controls automatic reconnection after a link loss.
	Reconnect connection.ReconnectPolicy

	// Logger is the operational logger. If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger captures frames, exchanges and state changes.
	ProtocolLogger log.Logger

	// SessionID tags protocol log events. Generated when empty.
	SessionID string

	// Metrics receives exchange, poll and state statistics. Optional.
	Metrics *metrics.Metrics
}

// Client drives one cooker.
type Client struct {
	session    *connection.Session
	dispatcher *interaction.Client
	poller     *poller.Poller
	logger     *slog.Logger
	unitSettle time.Duration
}

// New creates a client. It does not connect.
func New(cfg Config) *Client {
	if cfg.SessionID == "" {
		cfg.SessionID = log.NewSessionID()
	}
	switch {
	case cfg.UnitSettle == 0:
		cfg.UnitSettle = DefaultUnitSettle
	case cfg.UnitSettle < 0:
		cfg.UnitSettle = 0
	}

	session := connection.NewSession(connection.Config{
		Adapter:         cfg.Adapter,
		Device:          cfg.Device,
		ConnectTimeout:  cfg.ConnectTimeout,
		DiscoverTimeout: cfg.DiscoverTimeout,
		Reconnect:       cfg.Reconnect,
		Logger:          cfg.Logger,
		ProtocolLogger:  cfg.ProtocolLogger,
		SessionID:       cfg.SessionID,
	})

	icfg := interaction.Config{
		Conns:           session,
		ResponseTimeout: cfg.ResponseTimeout,
		Logger:          cfg.Logger,
		ProtocolLogger:  cfg.ProtocolLogger,
		SessionID:       cfg.SessionID,
	}
	if cfg.Metrics != nil {
		icfg.Observer = cfg.Metrics
	}

	c := &Client{
		session:    session,
		dispatcher: interaction.NewClient(icfg),
		logger:     cfg.Logger,
		unitSettle: cfg.UnitSettle,
	}

	pcfg := poller.Config{
		Read:           c.SensorValues,
		Connected:      session.IsConnected,
		Interval:       cfg.PollInterval,
		Logger:         cfg.Logger,
		ProtocolLogger: cfg.ProtocolLogger,
		SessionID:      cfg.SessionID,
	}
	if cfg.Metrics != nil {
		pcfg.Observer = cfg.Metrics
	}
	c.poller = poller.New(pcfg)

	// Registered first so a waiting exchange fails before user callbacks run.
	session.OnDisconnect(func(transport.Device) { c.dispatcher.HandleDisconnect() })

	if cfg.Metrics != nil {
		session.OnStateChange(cfg.Metrics.ObserveStateChange)
		c.poller.Subscribe(cfg.Metrics.ObserveSnapshot)
	}
	return c
}

// SessionID returns the identifier used in protocol log events.
func (c *Client) SessionID() string {
	return c.session.SessionID()
}

// Connect connects to dev, the remembered device, or a discovered cooker,
// in that order of preference. It is a no-op when already connected.
func (c *Client) Connect(ctx context.Context, dev *transport.Device) error {
	return c.session.Connect(ctx, dev, 0)
}

// Disconnect closes the connection. The remembered device is kept.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.session.Disconnect(ctx)
}

// Close stops polling and disconnects. The client cannot be reused.
func (c *Client) Close() error {
	c.poller.Stop()
	err := c.session.Close()
	c.dispatcher.Close()
	return err
}

// Discover scans for cookers.
func (c *Client) Discover(ctx context.Context, opts connection.DiscoverOptions) ([]transport.Device, error) {
	return c.session.Discover(ctx, opts)
}

// IsConnected reports whether the link is up.
func (c *Client) IsConnected() bool {
	return c.session.IsConnected()
}

// State returns the connection state.
func (c *Client) State() connection.State {
	return c.session.State()
}

// Device returns the remembered cooker.
func (c *Client) Device() (transport.Device, bool) {
	return c.session.Device()
}

// SendReadCommand runs a read command and returns its decoded response.
func (c *Client) SendReadCommand(ctx context.Context, cmd command.Command) (wire.Message, error) {
	return c.dispatcher.Read(ctx, cmd)
}

// SendWriteCommand runs a write command.
func (c *Client) SendWriteCommand(ctx context.Context, cmd command.Command, value wire.Message) error {
	return c.dispatcher.Write(ctx, cmd, value)
}

// SensorValues reads all sensors and replaces the cached snapshot.
func (c *Client) SensorValues(ctx context.Context) (sensor.Values, error) {
	return c.readSensors(ctx, command.GetSensorValues)
}

// CurrentTemperature returns the water temperature.
func (c *Client) CurrentTemperature(ctx context.Context) (sensor.Temperature, error) {
	v, err := c.SensorValues(ctx)
	if err != nil {
		return sensor.Temperature{}, err
	}
	return v.WaterTemp, nil
}

// Status reads the sensors and returns "stopped" or "running".
func (c *Client) Status(ctx context.Context) (string, error) {
	v, err := c.SensorValues(ctx)
	if err != nil {
		return "", err
	}
	return v.Status(), nil
}

// TargetTemperature returns the setpoint in the display unit.
func (c *Client) TargetTemperature(ctx context.Context) (float64, error) {
	v, err := c.readInteger(ctx, command.ReadTargetTemp)
	if err != nil {
		return 0, err
	}
	return float64(v) / 10, nil
}

// SetTargetTemperature sets the setpoint in the display unit. The cooker
// stores tenths of a degree; halves round to even.
func (c *Client) SetTargetTemperature(ctx context.Context, t float64) error {
	scaled := math.RoundToEven(t * 10)
	if math.IsNaN(scaled) || scaled < math.MinInt32 || scaled > math.MaxInt32 {
		return fmt.Errorf("%w: %g", ErrInvalidTemperature, t)
	}
	return c.dispatcher.Write(ctx, command.SetTemp, &wire.IntegerValue{Value: int32(scaled)})
}

// Timer returns the cooking timer in minutes.
func (c *Client) Timer(ctx context.Context) (int32, error) {
	return c.readInteger(ctx, command.ReadTimer)
}

// SetTimer sets the cooking timer in minutes.
func (c *Client) SetTimer(ctx context.Context, minutes int32) error {
	return c.dispatcher.Write(ctx, command.SetTimer, &wire.IntegerValue{Value: minutes})
}

// Unit returns the display unit, "C" or "F".
func (c *Client) Unit(ctx context.Context) (string, error) {
	v, err := c.readInteger(ctx, command.ReadUnit)
	if err != nil {
		return "", err
	}
	return sensor.UnitLetter(wire.UnitType(v))
}

// SetUnit sets the display unit. "C" (any case) selects Celsius, anything
// else Fahrenheit. SetUnit returns after the cooker had time to apply the
// change.
func (c *Client) SetUnit(ctx context.Context, unit string) error {
	tag := sensor.UnitTag(unit)
	if err := c.dispatcher.Write(ctx, command.SetUnit, &wire.IntegerValue{Value: int32(tag)}); err != nil {
		return err
	}
	if c.unitSettle <= 0 {
		return nil
	}

	timer := time.NewTimer(c.unitSettle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Start starts cooking and returns the sensor values reported in reply.
func (c *Client) Start(ctx context.Context) (sensor.Values, error) {
	return c.readSensors(ctx, command.Start)
}

// Stop stops cooking and returns the sensor values reported in reply.
func (c *Client) Stop(ctx context.Context) (sensor.Values, error) {
	return c.readSensors(ctx, command.Stop)
}

// FirmwareInfo returns the firmware version and build date.
func (c *Client) FirmwareInfo(ctx context.Context) (wire.FirmwareInfo, error) {
	msg, err := c.dispatcher.Read(ctx, command.GetFirmwareInfo)
	if err != nil {
		return wire.FirmwareInfo{}, err
	}
	fw, ok := msg.(*wire.FirmwareInfo)
	if !ok {
		return wire.FirmwareInfo{}, unexpected(command.GetFirmwareInfo, msg)
	}
	return *fw, nil
}

// Subscribe registers fn for every polled snapshot.
func (c *Client) Subscribe(fn func(sensor.Values)) subscription.ID {
	return c.poller.Subscribe(fn)
}

// Unsubscribe removes a snapshot subscriber.
func (c *Client) Unsubscribe(id subscription.ID) bool {
	return c.poller.Unsubscribe(id)
}

// OnDisconnect registers fn for every link loss or requested disconnect.
func (c *Client) OnDisconnect(fn func(transport.Device)) subscription.ID {
	return c.session.OnDisconnect(fn)
}

// RemoveOnDisconnect removes a disconnect subscriber.
func (c *Client) RemoveOnDisconnect(id subscription.ID) bool {
	return c.session.RemoveOnDisconnect(id)
}

// OnStateChange registers fn for connection state transitions.
func (c *Client) OnStateChange(fn func(connection.StateChange)) subscription.ID {
	return c.session.OnStateChange(fn)
}

// RemoveOnStateChange removes a state subscriber.
func (c *Client) RemoveOnStateChange(id subscription.ID) bool {
	return c.session.RemoveOnStateChange(id)
}

// StartPoll starts background polling. A positive interval replaces the
// current one first. It returns false if polling was already running.
func (c *Client) StartPoll(interval time.Duration) bool {
	started := c.poller.Start(interval)
	if started && c.logger != nil {
		c.logger.Info("polling started", "interval", c.poller.Interval())
	}
	return started
}

// StopPoll stops background polling and waits for the loop to exit.
func (c *Client) StopPoll() {
	c.poller.Stop()
}

// SetPollInterval changes the pause between polls.
func (c *Client) SetPollInterval(d time.Duration) {
	c.poller.SetInterval(d)
}

// PollInterval returns the pause between polls.
func (c *Client) PollInterval() time.Duration {
	return c.poller.Interval()
}

// IsPolling reports whether background polling is active.
func (c *Client) IsPolling() bool {
	return c.poller.Running()
}

// LastStatus returns the most recent sensor snapshot without a device
// round trip.
func (c *Client) LastStatus() (sensor.Values, bool) {
	return c.poller.Last()
}

// RestoreStatus seeds the cached snapshot, e.g. from persisted state.
func (c *Client) RestoreStatus(v sensor.Values) {
	if _, ok := c.poller.Last(); !ok {
		c.poller.Record(v)
	}
}

func (c *Client) readSensors(ctx context.Context, cmd command.Command) (sensor.Values, error) {
	msg, err := c.dispatcher.Read(ctx, cmd)
	if err != nil {
		return sensor.Values{}, err
	}
	list, ok := msg.(*wire.SensorValueList)
	if !ok {
		return sensor.Values{}, unexpected(cmd, msg)
	}

	v, err := sensor.FromList(list)
	if err != nil {
		return sensor.Values{}, fmt.Errorf("%s: %w", cmd, err)
	}
	c.poller.Record(v)
	return v, nil
}

func (c *Client) readInteger(ctx context.Context, cmd command.Command) (int32, error) {
	msg, err := c.dispatcher.Read(ctx, cmd)
	if err != nil {
		return 0, err
	}
	v, ok := msg.(*wire.IntegerValue)
	if !ok {
		return 0, unexpected(cmd, msg)
	}
	return v.Value, nil
}

func unexpected(cmd command.Command, msg wire.Message) error {
	return fmt.Errorf("%w: %s: unexpected response %T", interaction.ErrDecodeFailure, cmd, msg)
}
