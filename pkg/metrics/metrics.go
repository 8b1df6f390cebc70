// Package metrics exports driver statistics as Prometheus collectors.
//
// Collectors are created per instance and registered on the Registerer the
// caller supplies, so several clients can run in one process against
// separate registries.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sousvide-ble/nano-go/pkg/command"
	"github.com/sousvide-ble/nano-go/pkg/connection"
	"github.com/sousvide-ble/nano-go/pkg/interaction"
	"github.com/sousvide-ble/nano-go/pkg/sensor"
)

const namespace = "nano"

var connectionStates = []connection.State{
	connection.StateDisconnected,
	connection.StateConnecting,
	connection.StateConnected,
	connection.StateReconnecting,
	connection.StateClosed,
}

// Metrics holds the collectors of one client.
type Metrics struct {
	exchanges       *prometheus.CounterVec
	exchangeLatency *prometheus.HistogramVec
	chunks          *prometheus.CounterVec
	polls           *prometheus.CounterVec
	connectionState *prometheus.GaugeVec
	transitions     *prometheus.CounterVec
	waterTemp       prometheus.Gauge
	motorSpeed      prometheus.Gauge
}

// New creates the collectors and registers them on reg. constLabels are
// attached to every series, e.g. the device address.
func New(reg prometheus.Registerer, constLabels prometheus.Labels) (*Metrics, error) {
	m := &Metrics{
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "command",
			Name:        "exchanges_total",
			Help:        "Command exchanges by command and outcome.",
			ConstLabels: constLabels,
		}, []string{"command", "outcome"}),
		exchangeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "command",
			Name:        "exchange_duration_seconds",
			Help:        "Duration of successful command exchanges.",
			Buckets:     []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
			ConstLabels: constLabels,
		}, []string{"command"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "transport",
			Name:        "notification_chunks_total",
			Help:        "Notification chunks received, by whether they were routed to an exchange.",
			ConstLabels: constLabels,
		}, []string{"dropped"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "poller",
			Name:        "cycles_total",
			Help:        "Sensor poll cycles by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "state",
			Help:        "Current connection state (1 for the active state).",
			ConstLabels: constLabels,
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "transitions_total",
			Help:        "Connection state transitions by target state.",
			ConstLabels: constLabels,
		}, []string{"state"}),
		waterTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "sensor",
			Name:        "water_temperature",
			Help:        "Last polled water temperature in the display unit.",
			ConstLabels: constLabels,
		}),
		motorSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "sensor",
			Name:        "motor_speed",
			Help:        "Last polled circulator motor speed.",
			ConstLabels: constLabels,
		}),
	}

	collectors := []prometheus.Collector{
		m.exchanges, m.exchangeLatency, m.chunks, m.polls,
		m.connectionState, m.transitions, m.waterTemp, m.motorSpeed,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	m.setState(connection.StateDisconnected)
	return m, nil
}

// ObserveExchange implements interaction.Observer.
func (m *Metrics) ObserveExchange(cmd command.Command, outcome interaction.Outcome, d time.Duration) {
	m.exchanges.WithLabelValues(cmd.String(), string(outcome)).Inc()
	if outcome == interaction.OutcomeOK {
		m.exchangeLatency.WithLabelValues(cmd.String()).Observe(d.Seconds())
	}
}

// ObserveChunk implements interaction.Observer.
func (m *Metrics) ObserveChunk(dropped bool) {
	m.chunks.WithLabelValues(strconv.FormatBool(dropped)).Inc()
}

// ObservePoll implements poller.Observer.
func (m *Metrics) ObservePoll(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.polls.WithLabelValues(result).Inc()
}

// ObserveStateChange records a connection state transition. It has the
// signature of a connection.Session state subscriber.
func (m *Metrics) ObserveStateChange(c connection.StateChange) {
	m.transitions.WithLabelValues(c.New.String()).Inc()
	m.setState(c.New)
}

// ObserveSnapshot records the gauges of a polled sensor snapshot.
func (m *Metrics) ObserveSnapshot(v sensor.Values) {
	m.waterTemp.Set(v.WaterTemp.Value)
	m.motorSpeed.Set(float64(v.MotorSpeed))
}

func (m *Metrics) setState(current connection.State) {
	for _, s := range connectionStates {
		v := 0.0
		if s == current {
			v = 1
		}
		m.connectionState.WithLabelValues(s.String()).Set(v)
	}
}

var _ interaction.Observer = (*Metrics)(nil)
