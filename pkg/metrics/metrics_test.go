package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sousvide-ble/nano-go/pkg/command"
	"github.com/sousvide-ble/nano-go/pkg/connection"
	"github.com/sousvide-ble/nano-go/pkg/interaction"
	"github.com/sousvide-ble/nano-go/pkg/sensor"
)

// find returns the metric of family name whose labels include want.
func find(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	next:
		for _, m := range fam.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			return m
		}
	}
	t.Fatalf("metric %s %v not found", name, want)
	return nil
}

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := New(reg, prometheus.Labels{"device": "C8:2E:18:00:00:01"})
	require.NoError(t, err)
	return m, reg
}

func TestExchanges(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.ObserveExchange(command.GetSensorValues, interaction.OutcomeOK, 40*time.Millisecond)
	m.ObserveExchange(command.GetSensorValues, interaction.OutcomeOK, 60*time.Millisecond)
	m.ObserveExchange(command.GetSensorValues, interaction.OutcomeTimeout, 3*time.Second)

	ok := find(t, reg, "nano_command_exchanges_total", map[string]string{"command": "GET_SENSOR_VALUES", "outcome": "ok"})
	assert.Equal(t, 2.0, ok.GetCounter().GetValue())

	timeout := find(t, reg, "nano_command_exchanges_total", map[string]string{"outcome": "timeout"})
	assert.Equal(t, 1.0, timeout.GetCounter().GetValue())

	latency := find(t, reg, "nano_command_exchange_duration_seconds", map[string]string{"command": "GET_SENSOR_VALUES"})
	assert.Equal(t, uint64(2), latency.GetHistogram().GetSampleCount(), "failed exchanges have no latency sample")

	device := find(t, reg, "nano_command_exchanges_total", map[string]string{"device": "C8:2E:18:00:00:01"})
	assert.NotNil(t, device)
}

func TestChunksAndPolls(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.ObserveChunk(false)
	m.ObserveChunk(false)
	m.ObserveChunk(true)
	m.ObservePoll(nil)
	m.ObservePoll(errors.New("command timed out"))

	assert.Equal(t, 2.0, find(t, reg, "nano_transport_notification_chunks_total", map[string]string{"dropped": "false"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, find(t, reg, "nano_transport_notification_chunks_total", map[string]string{"dropped": "true"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, find(t, reg, "nano_poller_cycles_total", map[string]string{"result": "ok"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, find(t, reg, "nano_poller_cycles_total", map[string]string{"result": "error"}).GetCounter().GetValue())
}

func TestConnectionState(t *testing.T) {
	m, reg := newTestMetrics(t)

	state := func(s connection.State) float64 {
		return find(t, reg, "nano_session_state", map[string]string{"state": s.String()}).GetGauge().GetValue()
	}
	assert.Equal(t, 1.0, state(connection.StateDisconnected))

	m.ObserveStateChange(connection.StateChange{Old: connection.StateDisconnected, New: connection.StateConnecting})
	m.ObserveStateChange(connection.StateChange{Old: connection.StateConnecting, New: connection.StateConnected})

	assert.Equal(t, 1.0, state(connection.StateConnected))
	assert.Zero(t, state(connection.StateDisconnected))
	assert.Zero(t, state(connection.StateConnecting))
	assert.Equal(t, 1.0, find(t, reg, "nano_session_transitions_total", map[string]string{"state": "CONNECTED"}).GetCounter().GetValue())
}

func TestSnapshot(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.ObserveSnapshot(sensor.Values{
		WaterTemp:  sensor.Temperature{Value: 56.4, Unit: sensor.Celsius},
		MotorSpeed: 1200,
	})

	assert.Equal(t, 56.4, find(t, reg, "nano_sensor_water_temperature", nil).GetGauge().GetValue())
	assert.Equal(t, 1200.0, find(t, reg, "nano_sensor_motor_speed", nil).GetGauge().GetValue())
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, nil)
	require.NoError(t, err)

	_, err = New(reg, nil)
	assert.Error(t, err)
}
