// Package sensor turns the cooker's raw sensor list into normalized values.
package sensor

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sousvide-ble/nano-go/pkg/log"
	"github.com/sousvide-ble/nano-go/pkg/wire"
)

// Sensor errors.
var (
	ErrUnknownUnit     = errors.New("unknown unit")
	ErrShortSensorList = errors.New("sensor list too short")
)

// Unit letters.
const (
	Celsius    = "C"
	Fahrenheit = "F"
)

// Status values derived from the motor speed.
const (
	StatusStopped = "stopped"
	StatusRunning = "running"
)

// listLen is the number of entries in a sensor list response.
const listLen = 8

// Temperature is a scaled reading with its unit letter.
type Temperature struct {
	Value float64
	Unit  string
}

// String returns the reading as e.g. "21.3C".
func (t Temperature) String() string {
	return fmt.Sprintf("%g%s", t.Value, t.Unit)
}

// Values is one normalized sensor snapshot.
type Values struct {
	WaterTemp    Temperature
	HeaterTemp   Temperature
	TriacTemp    Temperature
	InternalTemp Temperature
	WaterLow     bool
	WaterLeak    bool
	MotorSpeed   int32
}

// Status returns "stopped" when the circulator motor is off and "running"
// otherwise.
func (v Values) Status() string {
	if v.MotorSpeed == 0 {
		return StatusStopped
	}
	return StatusRunning
}

// LogValue implements slog.LogValuer.
func (v Values) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("water_temp", v.WaterTemp.String()),
		slog.Bool("water_low", v.WaterLow),
		slog.Bool("water_leak", v.WaterLeak),
		slog.Int("motor_speed", int(v.MotorSpeed)),
	)
}

// Snapshot converts v for the protocol log.
func (v Values) Snapshot() *log.SnapshotEvent {
	return &log.SnapshotEvent{
		WaterTemp:    v.WaterTemp.Value,
		HeaterTemp:   v.HeaterTemp.Value,
		TriacTemp:    v.TriacTemp.Value,
		InternalTemp: v.InternalTemp.Value,
		Unit:         v.WaterTemp.Unit,
		WaterLow:     v.WaterLow,
		WaterLeak:    v.WaterLeak,
		MotorSpeed:   v.MotorSpeed,
	}
}

// FromList maps a sensor list response. Entries are positional: water,
// heater, triac, reserved, internal, water low, water leak, motor speed.
// The reserved entry is ignored. Entries past the eighth are ignored.
func FromList(list *wire.SensorValueList) (Values, error) {
	if list == nil || len(list.Values) < listLen {
		n := 0
		if list != nil {
			n = len(list.Values)
		}
		return Values{}, fmt.Errorf("%w: %d of %d entries", ErrShortSensorList, n, listLen)
	}
	e := list.Values

	var (
		v   Values
		err error
	)
	if v.WaterTemp, err = temperature(e[0]); err != nil {
		return Values{}, err
	}
	if v.HeaterTemp, err = temperature(e[1]); err != nil {
		return Values{}, err
	}
	if v.TriacTemp, err = temperature(e[2]); err != nil {
		return Values{}, err
	}
	if v.InternalTemp, err = temperature(e[4]); err != nil {
		return Values{}, err
	}
	v.WaterLow = e[5].Value != 0
	v.WaterLeak = e[6].Value != 0
	v.MotorSpeed = e[7].Value
	return v, nil
}

// UnitLetter returns the unit letter of a temperature unit tag.
func UnitLetter(u wire.UnitType) (string, error) {
	letter, _, err := unitScale(u)
	return letter, err
}

// UnitTag returns the whole-degree unit tag for a letter. Anything other
// than "C" (case-insensitive) selects Fahrenheit.
func UnitTag(letter string) wire.UnitType {
	if letter == "C" || letter == "c" {
		return wire.UnitDegreesC
	}
	return wire.UnitDegreesF
}

func temperature(sv wire.SensorValue) (Temperature, error) {
	letter, factor, err := unitScale(sv.Units)
	if err != nil {
		return Temperature{}, fmt.Errorf("%s: %w", sv.SensorType, err)
	}
	return Temperature{Value: float64(sv.Value) / factor, Unit: letter}, nil
}

func unitScale(u wire.UnitType) (string, float64, error) {
	switch u {
	case wire.UnitDegreesC:
		return Celsius, 1, nil
	case wire.UnitDegreesPoint1C:
		return Celsius, 10, nil
	case wire.UnitDegreesPoint01C:
		return Celsius, 100, nil
	case wire.UnitDegreesF:
		return Fahrenheit, 1, nil
	case wire.UnitDegreesPoint1F:
		return Fahrenheit, 10, nil
	case wire.UnitDegreesPoint01F:
		return Fahrenheit, 100, nil
	default:
		return "", 0, fmt.Errorf("%w: %s", ErrUnknownUnit, u)
	}
}
