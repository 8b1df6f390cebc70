package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sousvide-ble/nano-go/pkg/frame"
	"github.com/sousvide-ble/nano-go/pkg/wire"
)

// Sensor list frame as received from an idle cooker.
var stoppedFrame = []byte("\x01\n\x05\n\x07\x08\xd2\x10\x10\x04\x18\x14\n\x06\x08\x14\x10\x06\x18\x01\n\x06\x08\x16\x10\x06\x18\x02\n\x06\x08\x18\x10\x06\x18\x03\n\x06\x08\x19\x10\x06\x18\x04\n\x06\x08\x01\x10\x03\x18\x05\n\x06\x08\x08\x10\x03\x18\x06\n\x06\x08\x05\x10\x02\x18\x07\x00")

func decodeList(t *testing.T, raw []byte) *wire.SensorValueList {
	t.Helper()
	res := frame.Decode(raw)
	require.True(t, res.Complete())
	var list wire.SensorValueList
	require.NoError(t, list.Unmarshal(res.Payload))
	return &list
}

func runningList(motor int32) *wire.SensorValueList {
	return &wire.SensorValueList{Values: []wire.SensorValue{
		{Value: 6480, Units: wire.UnitDegreesPoint01F, SensorType: wire.SensorWaterTemp},
		{Value: 1502, Units: wire.UnitDegreesPoint1F, SensorType: wire.SensorHeaterTemp},
		{Value: 98, Units: wire.UnitDegreesF, SensorType: wire.SensorTriacTemp},
		{Value: 77, Units: wire.UnitDegreesF, SensorType: wire.SensorUnused},
		{Value: 81, Units: wire.UnitDegreesF, SensorType: wire.SensorInternalTemp},
		{Value: 0, Units: wire.UnitBoolean, SensorType: wire.SensorWaterLow},
		{Value: 1, Units: wire.UnitBoolean, SensorType: wire.SensorWaterLeak},
		{Value: motor, Units: wire.UnitMotorSpeed, SensorType: wire.SensorMotorSpeed},
	}}
}

func TestFromList(t *testing.T) {
	t.Run("Stopped", func(t *testing.T) {
		v, err := FromList(decodeList(t, stoppedFrame))
		require.NoError(t, err)

		assert.Equal(t, Temperature{Value: 21.3, Unit: Celsius}, v.WaterTemp)
		assert.Equal(t, Temperature{Value: 20, Unit: Celsius}, v.HeaterTemp)
		assert.Equal(t, Temperature{Value: 22, Unit: Celsius}, v.TriacTemp)
		assert.Equal(t, Temperature{Value: 25, Unit: Celsius}, v.InternalTemp)
		assert.True(t, v.WaterLow)
		assert.False(t, v.WaterLeak)
		assert.Zero(t, v.MotorSpeed)
		assert.Equal(t, StatusStopped, v.Status())
	})

	t.Run("Running", func(t *testing.T) {
		v, err := FromList(runningList(1200))
		require.NoError(t, err)

		assert.InDelta(t, 64.8, v.WaterTemp.Value, 1e-9)
		assert.Equal(t, Fahrenheit, v.WaterTemp.Unit)
		assert.InDelta(t, 150.2, v.HeaterTemp.Value, 1e-9)
		assert.Equal(t, Temperature{Value: 98, Unit: Fahrenheit}, v.TriacTemp)
		assert.Equal(t, Temperature{Value: 81, Unit: Fahrenheit}, v.InternalTemp)
		assert.False(t, v.WaterLow)
		assert.True(t, v.WaterLeak)
		assert.Equal(t, int32(1200), v.MotorSpeed)
		assert.Equal(t, StatusRunning, v.Status())
	})

	t.Run("ReservedEntryIgnored", func(t *testing.T) {
		list := runningList(1)
		list.Values[3].Units = wire.UnitType(99)

		_, err := FromList(list)
		assert.NoError(t, err)
	})

	t.Run("UnknownUnit", func(t *testing.T) {
		list := runningList(1)
		list.Values[2].Units = wire.UnitBoolean

		_, err := FromList(list)
		require.ErrorIs(t, err, ErrUnknownUnit)
		assert.Contains(t, err.Error(), wire.SensorTriacTemp.String())
	})

	t.Run("Short", func(t *testing.T) {
		list := runningList(1)
		list.Values = list.Values[:7]

		_, err := FromList(list)
		assert.ErrorIs(t, err, ErrShortSensorList)

		_, err = FromList(nil)
		assert.ErrorIs(t, err, ErrShortSensorList)
	})
}

func TestUnitLetter(t *testing.T) {
	tests := []struct {
		unit    wire.UnitType
		want    string
		wantErr bool
	}{
		{wire.UnitDegreesC, Celsius, false},
		{wire.UnitDegreesPoint1C, Celsius, false},
		{wire.UnitDegreesPoint01C, Celsius, false},
		{wire.UnitDegreesF, Fahrenheit, false},
		{wire.UnitDegreesPoint1F, Fahrenheit, false},
		{wire.UnitDegreesPoint01F, Fahrenheit, false},
		{wire.UnitMotorSpeed, "", true},
		{wire.UnitType(0), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.unit.String(), func(t *testing.T) {
			got, err := UnitLetter(tt.unit)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownUnit)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnitTag(t *testing.T) {
	assert.Equal(t, wire.UnitDegreesC, UnitTag("C"))
	assert.Equal(t, wire.UnitDegreesC, UnitTag("c"))
	assert.Equal(t, wire.UnitDegreesF, UnitTag("F"))
	assert.Equal(t, wire.UnitDegreesF, UnitTag("kelvin"))
}

func TestSnapshot(t *testing.T) {
	v, err := FromList(runningList(900))
	require.NoError(t, err)

	s := v.Snapshot()
	assert.InDelta(t, 64.8, s.WaterTemp, 1e-9)
	assert.Equal(t, Fahrenheit, s.Unit)
	assert.True(t, s.WaterLeak)
	assert.Equal(t, int32(900), s.MotorSpeed)
}
