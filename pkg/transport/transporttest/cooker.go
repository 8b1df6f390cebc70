package transporttest

import (
	"sync"

	"github.com/sousvide-ble/nano-go/pkg/frame"
	"github.com/sousvide-ble/nano-go/pkg/transport"
	"github.com/sousvide-ble/nano-go/pkg/wire"
)

// Cooker simulates the appliance's command handling.
type Cooker struct {
	*Peripheral

	mu         sync.Mutex
	unit       wire.UnitType
	setpoint   int32 // tenths of a degree
	timer      int32 // minutes
	running    bool
	waterTemp  int32 // hundredths of a degree
	waterLow   bool
	waterLeak  bool
	motorSpeed int32
	firmware   wire.FirmwareInfo
	requests   []wire.MessageType
}

// NewCooker returns an idle cooker named "Nano" at address.
func NewCooker(address string) *Cooker {
	c := &Cooker{
		unit:       wire.UnitDegreesC,
		setpoint:   560,
		waterTemp:  2130,
		motorSpeed: 1200,
		firmware:   wire.FirmwareInfo{Version: "2.1.7", BuildDate: "2023-04-11"},
	}
	c.Peripheral = NewPeripheral(transport.Device{
		Address:      address,
		Name:         transport.DeviceLocalName,
		ServiceUUIDs: []string{transport.ServiceUUID},
		RSSI:         -60,
	}, c.handle)
	return c
}

// SetWaterTemp sets the water temperature in hundredths of a degree.
func (c *Cooker) SetWaterTemp(v int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waterTemp = v
}

// SetWaterLow sets the water-low flag.
func (c *Cooker) SetWaterLow(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waterLow = v
}

// Running reports whether the cooker is cooking.
func (c *Cooker) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Setpoint returns the target temperature in tenths of a degree.
func (c *Cooker) Setpoint() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setpoint
}

// Timer returns the cooking timer in minutes.
func (c *Cooker) Timer() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer
}

// Unit returns the display unit.
func (c *Cooker) Unit() wire.UnitType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unit
}

// Requests returns the instructions received so far.
func (c *Cooker) Requests() []wire.MessageType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.MessageType(nil), c.requests...)
}

func (c *Cooker) handle(request []byte) [][]byte {
	res := frame.Decode(request)
	if !res.Complete() || len(res.Header) < frame.HeaderLen {
		return nil
	}
	instruction := wire.MessageType(res.Header[1])

	var value wire.IntegerValue
	_ = value.Unmarshal(res.Payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, instruction)

	var reply wire.Message
	switch instruction {
	case wire.MessageTypeGetSensors:
		reply = c.sensorsLocked()
	case wire.MessageTypeStartCooking:
		c.running = true
		reply = c.sensorsLocked()
	case wire.MessageTypeStopCooking:
		c.running = false
		reply = c.sensorsLocked()
	case wire.MessageTypeGetTempSetpoint:
		reply = &wire.IntegerValue{Value: c.setpoint}
	case wire.MessageTypeGetTempUnits:
		reply = &wire.IntegerValue{Value: int32(c.unit)}
	case wire.MessageTypeGetCookingTimer:
		reply = &wire.IntegerValue{Value: c.timer}
	case wire.MessageTypeGetFirmwareInfo:
		fw := c.firmware
		reply = &fw
	case wire.MessageTypeSetTempSetpoint:
		c.setpoint = value.Value
		return nil
	case wire.MessageTypeSetTempUnits:
		c.unit = wire.UnitType(value.Value)
		return nil
	case wire.MessageTypeSetCookingTimer:
		c.timer = value.Value
		return nil
	default:
		return nil
	}
	return Chunk(ResponseFrame(instruction, reply))
}

func (c *Cooker) sensorsLocked() *wire.SensorValueList {
	boolValue := func(b bool) int32 {
		if b {
			return 1
		}
		return 0
	}
	motor := int32(0)
	if c.running {
		motor = c.motorSpeed
	}

	tempUnit, waterUnit := wire.UnitDegreesC, wire.UnitDegreesPoint01C
	if c.unit == wire.UnitDegreesF {
		tempUnit, waterUnit = wire.UnitDegreesF, wire.UnitDegreesPoint01F
	}

	return &wire.SensorValueList{Values: []wire.SensorValue{
		{Value: c.waterTemp, Units: waterUnit, SensorType: wire.SensorWaterTemp},
		{Value: 20, Units: tempUnit, SensorType: wire.SensorHeaterTemp},
		{Value: 22, Units: tempUnit, SensorType: wire.SensorTriacTemp},
		{Value: 0, Units: tempUnit, SensorType: wire.SensorUnused},
		{Value: 25, Units: tempUnit, SensorType: wire.SensorInternalTemp},
		{Value: boolValue(c.waterLow), Units: wire.UnitBoolean, SensorType: wire.SensorWaterLow},
		{Value: boolValue(c.waterLeak), Units: wire.UnitBoolean, SensorType: wire.SensorWaterLeak},
		{Value: motor, Units: wire.UnitMotorSpeed, SensorType: wire.SensorMotorSpeed},
	}}
}
