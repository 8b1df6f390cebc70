// Package command holds the closed set of cooker commands and the
// instruction and response schema of each.
package command

import (
	"errors"
	"fmt"

	"github.com/sousvide-ble/nano-go/pkg/frame"
	"github.com/sousvide-ble/nano-go/pkg/wire"
)

// ErrUnknownCommand indicates a command missing from the registry.
var ErrUnknownCommand = errors.New("unknown command")

// Command identifies a cooker operation.
type Command uint8

// Read commands expect a response frame.
const (
	Start Command = iota + 1
	Stop
	GetSensorValues
	ReadTargetTemp
	ReadUnit
	ReadTimer
	GetFirmwareInfo
)

// Write commands are acknowledged by the transport only.
const (
	SetUnit Command = iota + 32
	SetTemp
	SetTimer
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case Start:
		return "START"
	case Stop:
		return "STOP"
	case GetSensorValues:
		return "GET_SENSOR_VALUES"
	case ReadTargetTemp:
		return "READ_TARGET_TEMP"
	case ReadUnit:
		return "READ_UNIT"
	case ReadTimer:
		return "READ_TIMER"
	case GetFirmwareInfo:
		return "GET_FIRMWARE_INFO"
	case SetUnit:
		return "SET_UNIT"
	case SetTemp:
		return "SET_TEMP"
	case SetTimer:
		return "SET_TIMER"
	default:
		return fmt.Sprintf("COMMAND(%d)", uint8(c))
	}
}

// Entry describes how a command is sent and how its response is decoded.
type Entry struct {
	// Instruction is the message type written after the domain byte.
	Instruction wire.MessageType

	// NewResponse allocates the response message. It is nil for write
	// commands.
	NewResponse func() wire.Message
}

// ExpectsResponse reports whether the command waits for a response frame.
func (e Entry) ExpectsResponse() bool {
	return e.NewResponse != nil
}

func newSensorValueList() wire.Message { return &wire.SensorValueList{} }
func newIntegerValue() wire.Message { return &wire.IntegerValue{} }
func newFirmwareInfo() wire.Message { return &wire.FirmwareInfo{} }

var registry = map[Command]Entry{
	Start:           {wire.MessageTypeStartCooking, newSensorValueList},
	Stop:            {wire.MessageTypeStopCooking, newSensorValueList},
	GetSensorValues: {wire.MessageTypeGetSensors, newSensorValueList},
	ReadTargetTemp:  {wire.MessageTypeGetTempSetpoint, newIntegerValue},
	ReadUnit:        {wire.MessageTypeGetTempUnits, newIntegerValue},
	ReadTimer:       {wire.MessageTypeGetCookingTimer, newIntegerValue},
	GetFirmwareInfo: {wire.MessageTypeGetFirmwareInfo, newFirmwareInfo},
	SetUnit:         {Instruction: wire.MessageTypeSetTempUnits},
	SetTemp:         {Instruction: wire.MessageTypeSetTempSetpoint},
	SetTimer:        {Instruction: wire.MessageTypeSetCookingTimer},
}

// Lookup returns the registry entry for cmd.
func Lookup(cmd Command) (Entry, bool) {
	e, ok := registry[cmd]
	return e, ok
}

// MustLookup returns the registry entry for cmd and panics if cmd is not
// registered. The command set is closed, so a miss is a programming error.
func MustLookup(cmd Command) Entry {
	e, ok := registry[cmd]
	if !ok {
		panic(fmt.Errorf("%w: %s", ErrUnknownCommand, cmd))
	}
	return e
}

// All returns every registered command in a stable order.
func All() []Command {
	return []Command{
		Start, Stop, GetSensorValues, ReadTargetTemp, ReadUnit, ReadTimer,
		GetFirmwareInfo, SetUnit, SetTemp, SetTimer,
	}
}

// Request builds the terminated frame for cmd. value may be nil.
func Request(cmd Command, value wire.Message) []byte {
	e := MustLookup(cmd)
	payload := []byte{byte(wire.DomainConfig), byte(e.Instruction)}
	if value != nil {
		payload = append(payload, value.Marshal()...)
	}
	return frame.Encode(payload, true)
}
