package wire

import "fmt"

// DomainType selects the command domain of a request.
type DomainType uint8

const (
	// DomainConfig is the configuration domain used by all cooker commands.
	DomainConfig DomainType = 0
)

// String returns the domain name.
func (d DomainType) String() string {
	switch d {
	case DomainConfig:
		return "CONFIG"
	default:
		return fmt.Sprintf("DOMAIN(%d)", uint8(d))
	}
}

// MessageType is the instruction code of a configuration domain request.
type MessageType uint8

const (
	MessageTypeSetTempSetpoint MessageType = 3
	MessageTypeGetTempSetpoint MessageType = 4
	MessageTypeGetSensors      MessageType = 5
	MessageTypeSetTempUnits    MessageType = 6
	MessageTypeGetTempUnits    MessageType = 7
	MessageTypeSetCookingTimer MessageType = 8
	MessageTypeGetCookingTimer MessageType = 9
	MessageTypeStartCooking    MessageType = 10
	MessageTypeStopCooking     MessageType = 11
	MessageTypeGetFirmwareInfo MessageType = 12
)

// String returns the instruction name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeSetTempSetpoint:
		return "SET_TEMP_SETPOINT"
	case MessageTypeGetTempSetpoint:
		return "GET_TEMP_SETPOINT"
	case MessageTypeGetSensors:
		return "GET_SENSORS"
	case MessageTypeSetTempUnits:
		return "SET_TEMP_UNITS"
	case MessageTypeGetTempUnits:
		return "GET_TEMP_UNITS"
	case MessageTypeSetCookingTimer:
		return "SET_COOKING_TIMER"
	case MessageTypeGetCookingTimer:
		return "GET_COOKING_TIMER"
	case MessageTypeStartCooking:
		return "START_COOKING"
	case MessageTypeStopCooking:
		return "STOP_COOKING"
	case MessageTypeGetFirmwareInfo:
		return "GET_FIRMWARE_INFO"
	default:
		return fmt.Sprintf("MESSAGE_TYPE(%d)", uint8(m))
	}
}

// UnitType tags the unit and scale of a SensorValue.
type UnitType int32

const (
	UnitMotorSpeed      UnitType = 2
	UnitBoolean         UnitType = 3
	UnitDegreesPoint01C UnitType = 4
	UnitDegreesPoint1C  UnitType = 5
	UnitDegreesC        UnitType = 6
	UnitDegreesPoint01F UnitType = 7
	UnitDegreesPoint1F  UnitType = 8
	UnitDegreesF        UnitType = 9
)

// String returns the unit name.
func (u UnitType) String() string {
	switch u {
	case UnitMotorSpeed:
		return "MOTOR_SPEED"
	case UnitBoolean:
		return "BOOLEAN"
	case UnitDegreesPoint01C:
		return "DEGREES_POINT_01C"
	case UnitDegreesPoint1C:
		return "DEGREES_POINT_1C"
	case UnitDegreesC:
		return "DEGREES_C"
	case UnitDegreesPoint01F:
		return "DEGREES_POINT_01F"
	case UnitDegreesPoint1F:
		return "DEGREES_POINT_1F"
	case UnitDegreesF:
		return "DEGREES_F"
	default:
		return fmt.Sprintf("UNIT(%d)", int32(u))
	}
}

// SensorType identifies the sensor a SensorValue was read from.
type SensorType int32

const (
	SensorWaterTemp    SensorType = 0
	SensorHeaterTemp   SensorType = 1
	SensorTriacTemp    SensorType = 2
	SensorUnused       SensorType = 3
	SensorInternalTemp SensorType = 4
	SensorWaterLow     SensorType = 5
	SensorWaterLeak    SensorType = 6
	SensorMotorSpeed   SensorType = 7
)

// String returns the sensor name.
func (s SensorType) String() string {
	switch s {
	case SensorWaterTemp:
		return "WATER_TEMP"
	case SensorHeaterTemp:
		return "HEATER_TEMP"
	case SensorTriacTemp:
		return "TRIAC_TEMP"
	case SensorUnused:
		return "UNUSED"
	case SensorInternalTemp:
		return "INTERNAL_TEMP"
	case SensorWaterLow:
		return "WATER_LOW"
	case SensorWaterLeak:
		return "WATER_LEAK"
	case SensorMotorSpeed:
		return "MOTOR_SPEED"
	default:
		return fmt.Sprintf("SENSOR(%d)", int32(s))
	}
}
