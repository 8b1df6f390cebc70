package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned when bytes do not parse as the expected message.
var ErrMalformed = errors.New("malformed message")

// Message is implemented by every type carried inside a frame.
type Message interface {
	// Marshal returns the protobuf encoding of the message.
	Marshal() []byte

	// Unmarshal replaces the message contents with the decoded bytes.
	Unmarshal(b []byte) error
}

// Field numbers.
const (
	fieldIntegerValue protowire.Number = 1

	fieldSensorValue      protowire.Number = 1
	fieldSensorUnits      protowire.Number = 2
	fieldSensorType       protowire.Number = 3
	fieldSensorValueEntry protowire.Number = 1

	fieldFirmwareVersion   protowire.Number = 1
	fieldFirmwareBuildDate protowire.Number = 2
)

// IntegerValue carries a single integer: a setpoint in tenths of a degree,
// a timer in minutes or a UnitType.
type IntegerValue struct {
	Value int32
}

// Marshal implements Message.
func (m *IntegerValue) Marshal() []byte {
	return appendInt32(nil, fieldIntegerValue, m.Value)
}

// Unmarshal implements Message.
func (m *IntegerValue) Unmarshal(b []byte) error {
	*m = IntegerValue{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldIntegerValue {
			return consumeInt32(typ, b, &m.Value)
		}
		return 0, nil
	})
}

// SensorValue is one raw sensor reading.
type SensorValue struct {
	Value      int32
	Units      UnitType
	SensorType SensorType
}

// Marshal implements Message.
func (m *SensorValue) Marshal() []byte {
	b := appendInt32(nil, fieldSensorValue, m.Value)
	b = appendInt32(b, fieldSensorUnits, int32(m.Units))
	return appendInt32(b, fieldSensorType, int32(m.SensorType))
}

// Unmarshal implements Message.
func (m *SensorValue) Unmarshal(b []byte) error {
	*m = SensorValue{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldSensorValue:
			return consumeInt32(typ, b, &m.Value)
		case fieldSensorUnits:
			var v int32
			n, err := consumeInt32(typ, b, &v)
			m.Units = UnitType(v)
			return n, err
		case fieldSensorType:
			var v int32
			n, err := consumeInt32(typ, b, &v)
			m.SensorType = SensorType(v)
			return n, err
		}
		return 0, nil
	})
}

// SensorValueList is the response to sensor reads and to start/stop.
type SensorValueList struct {
	Values []SensorValue
}

// Marshal implements Message.
func (m *SensorValueList) Marshal() []byte {
	var b []byte
	for i := range m.Values {
		b = protowire.AppendTag(b, fieldSensorValueEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Values[i].Marshal())
	}
	return b
}

// Unmarshal implements Message.
func (m *SensorValueList) Unmarshal(b []byte) error {
	*m = SensorValueList{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldSensorValueEntry || typ != protowire.BytesType {
			return 0, nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, malformed(protowire.ParseError(n))
		}
		var sv SensorValue
		if err := sv.Unmarshal(v); err != nil {
			return 0, fmt.Errorf("sensor value %d: %w", len(m.Values), err)
		}
		m.Values = append(m.Values, sv)
		return n, nil
	})
}

// FirmwareInfo identifies the firmware running on the appliance.
type FirmwareInfo struct {
	Version   string
	BuildDate string

	// Unknown holds the encoded fields this package does not interpret.
	Unknown []byte
}

// Marshal implements Message.
func (m *FirmwareInfo) Marshal() []byte {
	b := appendString(nil, fieldFirmwareVersion, m.Version)
	b = appendString(b, fieldFirmwareBuildDate, m.BuildDate)
	return append(b, m.Unknown...)
}

// Unmarshal implements Message.
func (m *FirmwareInfo) Unmarshal(b []byte) error {
	*m = FirmwareInfo{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(protowire.ParseError(n))
		}
		field := b
		b = b[n:]

		if typ == protowire.BytesType && (num == fieldFirmwareVersion || num == fieldFirmwareBuildDate) {
			v, vn := protowire.ConsumeBytes(b)
			if vn < 0 {
				return malformed(protowire.ParseError(vn))
			}
			if num == fieldFirmwareVersion {
				m.Version = string(v)
			} else {
				m.BuildDate = string(v)
			}
			b = b[vn:]
			continue
		}

		vn := protowire.ConsumeFieldValue(num, typ, b)
		if vn < 0 {
			return malformed(protowire.ParseError(vn))
		}
		m.Unknown = append(m.Unknown, field[:n+vn]...)
		b = b[vn:]
	}
	return nil
}

// Compile-time interface satisfaction checks.
var (
	_ Message = (*IntegerValue)(nil)
	_ Message = (*SensorValue)(nil)
	_ Message = (*SensorValueList)(nil)
	_ Message = (*FirmwareInfo)(nil)
)

// consumeFields walks the fields of b. fn returns how many bytes of the
// field value it consumed; returning 0 skips the field.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return malformed(protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

// consumeInt32 decodes a varint field into dst. A field with an unexpected
// wire type is skipped.
func consumeInt32(typ protowire.Type, b []byte, dst *int32) (int, error) {
	if typ != protowire.VarintType {
		return 0, nil
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, malformed(protowire.ParseError(n))
	}
	*dst = int32(v)
	return n, nil
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
