// Package wire defines the protobuf wire format of the messages carried
// inside appliance frames.
//
// The schema is fixed by the appliance firmware. Messages are encoded with
// standard protobuf rules (proto3 semantics: zero scalars are omitted and
// unknown fields are skipped) using the low-level protowire primitives, so no
// generated code is needed.
//
// # Request Layout
//
// Every request payload starts with two bytes, the DomainType and the
// MessageType (instruction), followed by an optional serialized message:
//
//	[DomainConfig, MessageTypeSetTempUnits, <IntegerValue{2}>]
//
// The appliance echoes the same two bytes at the start of every response.
//
// # Messages
//
//   - IntegerValue: a single integer (setpoint, timer, unit)
//   - SensorValue / SensorValueList: ordered sensor readings
//   - FirmwareInfo: firmware identification strings
package wire
