package transport

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// GATT identifiers of the cooker.
const (
	ServiceUUID     = "0e140000-0af1-4582-a242-773e63054c68"
	WriteCharUUID   = "0e140001-0af1-4582-a242-773e63054c68"
	NotifyCharUUID  = "0e140002-0af1-4582-a242-773e63054c68"
	AsyncCharUUID   = "0e140003-0af1-4582-a242-773e63054c68"
	DeviceLocalName = "Nano"
)

// Transport errors.
var (
	ErrNotConnected         = errors.New("not connected")
	ErrCharacteristicAbsent = errors.New("characteristic not found")
	ErrAdapterUnavailable   = errors.New("bluetooth adapter unavailable")
)

// Device is a peripheral seen during a scan.
type Device struct {
	// Address is the peripheral's Bluetooth address (AA:BB:CC:DD:EE:FF).
	Address string

	// Name is the advertised local name, if any.
	Name string

	// ServiceUUIDs lists the advertised service UUIDs.
	ServiceUUIDs []string

	// RSSI is the last received signal strength.
	RSSI int16
}

// AdvertisesService reports whether the device advertises the cooker service.
func (d Device) AdvertisesService() bool {
	return slices.ContainsFunc(d.ServiceUUIDs, func(u string) bool {
		return strings.EqualFold(u, ServiceUUID)
	})
}

// IsCooker reports whether the device can be connected to as a cooker.
func (d Device) IsCooker() bool {
	return d.Name == DeviceLocalName || d.AdvertisesService()
}

// String returns the address and name of the device.
func (d Device) String() string {
	if d.Name == "" {
		return d.Address
	}
	return d.Address + " (" + d.Name + ")"
}

// Adapter discovers and connects to peripherals.
type Adapter interface {
	// Scan reports peripherals until ctx is done. A non-empty serviceUUID
	// filters on the advertised service. found may be called more than once
	// for the same device. Scan returns nil when ctx ends the scan.
	Scan(ctx context.Context, serviceUUID string, found func(Device)) error

	// Connect opens a GATT connection. onDisconnect is called once,
	// asynchronously, when the link drops for any reason.
	Connect(ctx context.Context, dev Device, onDisconnect func()) (Conn, error)
}

// Conn is an open GATT connection.
type Conn interface {
	// Device returns the connected peripheral.
	Device() Device

	// Write writes data to a characteristic. With withResponse the call
	// returns after the peripheral acknowledged the write.
	Write(ctx context.Context, charUUID string, data []byte, withResponse bool) error

	// Subscribe enables notifications on a characteristic. onChunk receives
	// each notification value. The returned cancel function disables them.
	Subscribe(charUUID string, onChunk func([]byte)) (cancel func(), err error)

	// Disconnect closes the link. onDisconnect still fires.
	Disconnect() error

	// Connected reports whether the link is up.
	Connected() bool
}
