// Package transport defines the Bluetooth Low Energy operations the cooker
// driver needs from a BLE stack.
//
// The driver only ever talks to one GATT service with three characteristics:
//
//	┌───────────────────────────────────────────────┐
//	│ service  0e140000-0af1-4582-a242-773e63054c68 │
//	├───────────────────────────────────────────────┤
//	│ write    ...0001  requests (write w/ ack)     │
//	│ notify   ...0002  responses (20-byte chunks)  │
//	│ async    ...0003  unsolicited events          │
//	└───────────────────────────────────────────────┘
//
// Implementations:
//   - bluez: BlueZ over the system D-Bus (Linux)
//   - transporttest: scripted in-memory peripheral for tests
package transport
