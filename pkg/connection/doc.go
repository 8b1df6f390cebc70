// Package connection manages the link to one cooker.
//
// A Session owns at most one transport.Conn at a time. It handles:
//   - Discovery by service UUID or local name
//   - Serialized connection attempts (the connect lock)
//   - Connection state tracking and state change fan-out
//   - Disconnect fan-out to subscribers
//   - Optional automatic reconnection with exponential backoff
//
// # Remembered device
//
// The last device a session connected to, or the one passed in Config, is
// remembered. Connect without a device reuses it; with no remembered
// device Connect discovers one first.
//
// # Reconnection Strategy
//
// Reconnection is off by default. With ReconnectPolicy.Enabled, a link that
// drops without Disconnect being called is re-established in the
// background:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds
//  4. Give up after MaxAttempts (0 retries until Close)
//  5. Reset to 1s on successful reconnection
//
// To keep several clients from retrying in lockstep each delay gets jitter:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package connection
