// Package subscription implements callback sets with removable tokens.
//
// A Set holds the subscribers of one event stream (disconnects, sensor
// updates). Subscribe returns an ID that removes the callback again.
//
// # Fan-out
//
// Notify delivers an event to every subscriber registered when it starts.
// Subscribers run one after another on the notifying goroutine. A panic in a
// subscriber is recovered and logged; the remaining subscribers still run.
//
// Subscribing or unsubscribing from inside a callback is allowed and takes
// effect for the next Notify.
//
// # Lifecycle
//
// Subscriptions are not tied to a connection. They survive reconnects until
// they are removed or the set is cleared.
package subscription
