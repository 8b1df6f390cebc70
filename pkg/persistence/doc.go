// Package persistence stores client state that must survive restarts.
//
// The state file holds the remembered cooker, so a restarted daemon can
// reconnect without scanning, and the last sensor snapshot, so the last
// known status is available before the first poll completes.
package persistence
