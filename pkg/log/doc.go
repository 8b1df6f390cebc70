// Package log provides structured protocol logging for the appliance link.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, frame, command,
// session). It is separate from operational logging (slog) - protocol capture
// provides a complete machine-readable trace of every chunk, frame and
// exchange for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/nano/cooker.nlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: GATT writes and notification chunks (FrameEvent)
//   - Frame: reassembled frames, including incomplete ones (FrameEvent)
//   - Command: exchange lifecycle (ExchangeEvent)
//   - Session: connection state changes (StateChangeEvent)
//
// Decoded sensor readings (SnapshotEvent) and errors have dedicated event
// types. Every event carries the SessionID of the client that produced it.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys. Reader
// iterates a file, optionally through a Filter.
package log
