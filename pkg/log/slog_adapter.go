package log

import (
	"context"
	"encoding/hex"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.DeviceAddress != "" {
		attrs = append(attrs, slog.String("device", event.DeviceAddress))
	}

	// Add type-specific attributes
	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.String("data", hex.EncodeToString(event.Frame.Data)),
		)
		if event.Frame.Truncated {
			attrs = append(attrs, slog.Bool("truncated", true))
		}
		if event.Frame.Missing > 0 {
			attrs = append(attrs, slog.Int("missing", event.Frame.Missing))
		}
	case event.Exchange != nil:
		attrs = append(attrs,
			slog.String("command", event.Exchange.Command),
			slog.Uint64("instruction", uint64(event.Exchange.Instruction)),
			slog.String("state", event.Exchange.State.String()),
		)
		if event.Exchange.Chunks > 0 {
			attrs = append(attrs, slog.Int("chunks", event.Exchange.Chunks))
		}
		if event.Exchange.Duration != nil {
			attrs = append(attrs, slog.Duration("duration", *event.Exchange.Duration))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Snapshot != nil:
		attrs = append(attrs,
			slog.Float64("water_temp", event.Snapshot.WaterTemp),
			slog.String("unit", event.Snapshot.Unit),
			slog.Int("motor_speed", int(event.Snapshot.MotorSpeed)),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
