package log

import (
	"context"
	"log/slog"
)

// SlogAdapter mirrors session events to an slog.Logger, mostly for
// watching device traffic on the console. Error events are logged at Warn,
// everything else at Debug.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Log(event Event) {
	level := slog.LevelDebug
	if event.Category == CategoryError {
		level = slog.LevelWarn
	}
	ctx := context.Background()
	if !a.logger.Enabled(ctx, level) {
		return
	}

	attrs := append(make([]slog.Attr, 0, 12),
		slog.String("session", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	)
	attrs = appendNonEmpty(attrs, "device_id", event.DeviceID)
	attrs = appendNonEmpty(attrs, "remote", event.RemoteAddr)
	attrs = append(attrs, payloadAttrs(event)...)

	a.logger.LogAttrs(ctx, level, eventMessage(event), attrs...)
}

func appendNonEmpty(attrs []slog.Attr, key, value string) []slog.Attr {
	if value == "" {
		return attrs
	}
	return append(attrs, slog.String(key, value))
}

// eventMessage is the slog message: the wire kind for messages, the
// category otherwise.
func eventMessage(event Event) string {
	if event.Message != nil {
		return "session " + event.Message.Kind
	}
	return "session " + event.Category.String()
}

func payloadAttrs(event Event) []slog.Attr {
	var attrs []slog.Attr
	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated))

	case event.Message != nil:
		m := event.Message
		attrs = append(attrs, slog.String("kind", m.Kind))
		attrs = appendNonEmpty(attrs, "request_id", m.RequestID)
		if len(m.DPS) > 0 {
			attrs = append(attrs, slog.Any("dps", m.DPS))
		}
		if m.OK != nil {
			attrs = append(attrs, slog.Bool("ok", *m.OK))
		}
		attrs = appendNonEmpty(attrs, "gateway_error", m.Error)
		if m.RoundTrip != nil {
			attrs = append(attrs, slog.Duration("round_trip", *m.RoundTrip))
		}

	case event.StateChange != nil:
		sc := event.StateChange
		attrs = append(attrs,
			slog.String("entity", sc.Entity.String()),
			slog.String("old_state", sc.OldState),
			slog.String("new_state", sc.NewState))
		attrs = appendNonEmpty(attrs, "reason", sc.Reason)

	case event.ControlMsg != nil:
		attrs = append(attrs,
			slog.String("ctrl_type", event.ControlMsg.Type.String()),
			slog.Uint64("seq", uint64(event.ControlMsg.Sequence)))

	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message))
		attrs = appendNonEmpty(attrs, "error_context", event.Error.Context)

	case event.DPUpdate != nil:
		u := event.DPUpdate
		attrs = append(attrs, slog.Any("dps", u.DPS), slog.Bool("refresh", u.Refresh))
		if u.First {
			attrs = append(attrs, slog.Bool("first", true))
		}
	}
	return attrs
}

var _ Logger = (*SlogAdapter)(nil)
