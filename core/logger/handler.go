package logger

import (
	"context"
	"io"
	"log/slog"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"
)

// contextHandler decorates a stdlib handler with the correlation fields stored
// in the context (rid, update/user/chat ids, handler).
type contextHandler struct {
	next   slog.Handler
	format logFormat
}

func newContextHandler(w io.Writer, format logFormat, level slog.Leveler) *contextHandler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Value = slog.StringValue(a.Value.Time().UTC().Format("2006-01-02T15:04:05.000Z07:00"))
				a.Key = "ts"
			case slog.MessageKey:
				if a.Value.String() == "" {
					return slog.Attr{}
				}
			}
			if a.Value.Kind() == slog.KindDuration {
				a.Value = slog.Int64Value(RoundMS(a.Value.Duration()).Milliseconds())
				a.Key += "_ms"
			}
			return a
		},
	}
	var next slog.Handler
	if format == formatKV {
		next = slog.NewTextHandler(w, opts)
	} else {
		next = slog.NewJSONHandler(w, opts)
	}
	return &contextHandler{next: next, format: format}
}

// Enabled reports whether the wrapped handler accepts level.
func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle appends context fields and forwards the record.
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if rid := RIDFrom(ctx); rid != "" {
		compact := CompactRID(rid)
		r.AddAttrs(slog.String("rid", compact))
		if h.format == formatJSON && compact != rid {
			r.AddAttrs(slog.String("rid_full", rid))
		}
	}
	if id := UpdateIDFrom(ctx); id != 0 {
		r.AddAttrs(slog.Int("update_id", id))
	}
	if id := UserIDFrom(ctx); id != 0 {
		r.AddAttrs(slog.Int64("user_id", id))
	}
	if id := ChatIDFrom(ctx); id != 0 {
		r.AddAttrs(slog.Int64("chat_id", id))
	}
	if name := HandlerFrom(ctx); name != "" {
		r.AddAttrs(slog.String("handler", name))
	}
	if h.format == formatJSON {
		r.AddAttrs(slog.Int64("ts_unix_nano", r.Time.UnixNano()))
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs returns a handler carrying attrs on every record.
func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs), format: h.format}
}

// WithGroup returns a handler nesting subsequent attrs under name.
func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), format: h.format}
}
