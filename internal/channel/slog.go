package channel

import (
	"context"
	"log/slog"

	"github.com/tinytelemetry/chanlog/internal/model"
)

// Handler returns a slog.Handler that routes slog records through l.
// Attributes become context entries; groups prefix their keys with
// "group.".
func (l *Logger) Handler() slog.Handler {
	return &slogHandler{logger: l}
}

type slogHandler struct {
	logger *Logger
	attrs  []slog.Attr
	prefix string
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.Enabled(fromSlogLevel(level))
}

func (h *slogHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		addAttr(fields, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(fields, h.prefix, a)
		return true
	})
	h.logger.Log(ctx, fromSlogLevel(r.Level), r.Message, fields)
	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func addAttr(fields map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			addAttr(fields, p, ga)
		}
		return
	}
	fields[prefix+a.Key] = a.Value.Any()
}

func fromSlogLevel(level slog.Level) model.Level {
	switch {
	case level < slog.LevelInfo:
		return model.LevelDebug
	case level < slog.LevelWarn:
		return model.LevelInfo
	case level < slog.LevelError:
		return model.LevelWarning
	case level == slog.LevelError:
		return model.LevelError
	default:
		return model.LevelCritical
	}
}
