// Package channel provides per-channel loggers and the registry that
// builds them.
package channel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tinytelemetry/chanlog/internal/model"
	"github.com/tinytelemetry/chanlog/internal/processor"
	"github.com/tinytelemetry/chanlog/internal/sink"
)

// Logger is a named set of sinks behind a processor chain.
type Logger struct {
	channel string
	diag    *slog.Logger

	mu         sync.RWMutex
	processors processor.Chain
	sinks      []sink.Sink
}

// New builds a logger for channel. Sink failures are reported to diag,
// never to the caller; a nil diag uses slog.Default().
func New(channel string, processors processor.Chain, sinks []sink.Sink, diag *slog.Logger) *Logger {
	if diag == nil {
		diag = slog.Default()
	}
	return &Logger{
		channel:    channel,
		diag:       diag,
		processors: processors,
		sinks:      sinks,
	}
}

// Channel returns the logger's channel name.
func (l *Logger) Channel() string { return l.channel }

// Sinks returns a snapshot of the attached sinks.
func (l *Logger) Sinks() []sink.Sink {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]sink.Sink(nil), l.sinks...)
}

// AddSink appends a sink.
func (l *Logger) AddSink(s sink.Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
}

// AddProcessor appends a step to the processor chain.
func (l *Logger) AddProcessor(p processor.Processor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processors = append(l.processors, p)
}

// Enabled reports whether any sink would accept level.
func (l *Logger) Enabled(level model.Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.sinks {
		if s.Accepts(level) {
			return true
		}
	}
	return false
}

// Log builds a record, runs the processor chain and hands the result to
// every sink whose threshold is met.
func (l *Logger) Log(ctx context.Context, level model.Level, msg string, fields map[string]any) {
	l.mu.RLock()
	chain := l.processors
	sinks := l.sinks
	l.mu.RUnlock()

	accepting := make([]sink.Sink, 0, len(sinks))
	for _, s := range sinks {
		if s.Accepts(level) {
			accepting = append(accepting, s)
		}
	}
	if len(accepting) == 0 {
		return
	}

	rec := chain.Process(ctx, model.NewRecord(l.channel, level, msg, fields))
	for _, s := range accepting {
		if err := s.Handle(ctx, rec); err != nil {
			l.diag.Error("sink failed", "channel", l.channel, "level", rec.LevelName(), "error", err)
		}
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields map[string]any) {
	l.Log(ctx, model.LevelDebug, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields map[string]any) {
	l.Log(ctx, model.LevelInfo, msg, fields)
}

func (l *Logger) Notice(ctx context.Context, msg string, fields map[string]any) {
	l.Log(ctx, model.LevelNotice, msg, fields)
}

func (l *Logger) Warning(ctx context.Context, msg string, fields map[string]any) {
	l.Log(ctx, model.LevelWarning, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields map[string]any) {
	l.Log(ctx, model.LevelError, msg, fields)
}

func (l *Logger) Critical(ctx context.Context, msg string, fields map[string]any) {
	l.Log(ctx, model.LevelCritical, msg, fields)
}

func (l *Logger) Alert(ctx context.Context, msg string, fields map[string]any) {
	l.Log(ctx, model.LevelAlert, msg, fields)
}

func (l *Logger) Emergency(ctx context.Context, msg string, fields map[string]any) {
	l.Log(ctx, model.LevelEmergency, msg, fields)
}
