package channel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/tinytelemetry/chanlog/internal/hostctx"
	"github.com/tinytelemetry/chanlog/internal/model"
	"github.com/tinytelemetry/chanlog/internal/processor"
	"github.com/tinytelemetry/chanlog/internal/sink"
)

// Factory builds the logger for a channel.
type Factory func(ctx context.Context, channel string) (*Logger, error)

// InitHook runs once for every newly built logger, before it is returned
// to any caller.
type InitHook func(l *Logger)

// Registry lazily builds exactly one Logger per channel and caches it for
// the registry's lifetime.
type Registry struct {
	factory Factory

	mu      sync.Mutex
	loggers map[string]*Logger
	hooks   []InitHook
}

// NewRegistry returns an empty registry using factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		loggers: make(map[string]*Logger),
	}
}

// OnInit registers a hook for loggers built after this call.
func (r *Registry) OnInit(h InitHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Get returns the logger for channel, building it on first use. A failed
// build is not cached, so the next call retries.
func (r *Registry) Get(ctx context.Context, channel string) (*Logger, error) {
	if channel == "" {
		return nil, fmt.Errorf("channel name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.loggers[channel]; ok {
		return l, nil
	}

	l, err := r.factory(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("building logger %q: %w", channel, err)
	}
	for _, h := range r.hooks {
		h(l)
	}
	r.loggers[channel] = l
	return l, nil
}

// Channels returns the names of every logger built so far, sorted.
func (r *Registry) Channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.loggers))
	for name := range r.loggers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SetChannelLevel changes the threshold of the channel's database sinks,
// building the logger if needed.
func (r *Registry) SetChannelLevel(ctx context.Context, channel string, level model.Level) error {
	l, err := r.Get(ctx, channel)
	if err != nil {
		return err
	}
	for _, s := range l.Sinks() {
		if db, ok := s.(*sink.DatabaseSink); ok {
			db.SetLevel(level)
		}
	}
	return nil
}

// FactoryConfig describes the standard pipeline: interpolation, host
// enrichment, a database sink and an optional console sink.
type FactoryConfig struct {
	Store         sink.SchemaWriter
	DatabaseLevel model.Level
	Interpolate   bool
	Host          hostctx.Provider

	// Console enables the console sink when both writers are set.
	ConsoleOut   io.Writer
	ConsoleErr   io.Writer
	ConsoleLevel model.Level
	Formatter    sink.LineFormatter

	Diagnostics *slog.Logger
}

// NewFactory returns a Factory wiring the standard pipeline.
func NewFactory(cfg FactoryConfig) Factory {
	if cfg.DatabaseLevel == 0 {
		cfg.DatabaseLevel = model.DefaultDatabaseLevel
	}
	if cfg.ConsoleLevel == 0 {
		cfg.ConsoleLevel = model.DefaultConsoleLevel
	}

	return func(ctx context.Context, channel string) (*Logger, error) {
		var chain processor.Chain
		if cfg.Interpolate {
			chain = append(chain, processor.Interpolator{})
		}
		chain = append(chain, processor.NewHostEnricher(cfg.Host))

		var sinks []sink.Sink
		if cfg.Store != nil {
			db, err := sink.NewDatabaseSink(ctx, cfg.Store, cfg.DatabaseLevel)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, db)
		}
		if cfg.ConsoleOut != nil && cfg.ConsoleErr != nil {
			sinks = append(sinks, sink.NewConsoleSink(cfg.ConsoleOut, cfg.ConsoleErr, cfg.ConsoleLevel, cfg.Formatter))
		}

		return New(channel, chain, sinks, cfg.Diagnostics), nil
	}
}
