// Package sink contains the destinations a logger dispatches records to.
package sink

import (
	"context"
	"sync/atomic"

	"github.com/tinytelemetry/chanlog/internal/model"
)

// Sink receives enriched records. Accepts gates on the sink's own minimum
// level; Handle is only called for accepted records.
type Sink interface {
	Accepts(level model.Level) bool
	Handle(ctx context.Context, rec model.Record) error
}

// Leveled is a sink whose threshold can change at runtime.
type Leveled interface {
	Sink
	Level() model.Level
	SetLevel(level model.Level)
}

// threshold is an atomically adjustable minimum level.
type threshold struct {
	v atomic.Uint32
}

func (t *threshold) Level() model.Level         { return model.Level(t.v.Load()) }
func (t *threshold) SetLevel(level model.Level) { t.v.Store(uint32(level)) }
func (t *threshold) Accepts(level model.Level) bool {
	return level >= t.Level()
}
