// Package processor holds the enrichment steps applied to every record
// before it reaches a sink.
package processor

import (
	"context"

	"github.com/tinytelemetry/chanlog/internal/model"
)

// Processor enriches a record. Implementations must not fail on missing
// optional host data; they record null instead.
type Processor interface {
	Process(ctx context.Context, rec model.Record) model.Record
}

// Func adapts a function to Processor.
type Func func(ctx context.Context, rec model.Record) model.Record

func (f Func) Process(ctx context.Context, rec model.Record) model.Record { return f(ctx, rec) }

// Chain runs processors in order. ID, channel, level and time are fixed
// when the record is created and are restored after every step; steps may
// rewrite the message, context and extra.
type Chain []Processor

// Process applies every step of the chain.
func (c Chain) Process(ctx context.Context, rec model.Record) model.Record {
	for _, p := range c {
		if p == nil {
			continue
		}
		out := p.Process(ctx, rec)
		out.ID = rec.ID
		out.Channel = rec.Channel
		out.Level = rec.Level
		out.Time = rec.Time
		rec = out
	}
	return rec
}
