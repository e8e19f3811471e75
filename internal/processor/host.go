package processor

import (
	"context"
	"maps"

	"github.com/tinytelemetry/chanlog/internal/hostctx"
	"github.com/tinytelemetry/chanlog/internal/model"
)

// HostEnricher merges host-derived fields into extra. Host keys are
// refreshed on every call; any other key already in extra is preserved.
type HostEnricher struct {
	Provider hostctx.Provider
}

// NewHostEnricher returns an enricher over p. A nil provider records every
// host key as null.
func NewHostEnricher(p hostctx.Provider) *HostEnricher {
	if p == nil {
		p = hostctx.Nop{}
	}
	return &HostEnricher{Provider: p}
}

func (e *HostEnricher) Process(ctx context.Context, rec model.Record) model.Record {
	provider := e.Provider
	if provider == nil {
		provider = hostctx.Nop{}
	}

	extra := make(map[string]any, len(rec.Extra)+len(hostctx.Keys))
	maps.Copy(extra, rec.Extra)
	maps.Copy(extra, provider.HostContext(ctx).Fields())
	rec.Extra = extra
	return rec
}
