package sink

import (
	"context"
	"fmt"

	"github.com/tinytelemetry/chanlog/internal/model"
)

// SchemaWriter is the store contract the database sink needs.
type SchemaWriter interface {
	model.RecordWriter
	EnsureSchema(ctx context.Context) error
}

// DatabaseSink persists accepted records through the repository.
type DatabaseSink struct {
	threshold
	store SchemaWriter
}

var _ Leveled = (*DatabaseSink)(nil)

// NewDatabaseSink ensures the schema is current and returns a sink at
// level. Schema failures are returned and not retried.
func NewDatabaseSink(ctx context.Context, store SchemaWriter, level model.Level) (*DatabaseSink, error) {
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("database sink: %w", err)
	}
	s := &DatabaseSink{store: store}
	s.SetLevel(level)
	return s, nil
}

func (s *DatabaseSink) Handle(ctx context.Context, rec model.Record) error {
	if _, err := s.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("database sink: %w", err)
	}
	return nil
}
