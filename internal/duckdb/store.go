package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/tinytelemetry/chanlog/internal/duckdb/migrate"
	"github.com/tinytelemetry/chanlog/internal/model"
)

// StoreConfig holds optional store settings.
type StoreConfig struct {
	// QueryTimeout bounds every statement. Defaults to 30s.
	QueryTimeout time.Duration
	// Location is the repository timezone used for created_at and for
	// interpreting date filters. Defaults to UTC.
	Location *time.Location
}

// Store manages the DuckDB database connection and implements the record
// repository.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	schemaMu     sync.Mutex
	dbPath       string
	loc          *time.Location
	QueryTimeout time.Duration
}

var _ model.Repository = (*Store)(nil)

// NewStore opens or creates a DuckDB database.
// If dbPath is empty, an in-memory database is used. The schema is not
// touched; call EnsureSchema before writing.
func NewStore(dbPath string, conf ...StoreConfig) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:           db,
		dbPath:       dbPath,
		loc:          time.UTC,
		QueryTimeout: model.DefaultQueryTimeout,
	}
	if len(conf) > 0 {
		if conf[0].QueryTimeout > 0 {
			s.QueryTimeout = conf[0].QueryTimeout
		}
		if conf[0].Location != nil {
			s.loc = conf[0].Location
		}
	}
	return s, nil
}

// EnsureSchema brings the log table up to the latest schema version. When
// the store is already current this costs a single version read.
func (s *Store) EnsureSchema(ctx context.Context) error {
	latest, err := migrate.Latest()
	if err != nil {
		return err
	}
	return s.EnsureSchemaVersion(ctx, latest)
}

// EnsureSchemaVersion applies migrations up to target.
func (s *Store) EnsureSchemaVersion(ctx context.Context, target int) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	runner := migrate.NewRunner(s.db)
	current, err := runner.AppliedVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if current >= target {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := runner.RunTo(ctx, target); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// SchemaStatus reports the installed schema version and pending migrations.
func (s *Store) SchemaStatus(ctx context.Context) (current int, pending int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return migrate.NewRunner(s.db).Status(ctx)
}

// Location returns the repository timezone.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Path returns the database file path, or "" for in-memory stores.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct query access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// queryCtx derives a context bounded by the store's query timeout.
func (s *Store) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.QueryTimeout)
}

// wallClock converts t into the repository timezone and relabels the wall
// clock reading as UTC, which is how naive TIMESTAMP columns are bound.
func (s *Store) wallClock(t time.Time) time.Time {
	l := t.In(s.loc).Truncate(time.Millisecond)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
}
