package model

import "context"

// Query holds the filters, ordering and pagination of a record lookup.
// Zero values mean "no filter".
type Query struct {
	Channel   string
	Message   string // case-insensitive substring
	Level     Level
	LevelName string
	SiteID    *int64 // matched against extra.site_id
	After     string // inclusive, date/time expression
	Before    string // inclusive, date/time expression
	OrderBy   string
	Order     string
	PerPage   int // <= 0 returns every match
	Paged     int // 1-based
}

// DefaultPerPage is the page size used by listing surfaces.
const DefaultPerPage = 10

// Unlimited returns a copy of q without pagination.
func (q Query) Unlimited() Query {
	q.PerPage = 0
	q.Paged = 1
	return q
}

// RecordWriter persists records.
type RecordWriter interface {
	Save(ctx context.Context, rec Record) (uint64, error)
}

// RecordReader provides the read side of the repository.
type RecordReader interface {
	FindByQuery(ctx context.Context, q Query) ([]Record, error)
	Count(ctx context.Context, q Query) (int64, error)
	FindChannels(ctx context.Context, q Query) ([]ChannelSummary, error)
	Get(ctx context.Context, id uint64) (Record, error)
}

// RecordDeleter removes records matching a query.
type RecordDeleter interface {
	DeleteByQuery(ctx context.Context, q Query) (int64, error)
}

// Repository is the full persistence contract.
type Repository interface {
	RecordWriter
	RecordReader
	RecordDeleter
}
