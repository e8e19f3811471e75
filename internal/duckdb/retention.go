package duckdb

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tinytelemetry/chanlog/internal/model"
	"github.com/tinytelemetry/chanlog/internal/timestamp"
)

// PurgeOptions selects the records removed by Purge.
type PurgeOptions struct {
	// MaxAgeDays keeps records newer than this many days. Defaults to 90.
	MaxAgeDays int
	DryRun     bool
	// SiteID restricts the purge to one site; nil purges every site.
	SiteID *int64
	// Now overrides the reference time. Zero means time.Now().
	Now time.Time
}

// PurgeResult reports what a purge matched and removed.
type PurgeResult struct {
	Before  string
	Matched int64
	Deleted int64
}

// PurgeQuery returns the unlimited query selecting records older than the
// configured age, as of the start of that day in the repository timezone.
func PurgeQuery(loc *time.Location, opts PurgeOptions) model.Query {
	days := opts.MaxAgeDays
	if days <= 0 {
		days = model.DefaultPurgeDays
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	before := timestamp.DaysAgo(now, days, loc)
	return model.Query{
		Before:  before.Format(time.DateTime),
		SiteID:  opts.SiteID,
		PerPage: 0,
		Paged:   1,
	}
}

// Purge deletes records older than opts.MaxAgeDays. A dry run only counts.
func Purge(ctx context.Context, repo interface {
	model.RecordReader
	model.RecordDeleter
}, loc *time.Location, opts PurgeOptions) (PurgeResult, error) {
	q := PurgeQuery(loc, opts)
	res := PurgeResult{Before: q.Before}

	matched, err := repo.Count(ctx, q)
	if err != nil {
		return res, err
	}
	res.Matched = matched
	if opts.DryRun || matched == 0 {
		return res, nil
	}

	deleted, err := repo.DeleteByQuery(ctx, q)
	if errors.Is(err, ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Deleted = deleted
	return res, nil
}

// RetentionConfig holds configuration for the retention cleaner.
type RetentionConfig struct {
	RetentionDays int
	Interval      time.Duration
	Logger        *slog.Logger
}

// RetentionCleaner periodically purges records older than the retention period.
type RetentionCleaner struct {
	store         *Store
	retentionDays int
	interval      time.Duration
	logger        *slog.Logger
	done          chan struct{}
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// NewRetentionCleaner creates a retention cleaner and runs one purge
// immediately. Returns nil when retention is 0 (disabled).
func NewRetentionCleaner(store *Store, conf ...RetentionConfig) *RetentionCleaner {
	days := model.DefaultPurgeDays
	interval := time.Hour
	logger := slog.Default()
	if len(conf) > 0 {
		days = conf[0].RetentionDays
		if conf[0].Interval > 0 {
			interval = conf[0].Interval
		}
		if conf[0].Logger != nil {
			logger = conf[0].Logger
		}
	}
	if days <= 0 {
		return nil
	}

	rc := &RetentionCleaner{
		store:         store,
		retentionDays: days,
		interval:      interval,
		logger:        logger,
		done:          make(chan struct{}),
	}

	// Startup cleanup to catch up after downtime.
	rc.cleanup()

	rc.wg.Add(1)
	go rc.tickLoop()

	return rc
}

func (rc *RetentionCleaner) tickLoop() {
	defer rc.wg.Done()
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanup()
		case <-rc.done:
			return
		}
	}
}

func (rc *RetentionCleaner) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), rc.store.QueryTimeout)
	defer cancel()

	res, err := Purge(ctx, rc.store, rc.store.Location(), PurgeOptions{MaxAgeDays: rc.retentionDays})
	if err != nil {
		rc.logger.Error("retention cleanup failed", "error", err)
		return
	}
	if res.Deleted > 0 {
		rc.logger.Info("retention cleanup deleted expired records",
			"deleted", res.Deleted, "before", res.Before, "retention_days", rc.retentionDays)
	}
}

// Stop signals the cleaner to stop and waits for it to finish.
func (rc *RetentionCleaner) Stop() {
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.wg.Wait()
	})
}
