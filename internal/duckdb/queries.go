package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tinytelemetry/chanlog/internal/model"
	"github.com/tinytelemetry/chanlog/internal/timestamp"
)

var (
	// ErrNotFound is returned when a lookup or delete matches no records.
	ErrNotFound = errors.New("duckdb: no matching records")
	// ErrInvalidFilter is returned when a date filter cannot be parsed.
	ErrInvalidFilter = errors.New("duckdb: invalid filter")
	// ErrLevelOutOfRange is returned by Save for levels that do not fit the
	// unsigned 32-bit level column.
	ErrLevelOutOfRange = errors.New("duckdb: level out of range")
)

const recordColumns = `id, channel, message, level, level_name,
	CAST(context AS VARCHAR), CAST(extra AS VARCHAR), created_at_gmt`

// orderColumns is the allow-list of sortable columns.
var orderColumns = map[string]bool{
	"id":             true,
	"channel":        true,
	"message":        true,
	"level":          true,
	"level_name":     true,
	"created_at":     true,
	"created_at_gmt": true,
}

// deleteChunk caps the number of ids bound into one DELETE statement.
const deleteChunk = 1000

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Save inserts one record and returns its assigned id. Only the known
// columns are written; context and extra are stored as JSON text.
func (s *Store) Save(ctx context.Context, rec model.Record) (uint64, error) {
	if uint64(rec.Level) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d", ErrLevelOutOfRange, uint64(rec.Level))
	}
	contextJSON, err := encodeJSON(rec.Context)
	if err != nil {
		return 0, fmt.Errorf("context: %w", err)
	}
	extraJSON, err := encodeJSON(rec.Extra)
	if err != nil {
		return 0, fmt.Errorf("extra: %w", err)
	}

	at := rec.Time
	if at.IsZero() {
		at = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var id int64
	err = s.db.QueryRowContext(qctx, `
		INSERT INTO log_records (channel, message, level, level_name, context, extra, created_at, created_at_gmt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		sanitize(rec.Channel),
		sanitize(rec.Message),
		int64(rec.Level),
		rec.LevelName(),
		contextJSON,
		extraJSON,
		s.wallClock(at),
		at.UTC().Truncate(time.Millisecond),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting record: %w", err)
	}
	return uint64(id), nil
}

// whereClause builds the filter for q. Every value is bound; only fixed
// fragments are written into the statement text.
func (s *Store) whereClause(q model.Query) (string, []any, error) {
	var conds []string
	var args []any

	if q.Channel != "" {
		conds = append(conds, "channel = ?")
		args = append(args, q.Channel)
	}
	if q.Message != "" {
		conds = append(conds, `message ILIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(q.Message)+"%")
	}
	if q.Level != 0 {
		conds = append(conds, "level = ?")
		args = append(args, int64(q.Level))
	}
	if q.LevelName != "" {
		conds = append(conds, "level_name = ?")
		args = append(args, q.LevelName)
	}
	if q.SiteID != nil {
		conds = append(conds, "json_extract_string(extra, '$.site_id') = ?")
		args = append(args, strconv.FormatInt(*q.SiteID, 10))
	}
	if q.After != "" {
		t, err := s.parseBound(q.After, false)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, "created_at >= ?")
		args = append(args, t)
	}
	if q.Before != "" {
		t, err := s.parseBound(q.Before, true)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, "created_at <= ?")
		args = append(args, t)
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args, nil
}

// parseBound resolves a date filter in the repository timezone. An upper
// bound given as a bare date covers that whole day.
func (s *Store) parseBound(expr string, upper bool) (time.Time, error) {
	t, err := timestamp.ParseExpression(expr, time.Now(), s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if upper && timestamp.IsDateOnly(expr) {
		t = t.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	return s.wallClock(t), nil
}

func orderClause(q model.Query) string {
	col := strings.ToLower(strings.TrimSpace(q.OrderBy))
	if !orderColumns[col] {
		col = "id"
	}
	dir := strings.ToUpper(strings.TrimSpace(q.Order))
	if dir != "ASC" && dir != "DESC" {
		dir = "DESC"
	}
	if col == "id" {
		return fmt.Sprintf("ORDER BY id %s", dir)
	}
	return fmt.Sprintf("ORDER BY %s %s, id %s", col, dir, dir)
}

// FindByQuery returns the records matching q, ordered and paginated.
// PerPage <= 0 returns every match.
func (s *Store) FindByQuery(ctx context.Context, q model.Query) ([]model.Record, error) {
	where, args, err := s.whereClause(q)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM log_records %s %s", recordColumns, where, orderClause(q))
	if q.PerPage > 0 {
		paged := q.Paged
		if paged < 1 {
			paged = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.PerPage, (paged-1)*q.PerPage)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(qctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of records matching q, ignoring pagination.
func (s *Store) Count(ctx context.Context, q model.Query) (int64, error) {
	where, args, err := s.whereClause(q)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var count int64
	if err := s.db.QueryRowContext(qctx, "SELECT COUNT(*) FROM log_records "+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return count, nil
}

// FindChannels groups matching records by channel, most recently active first.
func (s *Store) FindChannels(ctx context.Context, q model.Query) ([]model.ChannelSummary, error) {
	where, args, err := s.whereClause(q)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT channel, COUNT(*) AS count, MAX(created_at_gmt) AS last_record
		FROM log_records %s
		GROUP BY channel
		ORDER BY MAX(created_at_gmt) DESC, channel ASC`, where)

	s.mu.RLock()
	defer s.mu.RUnlock()

	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(qctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying channels: %w", err)
	}
	defer rows.Close()

	channels := []model.ChannelSummary{}
	for rows.Next() {
		var cs model.ChannelSummary
		var last time.Time
		if err := rows.Scan(&cs.Channel, &cs.Count, &last); err != nil {
			return nil, fmt.Errorf("scanning channel: %w", err)
		}
		cs.LastRecord = last.UTC().In(s.loc)
		channels = append(channels, cs)
	}
	return channels, rows.Err()
}

// Get returns the record with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id uint64) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	row := s.db.QueryRowContext(qctx, "SELECT "+recordColumns+" FROM log_records WHERE id = ?", int64(id))
	rec, err := s.scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, ErrNotFound
	}
	if err != nil {
		return model.Record{}, fmt.Errorf("reading record %d: %w", id, err)
	}
	return rec, nil
}

// DeleteByQuery resolves q to a concrete id set through FindByQuery and
// deletes exactly those ids. Pagination in q is honored, so callers pass an
// unlimited query to delete every match. Returns ErrNotFound when nothing
// matched.
func (s *Store) DeleteByQuery(ctx context.Context, q model.Query) (int64, error) {
	matched, err := s.FindByQuery(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, ErrNotFound
	}

	ids := make([]any, len(matched))
	for i, rec := range matched {
		ids[i] = int64(rec.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(qctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete: %w", err)
	}

	var deleted int64
	for start := 0; start < len(ids); start += deleteChunk {
		end := min(start+deleteChunk, len(ids))
		chunk := ids[start:end]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		res, err := tx.ExecContext(qctx, "DELETE FROM log_records WHERE id IN ("+placeholders+")", chunk...)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("deleting records: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("deleting records: %w", err)
		}
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRecord(row rowScanner) (model.Record, error) {
	var (
		rec          model.Record
		id, level    int64
		levelName    string
		contextJSON  sql.NullString
		extraJSON    sql.NullString
		createdAtGMT time.Time
	)
	if err := row.Scan(&id, &rec.Channel, &rec.Message, &level, &levelName,
		&contextJSON, &extraJSON, &createdAtGMT); err != nil {
		return model.Record{}, err
	}

	rec.ID = uint64(id)
	rec.Level = model.Level(level)
	if contextJSON.Valid {
		rec.Context = decodeJSON(&contextJSON.String)
	}
	if extraJSON.Valid {
		rec.Extra = decodeJSON(&extraJSON.String)
	}
	// created_at is derived from the UTC column; its wall clock is
	// ambiguous in a DST fall-back hour.
	rec.CreatedAtGMT = createdAtGMT.UTC()
	rec.CreatedAt = rec.CreatedAtGMT.In(s.loc)
	rec.Time = rec.CreatedAtGMT
	return rec, nil
}
