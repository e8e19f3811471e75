// Package backup keeps rotating local snapshots of the record database.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultInterval = 6 * time.Hour
	defaultKeepLast = 24

	filePrefix = "chanlog-"
	fileSuffix = ".duckdb"
)

// Config controls periodic snapshots.
type Config struct {
	Interval time.Duration
	Dir      string
	KeepLast int
	Logger   *slog.Logger
}

// Snapshotter is the store contract the manager needs.
type Snapshotter interface {
	Path() string
	Snapshot(ctx context.Context, dstPath string) error
}

// Manager writes a snapshot on start and then every Interval, pruning all
// but the newest KeepLast files.
type Manager struct {
	store  Snapshotter
	cfg    Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New validates cfg and returns a manager that is not yet running.
func New(store Snapshotter, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("backup: nil snapshotter")
	}
	if strings.TrimSpace(store.Path()) == "" {
		return nil, errors.New("backup: db-path is empty (in-memory store)")
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("backup: backup-dir is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.KeepLast <= 0 {
		cfg.KeepLast = defaultKeepLast
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create backup-dir: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{store: store, cfg: cfg, logger: logger, ctx: ctx, cancel: cancel}, nil
}

// Start takes a snapshot now and schedules the rest.
func (m *Manager) Start() {
	if _, err := m.RunOnce(m.ctx); err != nil {
		m.logger.Error("startup snapshot failed", "error", err)
	}
	m.wg.Add(1)
	go m.loop()
}

func (m *Manager) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.RunOnce(m.ctx); err != nil && m.ctx.Err() == nil {
				m.logger.Error("periodic snapshot failed", "error", err)
			}
		case <-m.ctx.Done():
			return
		}
	}
}

// RunOnce writes one snapshot and prunes old ones. It returns the new
// file's path.
func (m *Manager) RunOnce(ctx context.Context) (string, error) {
	name := filePrefix + time.Now().UTC().Format("20060102-150405.000000000") + fileSuffix
	path := filepath.Join(m.cfg.Dir, name)

	if err := m.store.Snapshot(ctx, path); err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	m.logger.Info("snapshot created", "path", path)

	if err := prune(m.cfg.Dir, m.cfg.KeepLast); err != nil {
		return path, fmt.Errorf("prune snapshots: %w", err)
	}
	return path, nil
}

// Stop cancels any in-flight snapshot and waits for the loop to exit.
func (m *Manager) Stop() {
	m.once.Do(func() {
		m.cancel()
		m.wg.Wait()
	})
}

func prune(dir string, keepLast int) error {
	matches, err := filepath.Glob(filepath.Join(dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return err
	}
	if len(matches) <= keepLast {
		return nil
	}

	// Names embed a fixed-width UTC timestamp, so lexical order is
	// chronological.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))

	for _, old := range matches[keepLast:] {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
