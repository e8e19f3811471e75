package duckdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrInMemoryStore is returned when snapshotting a store with no file.
var ErrInMemoryStore = errors.New("duckdb: in-memory store cannot be snapshotted")

// Snapshot checkpoints the database and copies its file to dstPath. The
// copy happens outside the store lock; writes that land after the
// checkpoint may be missing from the copy.
func (s *Store) Snapshot(ctx context.Context, dstPath string) error {
	if s.dbPath == "" {
		return ErrInMemoryStore
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	s.mu.Lock()
	qctx, cancel := s.queryCtx(ctx)
	_, err := s.db.ExecContext(qctx, "CHECKPOINT")
	cancel()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}

	if err := copyFile(s.dbPath, dstPath); err != nil {
		return fmt.Errorf("copy database file: %w", err)
	}
	return nil
}

// copyFile writes through a temp file and renames, so dstPath is either
// absent or complete.
func copyFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp := dstPath + ".tmp"
	dst, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dstPath)
}
