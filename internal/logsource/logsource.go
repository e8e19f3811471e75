// Package logsource turns a byte stream into a channel of log lines.
package logsource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	// DefaultBuffer is the default channel buffer size.
	DefaultBuffer = 1024

	// DefaultMaxLineSize is the default maximum size (in bytes) of one line.
	DefaultMaxLineSize = 1024 * 1024 // 1MB
)

// ErrLineTooLong is reported by Err when a line exceeds MaxLineSize.
var ErrLineTooLong = errors.New("logsource: line exceeds max size")

// Config holds tunable parameters for a Source.
type Config struct {
	BufferSize  int
	MaxLineSize int
}

// Source reads non-empty lines from a reader in a background goroutine.
type Source struct {
	name   string
	ch     chan string
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// New starts reading r. Lines is closed at EOF, on a read error or after
// Stop.
func New(ctx context.Context, name string, r io.Reader, conf ...Config) *Source {
	bufferSize := DefaultBuffer
	maxLineSize := DefaultMaxLineSize
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Source{
		name:   name,
		ch:     make(chan string, bufferSize),
		cancel: cancel,
	}
	go s.read(ctx, r, maxLineSize)
	return s
}

func (s *Source) read(ctx context.Context, r io.Reader, maxLineSize int) {
	defer close(s.ch)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, maxLineSize)), maxLineSize)

	// The blocking scan runs in its own goroutine so cancellation is seen
	// without waiting for the next line.
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				err = fmt.Errorf("%w (%d bytes)", ErrLineTooLong, maxLineSize)
			}
			s.setErr(err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			select {
			case s.ch <- line:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Source) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Err returns the read error that ended the source, if any. It is only
// meaningful once Lines is closed.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Source) Lines() <-chan string { return s.ch }
func (s *Source) Stop()                { s.cancel() }
func (s *Source) Name() string         { return s.name }
