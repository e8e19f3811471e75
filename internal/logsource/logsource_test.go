package logsource

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func collect(t *testing.T, s *Source) []string {
	t.Helper()
	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-s.Lines():
			if !ok {
				return got
			}
			got = append(got, line)
		case <-timeout:
			t.Fatal("timed out waiting for lines")
		}
	}
}

func TestSourceReadsLines(t *testing.T) {
	src := New(context.Background(), "stdin", strings.NewReader("first\n\nsecond\r\nthird"))
	got := collect(t, src)

	want := []string{"first", "second", "third"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", got, want)
	}
	if src.Err() != nil {
		t.Errorf("Err = %v", src.Err())
	}
	if src.Name() != "stdin" {
		t.Errorf("Name = %q", src.Name())
	}
}

func TestSourceLineTooLong(t *testing.T) {
	src := New(context.Background(), "stdin", strings.NewReader("ok\n"+strings.Repeat("x", 64)+"\n"), Config{MaxLineSize: 16})
	got := collect(t, src)

	if len(got) != 1 || got[0] != "ok" {
		t.Errorf("lines = %q", got)
	}
	if !errors.Is(src.Err(), ErrLineTooLong) {
		t.Errorf("Err = %v, want ErrLineTooLong", src.Err())
	}
}

func TestSourceStopClosesLines(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer func() { _ = w.Close() }()

	src := New(context.Background(), "pipe", r)
	src.Stop()
	src.Stop()

	select {
	case _, ok := <-src.Lines():
		if ok {
			t.Fatal("expected lines channel to be closed after Stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lines channel to close")
	}
}
