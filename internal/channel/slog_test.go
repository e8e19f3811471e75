package channel

import (
	"log/slog"
	"testing"

	"github.com/tinytelemetry/chanlog/internal/model"
	"github.com/tinytelemetry/chanlog/internal/sink"
)

func TestSlogHandler(t *testing.T) {
	s := &recordingSink{min: model.LevelInfo}
	l := New("app", nil, []sink.Sink{s}, nil)

	logger := slog.New(l.Handler()).With("service", "api").WithGroup("req")
	logger.Debug("dropped")
	logger.Warn("slow request", "ms", 1200, slog.Group("user", "id", 7))

	recs := s.records()
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Level != model.LevelWarning || rec.Message != "slow request" || rec.Channel != "app" {
		t.Errorf("record = %+v", rec)
	}

	want := map[string]any{
		"service":     "api",
		"req.ms":      int64(1200),
		"req.user.id": int64(7),
	}
	for k, v := range want {
		if rec.Context[k] != v {
			t.Errorf("context[%s] = %#v, want %#v", k, rec.Context[k], v)
		}
	}
}

func TestFromSlogLevel(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want model.Level
	}{
		{slog.LevelDebug, model.LevelDebug},
		{slog.LevelInfo, model.LevelInfo},
		{slog.LevelWarn, model.LevelWarning},
		{slog.LevelError, model.LevelError},
		{slog.LevelError + 4, model.LevelCritical},
	}
	for _, tt := range tests {
		if got := fromSlogLevel(tt.in); got != tt.want {
			t.Errorf("fromSlogLevel(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
