package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelNotice, "NOTICE"},
		{LevelWarning, "WARNING"},
		{LevelError, "ERROR"},
		{LevelCritical, "CRITICAL"},
		{LevelAlert, "ALERT"},
		{LevelEmergency, "EMERGENCY"},
		{0, "DEBUG"},
		{99, "DEBUG"},
		{299, "NOTICE"},
		{450, "ERROR"},
		{9000, "EMERGENCY"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
			}
		})
	}
}

func TestLevelsAscending(t *testing.T) {
	levels := Levels()
	if len(levels) != 8 {
		t.Fatalf("Levels() returned %d levels, want 8", len(levels))
	}
	for i := 1; i < len(levels); i++ {
		if levels[i-1] >= levels[i] {
			t.Errorf("Levels() not ascending at %d: %d >= %d", i, levels[i-1], levels[i])
		}
	}
}

func TestRecordLevelNameDerived(t *testing.T) {
	rec := NewRecord("auth", LevelWarning, "hi", nil)
	if rec.LevelName() != "WARNING" {
		t.Errorf("LevelName() = %q, want WARNING", rec.LevelName())
	}
	rec.Level = LevelError
	if rec.LevelName() != "ERROR" {
		t.Errorf("LevelName() after level change = %q, want ERROR", rec.LevelName())
	}
}

func TestRecordMarshalJSON(t *testing.T) {
	local := time.FixedZone("X", 2*3600)
	created := time.Date(2024, 3, 1, 10, 0, 0, 123e6, local)
	rec := Record{
		ID:           7,
		Channel:      "cron",
		Message:      "ran",
		Level:        LevelInfo,
		Context:      map[string]any{"job": "sync"},
		CreatedAt:    created,
		CreatedAtGMT: created.UTC(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["level_name"] != "INFO" {
		t.Errorf("level_name = %v, want INFO", got["level_name"])
	}
	if got["created_at"] != "2024-03-01T10:00:00.123+02:00" {
		t.Errorf("created_at = %v", got["created_at"])
	}
	if got["created_at_gmt"] != "2024-03-01T08:00:00.123Z" {
		t.Errorf("created_at_gmt = %v", got["created_at_gmt"])
	}
}

func TestCodedError(t *testing.T) {
	err := NewCodedError("db_down", "database unreachable", map[string]any{"host": "db1"})
	err.Add("retry_exhausted", "gave up", nil)

	if !strings.Contains(err.Error(), "database unreachable") {
		t.Errorf("Error() = %q", err.Error())
	}
	if len(err.ErrorCodes()) != 2 || err.ErrorCodes()[1] != "retry_exhausted" {
		t.Errorf("ErrorCodes() = %v", err.ErrorCodes())
	}
	if _, ok := err.ErrorData()["db_down"]; !ok {
		t.Errorf("ErrorData() missing db_down: %v", err.ErrorData())
	}
	if _, ok := err.ErrorData()["retry_exhausted"]; ok {
		t.Errorf("ErrorData() should not hold nil data")
	}
}
