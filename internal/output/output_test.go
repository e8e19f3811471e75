package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/chanlog/internal/model"
)

func testRecords() []model.Record {
	at := time.Date(2024, 2, 3, 4, 5, 6, 789e6, time.UTC)
	return []model.Record{
		{ID: 2, Channel: "auth", Level: model.LevelWarning, Message: "user 42 login", Context: map[string]any{"id": 42}, CreatedAt: at, CreatedAtGMT: at},
		{ID: 1, Channel: "cron", Level: model.LevelInfo, Message: "tick, tock", CreatedAt: at, CreatedAtGMT: at},
	}
}

func TestRecordRowsDefaultFields(t *testing.T) {
	rows, err := RecordRows(testRecords(), nil)
	if err != nil {
		t.Fatalf("RecordRows: %v", err)
	}
	if strings.Join(rows.Fields, ",") != "id,channel,level_name,message,created_at" {
		t.Errorf("Fields = %v", rows.Fields)
	}
	if _, ok := rows.Values[0]["context"]; ok {
		t.Error("default rows should not carry context")
	}
}

func TestRecordRowsUnknownField(t *testing.T) {
	if _, err := RecordRows(testRecords(), []string{"id", "password"}); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestRenderFormats(t *testing.T) {
	rows, err := RecordRows(testRecords(), []string{"id", "channel", "message", "context", "created_at"})
	if err != nil {
		t.Fatalf("RecordRows: %v", err)
	}

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Render(&buf, FormatCSV, rows); err != nil {
			t.Fatalf("Render: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("csv lines = %d, want 3: %q", len(lines), buf.String())
		}
		if lines[0] != "id,channel,message,context,created_at" {
			t.Errorf("header = %q", lines[0])
		}
		if lines[1] != `2,auth,user 42 login,"{""id"":42}",2024-02-03 04:05:06.789` {
			t.Errorf("row 1 = %q", lines[1])
		}
		if lines[2] != `1,cron,"tick, tock",,2024-02-03 04:05:06.789` {
			t.Errorf("row 2 = %q", lines[2])
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Render(&buf, FormatJSON, rows); err != nil {
			t.Fatalf("Render: %v", err)
		}
		var got []map[string]any
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if len(got) != 2 || got[0]["channel"] != "auth" || got[0]["created_at"] != "2024-02-03 04:05:06.789" {
			t.Errorf("json = %v", got)
		}
	})

	t.Run("yaml keeps column order", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Render(&buf, FormatYAML, rows); err != nil {
			t.Fatalf("Render: %v", err)
		}
		var got []map[string]any
		if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("yaml.Unmarshal: %v", err)
		}
		if len(got) != 2 || got[1]["message"] != "tick, tock" {
			t.Errorf("yaml = %v", got)
		}
		first := strings.Index(buf.String(), "id:")
		second := strings.Index(buf.String(), "channel:")
		if first < 0 || second < 0 || first > second {
			t.Errorf("column order lost:\n%s", buf.String())
		}
	})

	t.Run("ids", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Render(&buf, FormatIDs, rows); err != nil {
			t.Fatalf("Render: %v", err)
		}
		if strings.TrimSpace(buf.String()) != "2 1" {
			t.Errorf("ids = %q", buf.String())
		}
	})

	t.Run("count", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Render(&buf, FormatCount, rows); err != nil {
			t.Fatalf("Render: %v", err)
		}
		if strings.TrimSpace(buf.String()) != "2" {
			t.Errorf("count = %q", buf.String())
		}
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Render(&buf, FormatTable, rows); err != nil {
			t.Fatalf("Render: %v", err)
		}
		for _, want := range []string{"channel", "auth", "tick, tock", `{"id":42}`} {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("table missing %q:\n%s", want, buf.String())
			}
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if err := Render(&bytes.Buffer{}, "xml", rows); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestRenderIDsWithoutIDField(t *testing.T) {
	rows := ChannelRows([]model.ChannelSummary{{Channel: "auth", Count: 3}})
	if err := Render(&bytes.Buffer{}, FormatIDs, rows); err == nil {
		t.Error("expected error when id column is missing")
	}
}

func TestChannelRows(t *testing.T) {
	last := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := ChannelRows([]model.ChannelSummary{
		{Channel: "auth", Count: 3, LastRecord: last},
		{Channel: "cron", Count: 1, LastRecord: last},
	})

	var buf bytes.Buffer
	if err := Render(&buf, FormatCSV, rows); err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "channel,count,last_record\nauth,3,2024-01-01 00:00:00.000\ncron,1,2024-01-01 00:00:00.000\n"
	if buf.String() != want {
		t.Errorf("csv = %q, want %q", buf.String(), want)
	}
}
