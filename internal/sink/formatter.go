package sink

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tinytelemetry/chanlog/internal/model"
)

// LineFormatter renders a record as a single line:
//
//	[2006-01-02 15:04:05] channel.LEVEL: message {context} {extra}
type LineFormatter struct {
	TimeLayout   string
	Location     *time.Location
	IncludeExtra bool
}

// DefaultTimeLayout is used when the formatter has no layout.
const DefaultTimeLayout = "2006-01-02 15:04:05"

// Format renders rec. Empty maps render as [].
func (f LineFormatter) Format(rec model.Record) string {
	layout := f.TimeLayout
	if layout == "" {
		layout = DefaultTimeLayout
	}
	at := rec.Time
	if at.IsZero() {
		at = rec.CreatedAt
	}
	if f.Location != nil {
		at = at.In(f.Location)
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(at.Format(layout))
	b.WriteString("] ")
	b.WriteString(rec.Channel)
	b.WriteString(".")
	b.WriteString(rec.LevelName())
	b.WriteString(": ")
	b.WriteString(rec.Message)
	b.WriteString(" ")
	b.WriteString(compactJSON(rec.Context))
	if f.IncludeExtra {
		b.WriteString(" ")
		b.WriteString(compactJSON(rec.Extra))
	}
	return b.String()
}

func compactJSON(m map[string]any) string {
	if len(m) == 0 {
		return "[]"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "[]"
	}
	return string(data)
}
