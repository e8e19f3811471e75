// Package output renders query results for the command line.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/chanlog/internal/model"
)

// Supported formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatYAML  = "yaml"
	FormatIDs   = "ids"
	FormatCount = "count"
)

// DefaultRecordFields are shown by list when no fields are requested.
var DefaultRecordFields = []string{"id", "channel", "level_name", "message", "created_at"}

// ChannelFields are the columns of a channel listing.
var ChannelFields = []string{"channel", "count", "last_record"}

// RecordFields lists every field a record row can carry.
var RecordFields = []string{"id", "channel", "message", "level", "level_name", "context", "extra", "created_at", "created_at_gmt"}

const displayTime = "2006-01-02 15:04:05.000"

// Rows is an ordered set of columns plus one value map per row.
type Rows struct {
	Fields []string
	Values []map[string]any
}

// RecordRows projects records onto fields. Unknown fields are an error.
func RecordRows(records []model.Record, fields []string) (Rows, error) {
	if len(fields) == 0 {
		fields = DefaultRecordFields
	}
	for _, f := range fields {
		if !slices.Contains(RecordFields, f) {
			return Rows{}, fmt.Errorf("unknown field %q (valid: %s)", f, strings.Join(RecordFields, ", "))
		}
	}

	rows := Rows{Fields: fields, Values: make([]map[string]any, 0, len(records))}
	for _, r := range records {
		all := map[string]any{
			"id":             r.ID,
			"channel":        r.Channel,
			"message":        r.Message,
			"level":          uint(r.Level),
			"level_name":     r.LevelName(),
			"context":        r.Context,
			"extra":          r.Extra,
			"created_at":     r.CreatedAt,
			"created_at_gmt": r.CreatedAtGMT,
		}
		row := make(map[string]any, len(fields))
		for _, f := range fields {
			row[f] = all[f]
		}
		rows.Values = append(rows.Values, row)
	}
	return rows, nil
}

// ChannelRows projects channel summaries.
func ChannelRows(channels []model.ChannelSummary) Rows {
	rows := Rows{Fields: ChannelFields, Values: make([]map[string]any, 0, len(channels))}
	for _, c := range channels {
		rows.Values = append(rows.Values, map[string]any{
			"channel":     c.Channel,
			"count":       c.Count,
			"last_record": c.LastRecord,
		})
	}
	return rows
}

// Render writes rows to w in format.
func Render(w io.Writer, format string, rows Rows) error {
	switch strings.ToLower(format) {
	case "", FormatTable:
		return renderTable(w, rows)
	case FormatJSON:
		return renderJSON(w, rows)
	case FormatCSV:
		return renderCSV(w, rows)
	case FormatYAML:
		return renderYAML(w, rows)
	case FormatIDs:
		return renderIDs(w, rows)
	case FormatCount:
		_, err := fmt.Fprintln(w, len(rows.Values))
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func renderTable(w io.Writer, rows Rows) error {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(rows.Fields...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for _, v := range rows.Values {
		t.Row(stringRow(rows.Fields, v)...)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func renderCSV(w io.Writer, rows Rows) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rows.Fields); err != nil {
		return err
	}
	for _, v := range rows.Values {
		if err := cw.Write(stringRow(rows.Fields, v)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderJSON(w io.Writer, rows Rows) error {
	out := make([]map[string]any, len(rows.Values))
	for i, v := range rows.Values {
		out[i] = plainRow(rows.Fields, v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderYAML(w io.Writer, rows Rows) error {
	// Sequence of mapping nodes keeps the column order.
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, v := range rows.Values {
		m := &yaml.Node{Kind: yaml.MappingNode}
		plain := plainRow(rows.Fields, v)
		for _, f := range rows.Fields {
			var val yaml.Node
			if err := val.Encode(plain[f]); err != nil {
				return err
			}
			m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: f}, &val)
		}
		seq.Content = append(seq.Content, m)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(seq); err != nil {
		return err
	}
	return enc.Close()
}

func renderIDs(w io.Writer, rows Rows) error {
	ids := make([]string, 0, len(rows.Values))
	for _, v := range rows.Values {
		id, ok := v["id"]
		if !ok {
			return fmt.Errorf("ids format needs the id field")
		}
		ids = append(ids, fmt.Sprint(id))
	}
	_, err := fmt.Fprintln(w, strings.Join(ids, " "))
	return err
}

// plainRow converts times to display strings so every encoder shows the
// same values.
func plainRow(fields []string, v map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if t, ok := v[f].(time.Time); ok {
			out[f] = formatTime(t)
			continue
		}
		out[f] = v[f]
	}
	return out
}

func stringRow(fields []string, v map[string]any) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = Stringify(v[f])
	}
	return out
}

// Stringify renders one cell value.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return formatTime(val)
	case map[string]any:
		if val == nil {
			return ""
		}
		return compactJSON(val)
	case []any:
		return compactJSON(val)
	default:
		return fmt.Sprint(val)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(displayTime)
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
