// Package ingest turns raw log lines into entries for a channel logger.
package ingest

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/tinytelemetry/chanlog/internal/logparse"
	"github.com/tinytelemetry/chanlog/internal/model"
)

// Entry is one parsed log event.
type Entry struct {
	// Channel is set when a JSON line names its own channel.
	Channel string
	Level   model.Level
	Message string
	Context map[string]any
}

var (
	levelKeys   = []string{"level", "level_name", "severity", "severityText"}
	messageKeys = []string{"message", "msg", "body"}

	// "[WARN] slow query", "ERROR: disk full", "notice - rotated"
	textLevel = regexp.MustCompile(`^\s*(?:\[([A-Za-z]+)\]|([A-Za-z]+)\s*[:\-])\s+(.*)$`)
)

// Parser accepts lines one at a time. A JSON object spread over several
// lines is buffered until its braces balance.
type Parser struct {
	DefaultLevel model.Level

	buf   strings.Builder
	depth int
	inObj bool
}

// NewParser returns a parser that assigns level to lines without one.
func NewParser(level model.Level) *Parser {
	return &Parser{DefaultLevel: level}
}

// Feed consumes one line. ok is false while a multi-line JSON object is
// still open.
func (p *Parser) Feed(line string) (Entry, bool) {
	trimmed := strings.TrimSpace(line)

	if !p.inObj {
		if !strings.HasPrefix(trimmed, "{") {
			return p.parseText(line), true
		}
		p.inObj = true
		p.buf.Reset()
		p.depth = 0
	}

	p.buf.WriteString(line)
	p.buf.WriteString("\n")
	p.depth += CountJSONDepth(line)
	if p.depth > 0 {
		return Entry{}, false
	}

	raw := strings.TrimSpace(p.buf.String())
	p.reset()
	return p.parse(raw), true
}

// Flush returns any half-read JSON object as a plain text entry.
func (p *Parser) Flush() (Entry, bool) {
	if !p.inObj {
		return Entry{}, false
	}
	raw := strings.TrimSpace(p.buf.String())
	p.reset()
	return p.parseText(raw), true
}

func (p *Parser) reset() {
	p.inObj = false
	p.depth = 0
	p.buf.Reset()
}

func (p *Parser) parse(raw string) Entry {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return p.parseText(raw)
	}

	e := Entry{Level: p.DefaultLevel}
	if key, v := firstString(obj, levelKeys); key != "" {
		if level, err := logparse.ParseLevel(v); err == nil {
			e.Level = level
			delete(obj, key)
		}
	}
	if key, v := firstString(obj, messageKeys); key != "" {
		e.Message = v
		delete(obj, key)
	}
	if ch, ok := obj["channel"].(string); ok {
		e.Channel = ch
		delete(obj, "channel")
	}

	if ctx, ok := obj["context"].(map[string]any); ok {
		delete(obj, "context")
		for k, v := range obj {
			if _, taken := ctx[k]; !taken {
				ctx[k] = v
			}
		}
		e.Context = ctx
	} else if len(obj) > 0 {
		e.Context = obj
	}
	if e.Message == "" && e.Context == nil {
		e.Message = raw
	}
	return e
}

func (p *Parser) parseText(line string) Entry {
	if m := textLevel.FindStringSubmatch(line); m != nil {
		if name := logparse.NormalizeSeverity(m[1] + m[2]); name != "" {
			level, _ := logparse.ParseLevel(name)
			return Entry{Level: level, Message: sanitize(m[3])}
		}
	}
	return Entry{Level: p.DefaultLevel, Message: sanitize(line)}
}

func firstString(obj map[string]any, keys []string) (string, string) {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if v != "" {
				return k, v
			}
		case float64:
			return k, strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return "", ""
}

// CountJSONDepth counts the net change in JSON nesting depth for a line.
func CountJSONDepth(line string) int {
	depth := 0
	inString := false
	escaped := false

	for _, char := range line {
		if escaped {
			escaped = false
			continue
		}

		switch char {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
			}
		}
	}

	return depth
}

func sanitize(message string) string {
	clean := strings.ReplaceAll(message, "\t", " ")
	clean = strings.ReplaceAll(clean, "\n", " ")
	return strings.ReplaceAll(clean, "\r", " ")
}
