package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/chanlog/internal/model"
)

// ConsoleSink writes records to an operator terminal. Severe records go to
// stderr with a prefix, informational ones to stdout.
type ConsoleSink struct {
	threshold
	mu        sync.Mutex
	stdout    io.Writer
	stderr    io.Writer
	formatter LineFormatter

	errorStyle   lipgloss.Style
	warningStyle lipgloss.Style
	debugStyle   lipgloss.Style
}

var _ Leveled = (*ConsoleSink)(nil)

// NewConsoleSink returns a console sink at level. Styles adapt to whether
// each writer is a terminal.
func NewConsoleSink(stdout, stderr io.Writer, level model.Level, formatter LineFormatter) *ConsoleSink {
	errR := lipgloss.NewRenderer(stderr)
	s := &ConsoleSink{
		stdout:       stdout,
		stderr:       stderr,
		formatter:    formatter,
		errorStyle:   errR.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		warningStyle: errR.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),
		debugStyle:   errR.NewStyle().Foreground(lipgloss.Color("240")),
	}
	s.SetLevel(level)
	return s
}

func (s *ConsoleSink) Handle(_ context.Context, rec model.Record) error {
	text := rec.Formatted
	if text == "" {
		text = s.formatter.Format(rec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch {
	case rec.Level >= model.LevelError:
		_, err = fmt.Fprintln(s.stderr, s.errorStyle.Render("Error:")+" "+text)
	case rec.Level >= model.LevelWarning:
		_, err = fmt.Fprintln(s.stderr, s.warningStyle.Render("Warning:")+" "+text)
	case rec.Level >= model.LevelNotice:
		_, err = fmt.Fprintln(s.stdout, text)
	default:
		_, err = fmt.Fprintln(s.stderr, s.debugStyle.Render("Debug:")+" "+text)
	}
	if err != nil {
		return fmt.Errorf("console sink: %w", err)
	}

	if s.Level() <= model.LevelNotice && len(rec.Context) > 0 {
		pretty, jerr := json.MarshalIndent(rec.Context, "", "  ")
		if jerr != nil {
			return nil
		}
		if _, err := fmt.Fprintln(s.stderr, string(pretty)); err != nil {
			return fmt.Errorf("console sink: %w", err)
		}
	}
	return nil
}
