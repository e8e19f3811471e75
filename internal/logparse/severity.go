package logparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tinytelemetry/chanlog/internal/model"
)

// NormalizeSeverity converts the many spellings of a severity name into the
// canonical upper-case level name. Unknown names return "".
func NormalizeSeverity(severity string) string {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "TRACE", "TRAC", "TRC", "DEBUG", "DEBU", "DBG", "DEB":
		return "DEBUG"
	case "INFO", "INFORMATION", "INF":
		return "INFO"
	case "NOTICE", "NOTI", "NTC":
		return "NOTICE"
	case "WARN", "WARNING", "WRNG", "WRN":
		return "WARNING"
	case "ERROR", "ERR", "ERRO":
		return "ERROR"
	case "CRITICAL", "CRIT", "CRT", "FATAL", "FATL", "FTL":
		return "CRITICAL"
	case "ALERT", "ALRT":
		return "ALERT"
	case "EMERGENCY", "EMERG", "EMRG", "PANIC", "PNC":
		return "EMERGENCY"
	}
	return ""
}

var levelByName = func() map[string]model.Level {
	m := make(map[string]model.Level)
	for _, l := range model.Levels() {
		m[l.String()] = l
	}
	return m
}()

// ParseLevel accepts a level name, an alias, or a number. Numbers are
// mapped onto the canonical level at or below them.
func ParseLevel(s string) (model.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty level")
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return model.Level(n).Canonical(), nil
	}
	if l, ok := levelByName[NormalizeSeverity(s)]; ok {
		return l, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}
