package model

import "sort"

// Level is a numeric severity. Higher values are more severe.
type Level uint

// Canonical severities.
const (
	LevelDebug     Level = 100
	LevelInfo      Level = 200
	LevelNotice    Level = 250
	LevelWarning   Level = 300
	LevelError     Level = 400
	LevelCritical  Level = 500
	LevelAlert     Level = 550
	LevelEmergency Level = 600
)

var levelNames = map[Level]string{
	LevelDebug:     "DEBUG",
	LevelInfo:      "INFO",
	LevelNotice:    "NOTICE",
	LevelWarning:   "WARNING",
	LevelError:     "ERROR",
	LevelCritical:  "CRITICAL",
	LevelAlert:     "ALERT",
	LevelEmergency: "EMERGENCY",
}

// Levels returns the canonical levels in ascending order.
func Levels() []Level {
	out := make([]Level, 0, len(levelNames))
	for l := range levelNames {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Canonical maps l onto the highest canonical level not above it.
// Anything below DEBUG is DEBUG.
func (l Level) Canonical() Level {
	if _, ok := levelNames[l]; ok {
		return l
	}
	best := LevelDebug
	for _, c := range Levels() {
		if c <= l {
			best = c
		}
	}
	return best
}

// String returns the canonical level name.
func (l Level) String() string {
	return levelNames[l.Canonical()]
}

// IsCanonical reports whether l is one of the defined severities.
func (l Level) IsCanonical() bool {
	_, ok := levelNames[l]
	return ok
}
