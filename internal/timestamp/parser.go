package timestamp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var dateOnlyPattern = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}$`)

var relativePattern = regexp.MustCompile(`^([+-]?)\s*(\d+)\s*(second|sec|minute|min|hour|day|week|month|year)s?(\s+ago)?$`)

// ParseExpression resolves a date/time expression relative to now in loc.
//
// Accepted forms: keywords (now, today, yesterday, tomorrow), relative
// offsets ("3 days ago", "-2 hours", "+1 week"), unix seconds prefixed with
// "@", and any absolute layout understood by dateparse. Absolute values
// without a zone are interpreted in loc.
func ParseExpression(expr string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	s := strings.ToLower(strings.TrimSpace(expr))

	switch s {
	case "":
		return time.Time{}, fmt.Errorf("empty time expression")
	case "now":
		return now, nil
	case "today":
		return StartOfDay(now), nil
	case "yesterday":
		return StartOfDay(now).AddDate(0, 0, -1), nil
	case "tomorrow":
		return StartOfDay(now).AddDate(0, 0, 1), nil
	}

	if strings.HasPrefix(s, "@") {
		secs, err := strconv.ParseInt(s[1:], 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing unix time %q: %w", expr, err)
		}
		return time.Unix(secs, 0).In(loc), nil
	}

	if m := relativePattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing offset %q: %w", expr, err)
		}
		if m[1] == "-" || m[4] != "" {
			n = -n
		}
		return shift(now, n, m[3]), nil
	}

	t, err := dateparse.ParseIn(strings.TrimSpace(expr), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", expr, err)
	}
	return t, nil
}

func shift(t time.Time, n int, unit string) time.Time {
	switch unit {
	case "second", "sec":
		return t.Add(time.Duration(n) * time.Second)
	case "minute", "min":
		return t.Add(time.Duration(n) * time.Minute)
	case "hour":
		return t.Add(time.Duration(n) * time.Hour)
	case "day":
		return t.AddDate(0, 0, n)
	case "week":
		return t.AddDate(0, 0, 7*n)
	case "month":
		return t.AddDate(0, n, 0)
	default:
		return t.AddDate(n, 0, 0)
	}
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysAgo returns midnight of the day n days before now, in loc.
func DaysAgo(now time.Time, n int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return StartOfDay(now.In(loc)).AddDate(0, 0, -n)
}

// LoadLocation resolves a timezone name, falling back to UTC when the name
// is empty or unknown.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDateOnly reports whether expr is a bare calendar date (YYYY-MM-DD).
func IsDateOnly(expr string) bool {
	return dateOnlyPattern.MatchString(strings.TrimSpace(expr))
}
