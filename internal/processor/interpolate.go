package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/tinytelemetry/chanlog/internal/model"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_.]+)\}`)

// Interpolator replaces {name} tokens in the message with the matching
// context values. Context is left untouched and unknown tokens stay as-is.
type Interpolator struct{}

func (Interpolator) Process(_ context.Context, rec model.Record) model.Record {
	rec.Message = Interpolate(rec.Message, rec.Context)
	return rec
}

// Interpolate renders msg against vars. Scalars render as their JSON
// literals (nil as null, booleans as true/false), matching how the same
// values appear in the stored context.
func Interpolate(msg string, vars map[string]any) string {
	if len(vars) == 0 {
		return msg
	}
	return placeholderPattern.ReplaceAllStringFunc(msg, func(token string) string {
		v, ok := vars[token[1:len(token)-1]]
		if !ok {
			return token
		}
		s, ok := render(v)
		if !ok {
			return token
		}
		return s
	})
}

func render(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "null", true
	case string:
		return val, true
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(val), true
	case time.Time:
		return val.Format(time.RFC3339), true
	case error:
		return val.Error(), true
	case fmt.Stringer:
		return val.String(), true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(data), true
}
