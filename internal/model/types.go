package model

import (
	"encoding/json"
	"time"
)

// Record represents a single log event, both in flight and as stored.
type Record struct {
	ID           uint64
	Channel      string
	Message      string
	Level        Level
	Context      map[string]any
	Extra        map[string]any
	Time         time.Time // event instant for in-flight records
	CreatedAt    time.Time // repository timezone
	CreatedAtGMT time.Time
	Formatted    string
}

// LevelName is derived from Level and never stored independently.
func (r Record) LevelName() string {
	return r.Level.String()
}

// NewRecord builds an in-flight record stamped with now.
func NewRecord(channel string, level Level, message string, context map[string]any) Record {
	return Record{
		Channel: channel,
		Message: message,
		Level:   level,
		Context: context,
		Extra:   map[string]any{},
		Time:    time.Now(),
	}
}

type recordJSON struct {
	ID           uint64         `json:"id"`
	Channel      string         `json:"channel"`
	Message      string         `json:"message"`
	Level        uint           `json:"level"`
	LevelName    string         `json:"level_name"`
	Extra        map[string]any `json:"extra"`
	Context      map[string]any `json:"context"`
	CreatedAt    string         `json:"created_at"`
	CreatedAtGMT string         `json:"created_at_gmt"`
}

// JSONTimeLayout renders stored timestamps with millisecond precision.
const JSONTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// MarshalJSON emits the stored shape of the record.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:        r.ID,
		Channel:   r.Channel,
		Message:   r.Message,
		Level:     uint(r.Level),
		LevelName: r.LevelName(),
		Extra:     r.Extra,
		Context:   r.Context,
	}
	if !r.CreatedAt.IsZero() {
		out.CreatedAt = r.CreatedAt.Format(JSONTimeLayout)
	}
	if !r.CreatedAtGMT.IsZero() {
		out.CreatedAtGMT = r.CreatedAtGMT.Format(JSONTimeLayout)
	}
	return json.Marshal(out)
}

// ChannelSummary aggregates the stored records of one channel.
type ChannelSummary struct {
	Channel    string    `json:"channel"`
	Count      int64     `json:"count"`
	LastRecord time.Time `json:"last_record"`
}
