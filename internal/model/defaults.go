package model

import "time"

// Shared defaults used by the CLI and the HTTP server.
const (
	DefaultDatabaseLevel = LevelNotice
	DefaultConsoleLevel  = LevelWarning
	DefaultPurgeDays     = 90
	DefaultQueryTimeout  = 30 * time.Second
	DefaultTimezone      = "Etc/UTC"
)
