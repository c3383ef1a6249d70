package store

import "time"

// ReportRecord indexes a report file written to disk.
type ReportRecord struct {
	ID        string
	Path      string
	CreatedAt time.Time
	SizeBytes int64
}

// ErrorRecord is one persisted tracked error. Data holds the JSON encoded
// error report.
type ErrorRecord struct {
	ID        int64
	Message   string
	Severity  string
	CreatedAt time.Time
	Data      string
}
