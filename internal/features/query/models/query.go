package models

import "time"

// Result is the outcome of one read-only query execution.
type Result struct {
	Columns   []string
	Rows      []map[string]interface{}
	Truncated bool
	Elapsed   time.Duration
}

// Saved is a named query template kept for reuse by admins.
type Saved struct {
	Name      string
	Text      string
	CreatedBy int64
	CreatedOn time.Time
}
