// Package job holds the asynchronous profiling job model shared by the API
// server, the worker and the job store.
package job

import (
	"time"

	"github.com/turtacn/clauselens/pkg/types/profile"
)

// Status is the lifecycle state of a profiling job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transition is expected.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid checks if the Status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Job is one row of the profiling_jobs table. The document text itself
// travels on the queue; only its digest and length are stored.
type Job struct {
	ID         string     `json:"job_id"`
	Status     Status     `json:"status"`
	TextSHA256 string     `json:"text_sha256"`
	TextLength int        `json:"text_length"`
	MaxLen     int        `json:"max_len"`
	Stride     int        `json:"stride"`
	BatchSize  int        `json:"batch_size"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	ArchiveKey string     `json:"archive_key,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Request is the payload published to the request topic.
type Request struct {
	JobID     string `json:"job_id"`
	Text      string `json:"text"`
	MaxLen    int    `json:"max_len"`
	Stride    int    `json:"stride"`
	BatchSize int    `json:"batch_size"`
}

// Completed is the payload published to the result topic once a job ends.
type Completed struct {
	JobID      string   `json:"job_id"`
	Status     Status   `json:"status"`
	ArchiveKey string   `json:"archive_key,omitempty"`
	Error      string   `json:"error,omitempty"`
	SpanCount  int      `json:"span_count"`
	RedFlags   []string `json:"red_flags"`
}

// Result is the archived and cached outcome of a completed job.
type Result struct {
	JobID   string                  `json:"job_id"`
	Profile *profile.Profile        `json:"profile"`
	Refined *profile.RefinedProfile `json:"refined"`
}
