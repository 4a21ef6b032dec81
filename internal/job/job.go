// Package job tracks scrape jobs: the single-slot cancellation registry,
// status records and lifecycle events.
package job

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Job is the status record of one scrape.
type Job struct {
	ID         string     `json:"id"`
	Query      string     `json:"query"`
	Industry   string     `json:"industry,omitempty"`
	Region     string     `json:"region,omitempty"`
	EngineUsed string     `json:"engineUsed,omitempty"`
	Status     Status     `json:"status"`
	TotalFound int        `json:"totalFound"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// NewID returns a fresh job identifier.
func NewID() string {
	return uuid.NewString()
}

// Finish moves j to a terminal status.
func (j *Job) Finish(status Status, err error, at time.Time) {
	j.Status = status
	if err != nil {
		j.Error = err.Error()
	}
	at = at.UTC()
	j.FinishedAt = &at
}
