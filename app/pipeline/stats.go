package pipeline

import (
	"time"

	"github.com/sponsorscout/jobengine/app/job"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// SourceStats accounts for one source within a run. Exactly one of a fetch
// error or the item counters is meaningful: a failed fetch contributes no
// listings.
type SourceStats struct {
	Fetched      int    `json:"fetched"`
	Created      int    `json:"created"`
	Updated      int    `json:"updated"`
	Skipped      int    `json:"skipped"`
	Dropped      int    `json:"dropped"` // malformed listings removed by the normalizer
	ErrorMessage string `json:"error_message,omitempty"`
}

// RunStats summarizes one aggregation run. The coordinator writes it after
// all connectors have joined; connectors never touch it concurrently.
type RunStats struct {
	RunID      string                     `json:"run_id"`
	Trigger    Trigger                    `json:"trigger"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
	PerSource  map[job.Source]SourceStats `json:"per_source"`

	TotalCreated int   `json:"total_created"`
	TotalUpdated int   `json:"total_updated"`
	TotalErrors  int   `json:"total_errors"`
	DurationMs   int64 `json:"duration_ms"`
}

// CompletedWithErrors reports whether the run finished in degraded form.
func (s *RunStats) CompletedWithErrors() bool {
	return s.TotalErrors > 0
}
