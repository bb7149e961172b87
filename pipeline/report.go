package pipeline

import (
	"time"
)

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// Report summarizes a run. It is returned alongside errors too, holding the
// last state reached before the failure.
type Report struct {
	RunID      string        `json:"run_id"`
	State      State         `json:"state"`
	DryRun     bool          `json:"dry_run"`
	Rows       int           `json:"rows"`
	Clusters   int           `json:"clusters"`
	Noise      int           `json:"noise"`
	Sizes      map[int]int   `json:"sizes,omitempty"`
	Updated    int64         `json:"rows_updated"`
	Timings    []StageTiming `json:"timings"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) record(stage string, start time.Time) {
	r.Timings = append(r.Timings, StageTiming{Stage: stage, Duration: time.Since(start)})
}
