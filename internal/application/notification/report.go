package notification

import (
	"fmt"
	"time"
)

// Outcome is the per-subscriber result of a sweep.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

type Result struct {
	Email    string  `json:"email"`
	Location string  `json:"location,omitempty"`
	Outcome  Outcome `json:"outcome"`
	Reason   string  `json:"reason,omitempty"`
}

// Report summarises one sweep.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Sent       int       `json:"sent"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Results    []Result  `json:"results"`
}

func (r *Report) add(res Result) {
	switch res.Outcome {
	case OutcomeSent:
		r.Sent++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
	r.Results = append(r.Results, res)
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ArchiveKey is the object key the report is stored under.
func (r *Report) ArchiveKey() string {
	return fmt.Sprintf("sweeps/%s/%s.json", r.StartedAt.UTC().Format(dateLayout), r.RunID)
}

func (r *Report) Summary() string {
	return fmt.Sprintf("sweep %s: sent=%d skipped=%d failed=%d duration=%s",
		r.RunID, r.Sent, r.Skipped, r.Failed, r.Duration().Round(time.Millisecond))
}
