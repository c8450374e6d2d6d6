package pipeline

import "time"

// Status tags a stage result. The tolerated-vs-fatal policy is explicit: a
// Warn continues the pipeline, a Fatal stops it.
type Status string

const (
	StatusOk    Status = "ok"
	StatusWarn  Status = "warn"
	StatusFatal Status = "fatal"
)

// Outcome is the tagged result of one pipeline stage.
type Outcome struct {
	Status Status
	Reason string
	Err    error
}

// Ok returns a successful outcome.
func Ok() Outcome { return Outcome{Status: StatusOk} }

// Warn returns a tolerated-discrepancy outcome.
func Warn(reason string) Outcome { return Outcome{Status: StatusWarn, Reason: reason} }

// Fatal returns a pipeline-stopping outcome.
func Fatal(reason string) Outcome { return Outcome{Status: StatusFatal, Reason: reason} }

// FatalErr returns a pipeline-stopping outcome wrapping err.
func FatalErr(err error) Outcome {
	return Outcome{Status: StatusFatal, Reason: err.Error(), Err: err}
}

// IsFatal reports whether the outcome stops the pipeline.
func (o Outcome) IsFatal() bool { return o.Status == StatusFatal }

// StageResult records one executed stage for the run report.
type StageResult struct {
	Stage    string        `json:"stage"`
	Status   Status        `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
}
