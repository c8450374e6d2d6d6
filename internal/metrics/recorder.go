// Package metrics records pipeline stage and run observations.
package metrics

import "time"

// ResultLabel classifies a stage result.
type ResultLabel string

const (
	ResultOk    ResultLabel = "ok"
	ResultWarn  ResultLabel = "warn"
	ResultFatal ResultLabel = "fatal"
)

// RunOutcomeLabel classifies a whole pipeline run.
type RunOutcomeLabel string

const (
	OutcomeSuccess RunOutcomeLabel = "success"
	OutcomeFailure RunOutcomeLabel = "failure"
)

// Recorder receives pipeline observations.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncRunOutcome(outcome RunOutcomeLabel)
}

// NoopRecorder discards all observations.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)  {}
func (NoopRecorder) ObserveRunDuration(time.Duration)            {}
func (NoopRecorder) IncStageResult(string, ResultLabel)          {}
func (NoopRecorder) IncRunOutcome(RunOutcomeLabel)               {}
