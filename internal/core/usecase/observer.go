package usecase

import "time"

// PipelineObserver receives pipeline telemetry. Implementations must be
// cheap and non-blocking; the pipeline calls them inline.
type PipelineObserver interface {
	StageCompleted(stage string, duration time.Duration)
	OracleCall(stage string, err error)
	RepairAttempt(stage string)
}

type nopObserver struct{}

func (nopObserver) StageCompleted(string, time.Duration) {}
func (nopObserver) OracleCall(string, error)             {}
func (nopObserver) RepairAttempt(string)                 {}
