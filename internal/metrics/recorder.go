// Package metrics defines observability hooks for build runs. One-shot
// invocations use the NoopRecorder; watch sessions can expose a Prometheus
// registry over HTTP.
package metrics

import "time"

// EntryKind labels counters by pipeline.
type EntryKind string

const (
	KindTransform  EntryKind = "transform"
	KindPreprocess EntryKind = "preprocess"
)

// ResultLabel enumerates entry result categories for counters.
type ResultLabel string

const (
	ResultProcessed ResultLabel = "processed"
	ResultFresh     ResultLabel = "fresh"
	ResultFailed    ResultLabel = "failed"
)

// Recorder defines observability hooks for build and entry metrics.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string) // outcome: success|failed
	IncEntryResult(kind EntryKind, result ResultLabel)
	SetPartitionSizes(stale, fresh int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are
// not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)    {}
func (NoopRecorder) IncBuildOutcome(string)                {}
func (NoopRecorder) IncEntryResult(EntryKind, ResultLabel) {}
func (NoopRecorder) SetPartitionSizes(int, int)            {}
