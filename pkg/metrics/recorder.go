// Package metrics provides Prometheus-based metrics recording for the
// sampling loop and tool execution.
package metrics

import "time"

// Recorder receives observations from the agent loop. A nil Recorder
// disables metrics collection.
type Recorder interface {
	// ObserveRequest records metrics for a completed model request.
	ObserveRequest(model string, inputTokens, outputTokens int, success bool, duration time.Duration)

	// ObserveToolExec records metrics for a single tool dispatch.
	ObserveToolExec(tool string, success bool, duration time.Duration)

	// ObserveImagesTrimmed records screenshots evicted by context trimming.
	ObserveImagesTrimmed(count int)
}

// NopRecorder discards all observations.
type NopRecorder struct{}

// ObserveRequest implements Recorder.
func (NopRecorder) ObserveRequest(string, int, int, bool, time.Duration) {}

// ObserveToolExec implements Recorder.
func (NopRecorder) ObserveToolExec(string, bool, time.Duration) {}

// ObserveImagesTrimmed implements Recorder.
func (NopRecorder) ObserveImagesTrimmed(int) {}
