// Package metrics provides the metrics recording interface used by the job
// runners and pipeline stages.
package metrics

import "time"

// Recorder records pipeline metrics.
type Recorder interface {
	// RecordReceived counts a job pulled from the queue.
	RecordReceived()
	// RecordProcessed records a handled job with its latency.
	RecordProcessed(latency time.Duration)
	// RecordPublished counts jobs written to a queue.
	RecordPublished()
	// RecordError counts a failure of any kind.
	RecordError()
	// RecordSkipped counts jobs that needed no work (already handled).
	RecordSkipped()
	// RecordRetried counts jobs re-scheduled for another attempt.
	RecordRetried()
	// RecordFailed counts jobs or notifications that exhausted their attempts.
	RecordFailed()
	// RecordSent counts notifications delivered to a channel.
	RecordSent()
}

// NoOp discards all metrics.
type NoOp struct{}

// NewNoOp creates a new no-op metrics recorder.
func NewNoOp() *NoOp {
	return &NoOp{}
}

func (n *NoOp) RecordReceived()                 {}
func (n *NoOp) RecordProcessed(_ time.Duration) {}
func (n *NoOp) RecordPublished()                {}
func (n *NoOp) RecordError()                    {}
func (n *NoOp) RecordSkipped()                  {}
func (n *NoOp) RecordRetried()                  {}
func (n *NoOp) RecordFailed()                   {}
func (n *NoOp) RecordSent()                     {}

var _ Recorder = (*NoOp)(nil)
