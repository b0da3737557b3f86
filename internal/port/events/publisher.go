// Package events defines the port for publishing pipeline run events.
package events

import (
	"context"
	"time"
)

// IterationEvent is emitted after each completed review iteration.
type IterationEvent struct {
	RunID      string    `json:"run_id"`
	Iteration  int       `json:"iteration"`
	Confidence float64   `json:"confidence"`
	Stopped    bool      `json:"stopped"`
	Timestamp  time.Time `json:"timestamp"`
}

// RunCompletedEvent is emitted once when a run reaches its terminal state.
type RunCompletedEvent struct {
	RunID     string    `json:"run_id"`
	LoopsRun  int       `json:"loops_run"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers pipeline events to interested consumers. Publishing is
// best-effort from the loop's point of view; delivery failures must not abort
// a run.
type Publisher interface {
	PublishIteration(ctx context.Context, evt IterationEvent) error
	PublishRunCompleted(ctx context.Context, evt RunCompletedEvent) error
}

// Noop is a Publisher that discards all events. Used when no message broker
// is configured.
type Noop struct{}

func (Noop) PublishIteration(context.Context, IterationEvent) error { return nil }

func (Noop) PublishRunCompleted(context.Context, RunCompletedEvent) error { return nil }
