// Package pipeline defines the orchestration loop state machine: its states,
// the per-run loop state, the stopping predicate, and the terminal result.
package pipeline

import (
	"time"

	"github.com/imagingworks/protoloop/internal/domain/review"
)

// State identifies a phase of the orchestration loop.
type State string

const (
	StateInit     State = "init"
	StateGenerate State = "generate"
	StateReview   State = "review"
	StateDone     State = "done"
)

// Stopping rule parameters. The floor keeps a lucky first pass from
// short-circuiting review entirely; the cap bounds cost against a
// non-convergent generation-review pair.
const (
	MinIterations       = 2
	MaxIterations       = 6
	ConfidenceThreshold = 0.75
)

// Candidate is one iteration's generated structured proposal. It is opaque to
// the loop and superseded each iteration.
type Candidate map[string]any

// LoopState tracks one run of the orchestration loop. It is owned exclusively
// by the loop controller and discarded when the run completes.
type LoopState struct {
	Iteration     int
	State         State
	LastCandidate Candidate
	LastFeedback  *review.Result
}

// Result is the terminal artifact of a pipeline run.
type Result struct {
	RunID       string    `json:"run_id"`
	FinalOutput Candidate `json:"final_output"`
	LoopsRun    int       `json:"loops_run"`
	Confidence  float64   `json:"confidence"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// ShouldStop is the stopping predicate, evaluated after each review. The loop
// stops at the first iteration >= MinIterations whose confidence meets the
// threshold, and unconditionally at MaxIterations. A confidence dip after an
// earlier threshold hit never matters because the loop stops immediately on
// the first hit.
func ShouldStop(iteration int, confidence float64) bool {
	if iteration >= MaxIterations {
		return true
	}
	return iteration >= MinIterations && confidence >= ConfidenceThreshold
}
