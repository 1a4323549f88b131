package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
)

// State is the progress of one case through the pipeline.
type State string

const (
	StatePending     State = "Pending"
	StateFetching    State = "Fetching"
	StateExtracting  State = "Extracting"
	StateMatching    State = "Matching"
	StateReconciling State = "Reconciling"
	StateDone        State = "Done"
	StateFailed      State = "Failed"
)

// Reasons beyond the apperrors taxonomy.
const (
	ReasonDrained   = "Drained"
	ReasonCancelled = "Cancelled"
)

var nextState = map[State]State{
	StatePending:     StateFetching,
	StateFetching:    StateExtracting,
	StateExtracting:  StateMatching,
	StateMatching:    StateReconciling,
	StateReconciling: StateDone,
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// StageError is a failure attributed to the stage it happened in.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// reasonFor names the failure reason of err.
func reasonFor(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ReasonCancelled
	}
	return apperrors.Reason(err)
}

// advance moves o to the next stage. Leaving a terminal state or skipping a
// stage is a programming error.
func (o *Outcome) advance(to State) {
	if next, ok := nextState[o.State]; !ok || next != to {
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s for %s", o.State, to, o.Subject()))
	}
	o.State = to
}

// fail moves o to Failed from any non-terminal state.
func (o *Outcome) fail(err error) {
	if o.State.Terminal() {
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s for %s", o.State, StateFailed, o.Subject()))
	}
	stage := o.State
	o.State = StateFailed
	o.Reason = reasonFor(err)
	o.Error = (&StageError{Stage: stage, Err: err}).Error()
	o.err = err
}

// drain marks a case that was never dispatched.
func (o *Outcome) drain() {
	if o.State != StatePending {
		panic(fmt.Sprintf("pipeline: cannot drain %s in state %s", o.Subject(), o.State))
	}
	o.State = StateFailed
	o.Reason = ReasonDrained
}
