package agent

import "errors"

// State is the position of a run in the orchestration state machine.
// StateDone, StateError and StateMaxIter are terminal.
type State string

const (
	StateStart     State = "START"
	StateCallModel State = "CALL_MODEL"
	StateToolExec  State = "TOOL_EXEC"
	StateDone      State = "DONE"
	StateError     State = "ERROR"
	StateMaxIter   State = "MAX_ITER"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError || s == StateMaxIter
}

var (
	// ErrEngineUnavailable is returned by Run when the reasoning engine
	// could not be reached or rejected the credentials.
	ErrEngineUnavailable = errors.New("reasoning engine unavailable")

	// ErrModelProtocol records an unexpected stop signal or an aborted
	// stream; the run ends in StateError.
	ErrModelProtocol = errors.New("model protocol error")

	// ErrIterationLimit records a run stopped by the iteration cap; the
	// run ends in StateMaxIter.
	ErrIterationLimit = errors.New("iteration limit exceeded")
)

// Fallback texts returned when the model produced no usable answer.
const (
	FallbackNoResponse = "No response generated"
	FallbackUnexpected = "Agent loop ended unexpectedly"
	FallbackMaxIter    = "Agent loop ended without a final answer"
)
