// Package task implements coding-task metadata and its lifecycle state
// machine.
//
// A task is identified by an immutable task id which doubles as the
// conversation-history session id: metadata snapshots are persisted as
// JSON envelopes inside conversation records rather than in a dedicated
// table (see Manager). The state machine validates every transition
// against a fixed table before any other field mutation is applied.
package task

import (
	"fmt"
	"strings"
)

// State tracks a coding task's lifecycle.
type State string

const (
	StateCreated      State = "created"       // task just created, needs planning
	StatePlanning     State = "planning"      // planning phase in progress
	StatePlanApproved State = "plan_approved" // plan validated and approved
	StateImplementing State = "implementing"  // implementation phase in progress
	StateTesting      State = "testing"       // testing phase in progress
	StateReviewReady  State = "review_ready"  // implementation complete, ready for review
	StateCompleted    State = "completed"     // task completed successfully
	StateBlocked      State = "blocked"       // blocked by external dependencies
	StateCancelled    State = "cancelled"     // terminal, no outgoing transitions
)

// transitions is the directed edge table. CREATED is the initial state;
// CANCELLED is terminal. IMPLEMENTING self-loops to allow repeated code
// changes during implementation.
var transitions = map[State][]State{
	StateCreated:      {StatePlanning, StateBlocked, StateCancelled},
	StatePlanning:     {StatePlanApproved, StateCreated, StateBlocked, StateCancelled},
	StatePlanApproved: {StateImplementing, StatePlanning, StateBlocked, StateCancelled},
	StateImplementing: {StateImplementing, StateReviewReady, StatePlanApproved, StateBlocked, StateCancelled},
	StateReviewReady:  {StateCompleted, StateImplementing, StateBlocked, StateCancelled},
	StateTesting:      {},
	StateCompleted:    {StateCancelled},
	StateBlocked:      {StateCreated, StatePlanning, StatePlanApproved, StateImplementing, StateReviewReady, StateCancelled},
	StateCancelled:    {},
}

// InvalidTransitionError reports a rejected state transition along with
// the targets that would have been accepted.
type InvalidTransitionError struct {
	From  State
	To    State
	Valid []State
}

func (e *InvalidTransitionError) Error() string {
	valid := make([]string, len(e.Valid))
	for i, s := range e.Valid {
		valid[i] = string(s)
	}
	return fmt.Sprintf("invalid state transition: %s → %s (valid targets from %s: %s)",
		e.From, e.To, e.From, strings.Join(valid, ", "))
}

// ValidTransitions returns the allowed target states from the given
// state. The returned slice must not be mutated.
func ValidTransitions(from State) []State {
	return transitions[from]
}

// ValidateTransition returns an *InvalidTransitionError if moving from
// current to requested is not in the transition table. It has no side
// effects — callers apply the transition only on nil.
func ValidateTransition(current, requested State) error {
	for _, s := range transitions[current] {
		if s == requested {
			return nil
		}
	}
	return &InvalidTransitionError{From: current, To: requested, Valid: transitions[current]}
}

// ParseState validates a raw string against the known states.
func ParseState(raw string) (State, error) {
	s := State(raw)
	if _, ok := transitions[s]; !ok {
		return "", fmt.Errorf("unknown task state %q", raw)
	}
	return s, nil
}

// StateInfo is a human-readable summary of a state, used when composing
// guidance prompts.
type StateInfo struct {
	Description string
	NextAction  string
}

var stateInfos = map[State]StateInfo{
	StateCreated:      {"Task created, ready for planning", "Create detailed implementation plan with code analysis"},
	StatePlanning:     {"Planning phase in progress", "Complete and validate implementation plan"},
	StatePlanApproved: {"Plan approved, ready for implementation", "Start implementing code changes"},
	StateImplementing: {"Implementation in progress", "Continue implementing or transition to testing"},
	StateTesting:      {"Testing phase in progress", "Write and run tests, ensure all tests pass"},
	StateReviewReady:  {"Implementation complete, ready for review", "Validate task completion"},
	StateCompleted:    {"Task completed successfully", "Task is complete"},
	StateBlocked:      {"Task blocked by external dependencies", "Resolve blocking issues"},
	StateCancelled:    {"Task cancelled", "Task is cancelled"},
}

// Info returns the human-readable summary for a state.
func Info(s State) StateInfo {
	if info, ok := stateInfos[s]; ok {
		return info
	}
	return StateInfo{
		Description: fmt.Sprintf("Unknown state: %s", s),
		NextAction:  "Review task state",
	}
}

// TransitionDiagram renders the full transition table as text for LLM
// prompts.
func TransitionDiagram() string {
	order := []State{
		StateCreated, StatePlanning, StatePlanApproved, StateImplementing,
		StateReviewReady, StateCompleted, StateBlocked, StateCancelled,
	}
	var b strings.Builder
	for _, from := range order {
		targets := transitions[from]
		if len(targets) == 0 {
			fmt.Fprintf(&b, "%s: terminal state\n", from)
			continue
		}
		names := make([]string, len(targets))
		for i, s := range targets {
			names[i] = string(s)
		}
		fmt.Fprintf(&b, "%s -> %s\n", from, strings.Join(names, " | "))
	}
	return strings.TrimRight(b.String(), "\n")
}
