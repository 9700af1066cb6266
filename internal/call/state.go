// Package call implements the lifecycle of one mock-interview call: the
// controller state machine, the transcript accumulator, and the two call
// variants (generate and interview).
package call

import "fmt"

// State is the lifecycle state of a call.
type State int

const (
	// StateInactive is the initial state and the state a failed start returns to.
	StateInactive State = iota
	// StateConnecting means a start was requested and has not settled yet.
	StateConnecting
	// StateActive means the voice session is live.
	StateActive
	// StateFinished is terminal. A new call needs a new Controller.
	StateFinished
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateFinished:
		return "FINISHED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// live reports whether a call in state s is still being established or running.
func (s State) live() bool {
	switch s {
	case StateConnecting, StateActive:
		return true
	case StateInactive, StateFinished:
		return false
	default:
		return false
	}
}

// Role identifies who spoke an utterance.
type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
)

// ParseRole maps a wire role to a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleSystem, RoleAssistant:
		return Role(s), true
	default:
		return "", false
	}
}

// Navigation destinations.
const (
	PathHome = "/"
)

// FeedbackPath returns the feedback page of an interview.
func FeedbackPath(interviewID string) string {
	return "/interview/" + interviewID + "/feedback"
}
