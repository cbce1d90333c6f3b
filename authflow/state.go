package authflow

import "fmt"

// Flow identifies one of the four entry points.
type Flow int

const (
	FlowLogin Flow = iota
	FlowSignup
	FlowSSOInitiation
	FlowSSOVerification
)

var flowNames = map[Flow]string{
	FlowLogin:           "login",
	FlowSignup:          "signup",
	FlowSSOInitiation:   "sso_initiation",
	FlowSSOVerification: "sso_verification",
}

func (f Flow) String() string {
	if name, ok := flowNames[f]; ok {
		return name
	}
	return fmt.Sprintf("flow(%d)", int(f))
}

// Flows lists every flow, in declaration order.
func Flows() []Flow {
	return []Flow{FlowLogin, FlowSignup, FlowSSOInitiation, FlowSSOVerification}
}

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateDomainCheck
	StateAuthenticated
	StateFailed
	StateAwaitingConfirmation
	StateComplete
	StateCompleteManualLogin
	StateRejected
	StateAwaitingVerification
)

var stateNames = map[State]string{
	StateIdle:                 "idle",
	StateSubmitting:           "submitting",
	StateDomainCheck:          "domain_check",
	StateAuthenticated:        "authenticated",
	StateFailed:               "failed",
	StateAwaitingConfirmation: "awaiting_confirmation",
	StateComplete:             "complete",
	StateCompleteManualLogin:  "complete_manual_login",
	StateRejected:             "rejected",
	StateAwaitingVerification: "awaiting_verification",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether a flow rests in s until the user acts again.
func (s State) Terminal() bool {
	switch s {
	case StateSubmitting, StateDomainCheck, StateComplete:
		return false
	default:
		return true
	}
}
