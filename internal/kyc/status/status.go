// Package status owns the per-connection KYC lifecycle. Every status change
// anywhere in the codebase goes through Transition; no caller writes a status
// value directly.
package status

import (
	"fmt"

	dErrors "onboard/pkg/domain-errors"
)

// Status is the per-connection KYC state. It progresses independently per
// external system.
type Status string

const (
	Unverified          Status = "UNVERIFIED"
	BasicDetailsEntered Status = "BASIC_DETAILS_ENTERED"
	Initiated           Status = "KYC_INITIATED"
	Submitted           Status = "KYC_SUBMITTED"
	Verified            Status = "KYC_VERIFIED"
	Rejected            Status = "REJECTED"
)

// statusOrder gives each known status a rank; used for membership checks and
// for detecting regressions during sync.
var statusOrder = map[Status]int{
	Unverified:          0,
	BasicDetailsEntered: 1,
	Initiated:           2,
	Submitted:           3,
	Verified:            4,
	Rejected:            5,
}

// Parse validates and returns a Status.
func Parse(s string) (Status, error) {
	st := Status(s)
	if _, ok := statusOrder[st]; !ok {
		return "", fmt.Errorf("unknown kyc status: %q", s)
	}
	return st, nil
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the status is a resting end state.
func (s Status) IsTerminal() bool {
	return s == Verified
}

// Before reports whether s ranks strictly below other on the lifecycle.
// Rejected ranks above everything; it never reads as a regression.
func (s Status) Before(other Status) bool {
	return statusOrder[s] < statusOrder[other]
}

// Event is a lifecycle trigger.
type Event string

const (
	EventBasicDetails Event = "basic_details"
	EventInitiate     Event = "initiate"
	EventSubmit       Event = "submit"
	EventVerify       Event = "verify"
	EventReject       Event = "reject"
	// EventReset moves a rejected connection back into the flow for a retry.
	EventReset Event = "reset"
)

// transitions defines the only legal moves. Missing entries are illegal.
var transitions = map[Status]map[Event]Status{
	Unverified: {
		EventBasicDetails: BasicDetailsEntered,
	},
	BasicDetailsEntered: {
		EventBasicDetails: BasicDetailsEntered,
		EventInitiate:     Initiated,
	},
	Initiated: {
		EventSubmit: Submitted,
		EventReject: Rejected,
	},
	Submitted: {
		EventVerify: Verified,
		EventReject: Rejected,
	},
	Rejected: {
		EventReset: BasicDetailsEntered,
	},
}

// Transition returns the next status for (current, ev), or a validation error
// when the move is illegal. Pure, no side effects.
func Transition(current Status, ev Event) (Status, error) {
	if _, ok := statusOrder[current]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown kyc status %q", current)
	}
	next, ok := transitions[current][ev]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeValidation,
			"illegal kyc transition: %s on %s", ev, current)
	}
	return next, nil
}
