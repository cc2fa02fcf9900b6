package meter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// StatusClientClosedRequest is recorded when the caller went away mid-operation.
const StatusClientClosedRequest = 499

// State is the accounting state of a single guarded request.
//
//	Unchecked -> AdmissionFailed            (no account)
//	Unchecked -> CapacityRejected           (no capacity or failed check)
//	Unchecked -> Executing -> Recorded      (operation ran, outcome recorded)
type State int

const (
	StateUnchecked State = iota
	StateAdmissionFailed
	StateCapacityRejected
	StateExecuting
	StateRecorded
)

func (s State) String() string {
	switch s {
	case StateUnchecked:
		return "unchecked"
	case StateAdmissionFailed:
		return "admission_failed"
	case StateCapacityRejected:
		return "capacity_rejected"
	case StateExecuting:
		return "executing"
	case StateRecorded:
		return "recorded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateAdmissionFailed || s == StateCapacityRejected || s == StateRecorded
}

// Classify returns the status code to record for an operation that
// returned status and err. This is a PURE function.
//
// Business outcomes record a success status (see RecordedStatus);
// cancellation records 499;
// an expired deadline records 504; any other fault records 500.
func Classify(status int, err error) int {
	if err == nil {
		if status == 0 {
			return http.StatusOK
		}
		return status
	}

	var be *BusinessError
	switch {
	case errors.As(err, &be):
		return be.RecordedStatus()
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// FromPanic converts a recovered panic value into an error so it can be
// classified. Error values are returned unchanged.
func FromPanic(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", v)
}

// RejectionReason names why a request was turned away, for metrics and logs.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrNotProvisioned):
		return "not_provisioned"
	case errors.Is(err, ErrNoCapacity):
		return "no_capacity"
	case errors.Is(err, ErrPersistence):
		return "persistence_failure"
	default:
		return "other"
	}
}
