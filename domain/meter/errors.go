// Package meter holds the metering error taxonomy, the per-request
// accounting states and the policy that maps an operation outcome to the
// status code recorded in the usage log.
package meter

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotProvisioned means no account exists yet; nothing can be metered.
	ErrNotProvisioned = errors.New("no account provisioned")

	// ErrNoCapacity means every ledger entry of the account is fully utilized.
	ErrNoCapacity = errors.New("no remaining request capacity")

	// ErrInvalidConfiguration covers unusable engine or connection settings.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrRaceOnCharge is returned by a store when the selected entry changed
	// between selection and increment. Callers retry it a bounded number of times.
	ErrRaceOnCharge = errors.New("ledger entry changed during charge")

	// ErrPersistence matches every PersistenceError via errors.Is.
	ErrPersistence = errors.New("persistence failure")
)

// PersistenceError wraps a storage failure raised while admitting or
// recording a request. A request that hits one is rejected, never served free.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Persistence wraps err as a PersistenceError. It returns nil for a nil err.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// BusinessError marks an expected domain outcome (validation failure, not
// found, conflict). It is logged as a success: the caller may still answer
// with Status, but the usage log never counts it as an error.
type BusinessError struct {
	Err    error
	Status int
}

// Business wraps err as a business outcome. A zero status records 200.
func Business(err error, status int) *BusinessError {
	return &BusinessError{Err: err, Status: status}
}

func (e *BusinessError) Error() string {
	if e.Err == nil {
		return "business outcome"
	}
	return e.Err.Error()
}

func (e *BusinessError) Unwrap() error { return e.Err }

// StatusCode returns the status the caller answers with.
func (e *BusinessError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusOK
	}
	return e.Status
}

// RecordedStatus returns the status written to the usage log: the declared
// status when it is below 400, otherwise 200.
func (e *BusinessError) RecordedStatus() int {
	if s := e.StatusCode(); s < http.StatusBadRequest {
		return s
	}
	return http.StatusOK
}
