package queue

import (
	"errors"
	"fmt"

	"game-soul-technology/joker/appliance-queue-server/pkg/store"
)

type Kind string

const (
	// Request rejected before touching shared state.
	KindValidation Kind = "Validation"

	// No free ticket number found within the allowed attempts.
	KindAllocationFailed Kind = "AllocationFailed"

	// Shared state store failed or timed out. Transient.
	KindStoreUnavailable Kind = "StoreUnavailable"
)

type Code string

const (
	CodeInvalidName      Code = "InvalidName"
	CodeAlreadyQueued    Code = "AlreadyQueued"
	CodeNotYourTurn      Code = "NotYourTurn"
	CodeNoActiveTicket   Code = "NoActiveTicket"
	CodeServiceClosed    Code = "ServiceClosed"
	CodeBusy             Code = "Busy"
	CodeAllocationFailed Code = "AllocationFailed"
	CodeStoreUnavailable Code = "StoreUnavailable"
)

// Error is the only error type operations return to the transport
// layer. Compare with errors.Is against the Err* values.
type Error struct {
	Code Code
	Kind Kind

	// Underlying cause, if any.
	Err error
}

var (
	ErrInvalidName      = &Error{Code: CodeInvalidName, Kind: KindValidation}
	ErrAlreadyQueued    = &Error{Code: CodeAlreadyQueued, Kind: KindValidation}
	ErrNotYourTurn      = &Error{Code: CodeNotYourTurn, Kind: KindValidation}
	ErrNoActiveTicket   = &Error{Code: CodeNoActiveTicket, Kind: KindValidation}
	ErrServiceClosed    = &Error{Code: CodeServiceClosed, Kind: KindValidation}
	ErrBusy             = &Error{Code: CodeBusy, Kind: KindValidation}
	ErrAllocationFailed = &Error{Code: CodeAllocationFailed, Kind: KindAllocationFailed}
	ErrStoreUnavailable = &Error{Code: CodeStoreUnavailable, Kind: KindStoreUnavailable}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the code of err, or an empty code for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStoreUnavailable
}

// storeError converts a store failure into the operation taxonomy.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if !errors.Is(err, store.ErrUnavailable) {
		err = fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return &Error{Code: CodeStoreUnavailable, Kind: KindStoreUnavailable, Err: err}
}
