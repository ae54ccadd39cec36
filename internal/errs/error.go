package errs

import (
	"errors"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrNoAvailableCopy          = errors.New("no available copies of this book")
	ErrQuotaExceeded            = errors.New("member has reached maximum active loans")
	ErrDuplicateReservation     = errors.New("member already has a pending reservation for this book")
	ErrNoCapacityForReservation = errors.New("no copies available for reservation")
	ErrInvalidStateTransition   = errors.New("invalid state transition")

	// ErrInconsistentState signals a broken invariant in persisted state,
	// e.g. more than one ACTIVE loan for the same (book, member) pair.
	ErrInconsistentState = errors.New("inconsistent circulation state")
)
