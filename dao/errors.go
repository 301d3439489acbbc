package dao

import (
	"errors"
	"fmt"
)

// Database errors
var (
	// ErrNotFound is returned when no row exists for the given identifier.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for nil ids, duplicate subjects and
	// time queries no version can satisfy.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState is returned when an operation is not legal for the
	// row's current workflow state.
	ErrInvalidState = errors.New("invalid state")
	// ErrInconsistent signals a storage invariant violation, such as a
	// versioned row with no owning contribution.
	ErrInconsistent = errors.New("inconsistent storage state")
	// ErrCorruptHierarchy signals a cycle or multi-parent edge detected
	// while walking the folder hierarchy.
	ErrCorruptHierarchy = errors.New("corrupt folder hierarchy")
	// ErrUnsupported is returned by disabled legacy entry points.
	ErrUnsupported = errors.New("operation not supported")

	// ErrNoVersionAtTime is returned when no version existed at or before
	// the requested time.
	ErrNoVersionAtTime = fmt.Errorf("%w: no version at or before requested time", ErrInvalidArgument)
	// ErrDuplicateSubject is returned when the subject party is already
	// bound to an EHR.
	ErrDuplicateSubject = fmt.Errorf("%w: subject party is already bound to an ehr", ErrInvalidArgument)

	// ErrMissingID is returned when a required id field was not supplied.
	ErrMissingID = fmt.Errorf("%w: missing id field", ErrInvalidArgument)
)
