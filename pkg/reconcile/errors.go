package reconcile

import (
	"errors"
	"fmt"

	"github.com/daviddao/playspace/pkg/clock"
)

// Error is a fatal reconciliation failure. None of these are retryable: the
// caller either fixed its log or resyncs the whole log from the remote
// store.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Component is the component involved, if any.
	Component int64

	// Stamp is the event that triggered the failure.
	Stamp clock.ID
}

// Code categorizes reconciliation errors.
type Code string

const (
	// CodeAppendOnlyViolation: events present in the prior log are missing
	// from the next one.
	CodeAppendOnlyViolation Code = "APPEND_ONLY_VIOLATION"

	// CodeDanglingReference: a grab, drag or drop targets a component no
	// Create has introduced.
	CodeDanglingReference Code = "DANGLING_REFERENCE"

	// CodeDuplicateCreate: two Creates for one component disagree on
	// where it starts.
	CodeDuplicateCreate Code = "DUPLICATE_CREATE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (component=%d, stamp=%s)", e.Code, e.Message, e.Component, e.Stamp)
}

// IsAppendOnlyViolation reports whether err is an append-only violation.
func IsAppendOnlyViolation(err error) bool { return hasCode(err, CodeAppendOnlyViolation) }

// IsDanglingReference reports whether err is a dangling reference.
func IsDanglingReference(err error) bool { return hasCode(err, CodeDanglingReference) }

// IsDuplicateCreate reports whether err is a conflicting duplicate Create.
func IsDuplicateCreate(err error) bool { return hasCode(err, CodeDuplicateCreate) }

func hasCode(err error, code Code) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func appendOnlyViolation(stamp clock.ID, missing int) *Error {
	return &Error{
		Code:    CodeAppendOnlyViolation,
		Message: fmt.Sprintf("%d event(s) were removed from the log", missing),
		Stamp:   stamp,
	}
}

func danglingReference(verb string, component int64, stamp clock.ID) *Error {
	return &Error{
		Code:      CodeDanglingReference,
		Message:   fmt.Sprintf("component was %s but did not yet exist", verb),
		Component: component,
		Stamp:     stamp,
	}
}

func duplicateCreate(component int64, stamp clock.ID) *Error {
	return &Error{
		Code:      CodeDuplicateCreate,
		Message:   "component was created twice at different positions",
		Component: component,
		Stamp:     stamp,
	}
}
