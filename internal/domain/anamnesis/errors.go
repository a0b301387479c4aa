package anamnesis

import (
	"errors"
	"fmt"
)

// Kind classifies the failures the anamnesis store and service can produce.
// Handlers map each kind to exactly one HTTP status; no other layer
// inspects error strings.
type Kind int

const (
	KindUnknown Kind = iota
	// KindUnauthenticated means no verified identity was presented.
	KindUnauthenticated
	// KindEmailNotVerified means the caller is authenticated but has not
	// confirmed their email address.
	KindEmailNotVerified
	// KindForbidden means the caller's role does not permit the operation
	// on this patient's record.
	KindForbidden
	// KindNotFound means the requested record or resource does not exist.
	KindNotFound
	// KindValidation means the submitted document is structurally invalid.
	KindValidation
	// KindConflict means an expected-version write lost the race to a
	// concurrent writer. Conflicts are surfaced, never retried.
	KindConflict
	// KindTransient means the store failed in a way that a later retry may
	// resolve. Automatic retries are already exhausted when this surfaces.
	KindTransient
)

// Error is the typed error for every non-conflict failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func ErrUnauthenticated() *Error {
	return newError(KindUnauthenticated, "authentication required")
}

func ErrEmailNotVerified() *Error {
	return newError(KindEmailNotVerified, "email address not verified")
}

func ErrForbidden(msg string) *Error {
	return newError(KindForbidden, msg)
}

func ErrNotFound(patientID string) *Error {
	return newError(KindNotFound, "no anamnesis record for patient "+patientID)
}

func ErrValidation(problems []string) *ValidationError {
	return &ValidationError{Problems: problems}
}

func ErrTransient(err error) *Error {
	return &Error{Kind: KindTransient, Msg: "storage temporarily unavailable", Err: err}
}

// ValidationError carries the individual problems so the handler can return
// them to the client.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid anamnesis document: %d problem(s)", len(e.Problems))
}

// ConflictError reports that an expected-version write found a different
// current version. It carries the winning state so clients can merge
// without a second round trip.
type ConflictError struct {
	ExpectedVersion string
	CurrentVersion  string
	Current         *Record
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected %s, current is %s",
		e.ExpectedVersion, e.CurrentVersion)
}

// KindOf classifies any error returned by this package.
func KindOf(err error) Kind {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return KindConflict
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
