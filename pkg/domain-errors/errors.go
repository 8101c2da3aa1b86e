// Package domainerrors defines the coded error type used across the kernel.
//
// Every kernel-level failure is a value of *Error carrying a stable Code.
// Nothing in the kernel panics for control flow; unexpected store failures
// are wrapped with CodeInternal at the outermost call of each operation.
// Transport layers map codes to status classes; the kernel does not.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. Codes are part of the public contract and
// must remain stable; tests and transports match on them.
type Code string

const (
	// Authority errors. Checked before any store access, always fail closed.
	CodeAuthorityMissing Code = "AUTHORITY_MISSING"
	CodeAuthorityInvalid Code = "AUTHORITY_INVALID"

	// Validation errors.
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeContentRequired Code = "CONTENT_REQUIRED"

	// Not-found errors are per entity so callers can distinguish them without
	// parsing messages. A record under another tenant reports the same code
	// as a record that does not exist at all.
	CodePatientNotFound      Code = "PATIENT_NOT_FOUND"
	CodePractitionerNotFound Code = "PRACTITIONER_NOT_FOUND"
	CodeEncounterNotFound    Code = "ENCOUNTER_NOT_FOUND"
	CodeClinicalNoteNotFound Code = "CLINICAL_NOTE_NOT_FOUND"

	// CodeTenantMismatch is only produced at the transport boundary, where a
	// mismatch between token and requested tenant is explicitly detectable.
	// In-kernel lookups never surface it; they report not-found instead.
	CodeTenantMismatch Code = "TENANT_MISMATCH"

	// State-conflict errors.
	CodeConflict         Code = "CONFLICT"
	CodeAlreadyFinalized Code = "ALREADY_FINALIZED"

	// CodeInternal covers persistence and other system failures surfaced as a
	// safe generic result.
	CodeInternal Code = "INTERNAL"
)

// Error is a coded domain error. It may wrap an underlying cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. The cause stays
// reachable through errors.Is/As but is never part of the caller-visible
// message contract.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal when err is not a
// coded error. Returning a safe default keeps transport mapping fail-closed.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
