// Package apperrors defines the error taxonomy shared by the fetch, extract,
// reconcile and store layers.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchTransient marks network or browser failures worth retrying.
	ErrFetchTransient = errors.New("fetch transient failure")
	// ErrCaseNotFound means the court register has no such case.
	ErrCaseNotFound = errors.New("case not found")
	// ErrMalformedRecord rejects a single record whose required field could not be parsed.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrReferentialViolation is a child write without a parent case row.
	ErrReferentialViolation = errors.New("referential violation")
	// ErrStoreUnavailable is fatal for a batch.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// MalformedRecordError carries the raw text of the rejected record.
type MalformedRecordError struct {
	Kind  string
	Field string
	Raw   string
}

func (e *MalformedRecordError) Error() string {
	raw := e.Raw
	if len(raw) > 120 {
		raw = raw[:120] + "..."
	}
	return fmt.Sprintf("malformed %s: missing or invalid %s in %q", e.Kind, e.Field, raw)
}

func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// Malformed builds a MalformedRecordError.
func Malformed(kind, field, raw string) error {
	return &MalformedRecordError{Kind: kind, Field: field, Raw: raw}
}

// Transient wraps err as retryable.
func Transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrFetchTransient, op, err)
}

// Reason returns the taxonomy name for err, or "Internal" for anything else.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStoreUnavailable):
		return "StoreUnavailable"
	case errors.Is(err, ErrCaseNotFound):
		return "CaseNotFound"
	case errors.Is(err, ErrMalformedRecord):
		return "MalformedRecord"
	case errors.Is(err, ErrReferentialViolation):
		return "ReferentialViolation"
	case errors.Is(err, ErrFetchTransient):
		return "FetchTransient"
	default:
		return "Internal"
	}
}
