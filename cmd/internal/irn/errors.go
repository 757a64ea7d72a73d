package irn

import "errors"

var (
	// ErrInvalidInput is returned for malformed components, unknown status
	// values, and out-of-range arguments. Always caller-fixable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when an IRN value is already held by an
	// unrelated invoice. Re-generation for the same invoice is not a
	// conflict; it returns the stored record.
	ErrConflict = errors.New("irn conflict")

	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("irn not found")

	// ErrExpired is returned when a status change is attempted on a record
	// past its validity window. An expired IRN can only be re-marked expired.
	ErrExpired = errors.New("irn expired")
)
