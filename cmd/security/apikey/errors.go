package apikey

import "errors"

var (
	// ErrMalformedKey is returned when a presented key does not have the
	// fg_<org-id>.<secret> shape.
	ErrMalformedKey = errors.New("malformed api key")

	// ErrInvalidHash is returned for malformed or unsupported stored hashes.
	ErrInvalidHash = errors.New("invalid api key hash")
)
