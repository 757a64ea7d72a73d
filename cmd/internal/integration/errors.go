package integration

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("integration not found")
	ErrOrgNotFound  = errors.New("organization not found")
	ErrConflict     = errors.New("duplicate service id")
)
