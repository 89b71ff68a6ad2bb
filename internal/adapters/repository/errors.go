package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrExists         = errors.New("already exists")
	ErrConflict       = errors.New("concurrent update conflict")
	ErrUnknownDriver  = errors.New("unknown store driver")
	ErrInvalidPayload = errors.New("invalid stored payload")
)
