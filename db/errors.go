package db

import "errors"

// Sentinel errors returned by every DataManager implementation.
// Callers match them with errors.Is; the wrapped message carries the detail.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateMovie     = errors.New("movie already exists")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidFilter      = errors.New("invalid filter")
)
