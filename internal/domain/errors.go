package domain

import "errors"

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates a rejected identifier/secret pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnavailable indicates that a backend could not be reached.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrConflict indicates a write that collides with an existing record.
	ErrConflict = errors.New("conflict")
	// ErrForbidden indicates that the backend refused the caller.
	ErrForbidden = errors.New("forbidden")
)
