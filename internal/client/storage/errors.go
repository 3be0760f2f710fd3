package storage

import "errors"

// Common client storage errors
var (
	// ErrSessionNotFound indicates that no session is stored (never logged in or logged out)
	ErrSessionNotFound = errors.New("session not found")
)
