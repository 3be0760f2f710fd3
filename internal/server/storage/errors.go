package storage

import "errors"

// Common storage errors
var (
	// ErrAccountNotFound indicates that account was not found in storage
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists indicates that account with this public key already exists
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrNodeAlreadyRegistered indicates that account already has a node credential
	ErrNodeAlreadyRegistered = errors.New("node already registered")
)
