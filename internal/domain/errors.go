package domain

import "errors"

var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned for lifecycle or board moves that are not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)
