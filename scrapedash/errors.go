package scrapedash

import "errors"

// Sentinel errors. Handlers map these to HTTP statuses with errors.Is.
var (
	// ErrTaskNotFound means the requested task ID does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidInput means the request was malformed or failed validation.
	ErrInvalidInput = errors.New("invalid input")
)
