package wizard

import "errors"

// Domain errors for the wizard package.
var (
	// ErrInvalidInput is returned when a step's input fails validation.
	ErrInvalidInput = errors.New("wizard: invalid input")

	// ErrDiscoveryFailed is returned when the controller cannot be reached
	// or its objects cannot be read.
	ErrDiscoveryFailed = errors.New("wizard: discovery failed")

	// ErrFinished is returned when submitting to a done or failed session.
	ErrFinished = errors.New("wizard: session finished")

	// ErrSessionNotFound is returned for unknown or expired session IDs.
	ErrSessionNotFound = errors.New("wizard: session not found")
)
