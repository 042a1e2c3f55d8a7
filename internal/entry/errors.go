package entry

import "errors"

// Domain errors for the entry package.
var (
	// ErrEntryNotFound is returned when an entry ID or host does not exist.
	ErrEntryNotFound = errors.New("entry: not found")

	// ErrEntryExists is returned when creating an entry for a host that
	// already has one.
	ErrEntryExists = errors.New("entry: already exists")

	// ErrInvalidEntry is returned when entry validation fails.
	ErrInvalidEntry = errors.New("entry: invalid")
)
