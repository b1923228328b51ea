package journal

import "errors"

var (
	// ErrInvalidDirection is returned when an entry's direction is neither
	// upstream nor downstream.
	ErrInvalidDirection = errors.New("journal: invalid direction")

	// ErrMissingKind is returned when an entry has no frame kind.
	ErrMissingKind = errors.New("journal: kind is required")
)
