package registry

import "errors"

// Domain-specific errors for representation operations.
var (
	// ErrNotFound is returned when a representation does not exist.
	ErrNotFound = errors.New("registry: representation not found")

	// ErrExists is returned when creating a representation whose id is
	// already registered.
	ErrExists = errors.New("registry: representation already exists")

	// ErrInvalid is returned when a representation fails validation.
	ErrInvalid = errors.New("registry: invalid representation")
)
