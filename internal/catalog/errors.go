package catalog

import "errors"

// Domain-specific errors for the catalog package.
var (
	// ErrMissingID is returned by Normalize when a raw record carries no
	// usable resource id. The record is dropped; the batch continues.
	ErrMissingID = errors.New("catalog: record missing resource id")
)
