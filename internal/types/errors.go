package types

import "errors"

var (
	// ErrMissingField marks a record that lacks an input required by a pass.
	// The record is skipped for that pass only.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidRegion marks an unrecognized regional curve code. The default
	// curve is used instead.
	ErrInvalidRegion = errors.New("unrecognized hydrologic region")

	// ErrStoreUnavailable wraps any failure to read or write the feature store.
	// It aborts the run.
	ErrStoreUnavailable = errors.New("feature store unavailable")

	// ErrNegativeCapacity marks a capacity estimate below zero.
	ErrNegativeCapacity = errors.New("negative capacity estimate")
)
