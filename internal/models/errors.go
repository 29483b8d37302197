package models

import "errors"

// Common catalog errors.
var (
	// ErrDuplicateID indicates an object insert collided with an existing
	// object ID.
	ErrDuplicateID = errors.New("duplicate object id")

	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrObjectIDRequired indicates a required object ID field is empty.
	ErrObjectIDRequired = errors.New("object_id is required")

	// ErrClassRequired indicates a required class field is empty.
	ErrClassRequired = errors.New("class is required")
)
