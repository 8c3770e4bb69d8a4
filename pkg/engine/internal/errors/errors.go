// Package errors holds the sentinel errors shared across the engine.
package errors

import "errors"

var (
	// ErrUnsupportedNode is returned when a plan node has no built-in operator
	// and no registered operator factory handles it.
	ErrUnsupportedNode = errors.New("unsupported plan node")
	// ErrInvalidPlan is returned when a plan cannot be compiled as written.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrNotFound is returned when a task-owned resource is looked up before
	// it was created.
	ErrNotFound = errors.New("not found")
)
