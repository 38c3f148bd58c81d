package tools

import "errors"

// Registry errors.
var (
	// ErrToolNotFound is returned when no tool has the requested name.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolNotCallable is returned when a tool exists but has no handler.
	ErrToolNotCallable = errors.New("tool is not callable")

	// ErrDuplicateTool is returned when two tools share a name.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrInvalidArguments is returned when call arguments do not decode.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)
