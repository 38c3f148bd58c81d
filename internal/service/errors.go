package service

import "errors"

// Service errors.
var (
	// ErrBusy is returned when a scan task is already running.
	ErrBusy = errors.New("a scan is already running")

	// ErrEmptyURL is returned when the scan URL is empty.
	ErrEmptyURL = errors.New("scan requires a URL")

	// ErrUnreachable is returned when the reachability probe fails.
	ErrUnreachable = errors.New("site is not reachable")

	// ErrNoTree is returned when an operation needs a site tree and there is none.
	ErrNoTree = errors.New("no site tree available")

	// ErrTreeWithoutRoot is returned when a loaded tree has no root URL.
	ErrTreeWithoutRoot = errors.New("site tree has no root URL")
)
