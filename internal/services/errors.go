package services

import "errors"

// Report service errors
var (
	// ErrNoDataset is returned when nothing has been loaded yet and the
	// current load failed.
	ErrNoDataset = errors.New("no evaluation data loaded")

	// ErrNoAccess is returned when a request carries no session.
	ErrNoAccess = errors.New("no session for report request")
)
