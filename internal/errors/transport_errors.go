package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportKind classifies a failure talking to the spreadsheet service.
type TransportKind string

const (
	TransportNotFound         TransportKind = "not_found"
	TransportPermissionDenied TransportKind = "permission_denied"
	TransportRateLimited      TransportKind = "rate_limited"
	TransportUnavailable      TransportKind = "unavailable"
)

// TransportError aborts a load cycle. The previous dataset stays in service.
type TransportError struct {
	Kind          TransportKind
	SpreadsheetID string
	Op            string
	Cause         error
}

// NewTransportError creates a transport error
func NewTransportError(kind TransportKind, spreadsheetID, op string, cause error) *TransportError {
	return &TransportError{Kind: kind, SpreadsheetID: spreadsheetID, Op: op, Cause: cause}
}

// Error implements the error interface
func (e *TransportError) Error() string {
	msg := fmt.Sprintf("[%s] %s %s", ErrTypeTransport, e.Op, e.Kind)
	if e.SpreadsheetID != "" {
		msg += fmt.Sprintf(" (spreadsheet %s)", e.SpreadsheetID)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap allows errors.Is and errors.As to reach the cause
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// UserMessage is the explanation shown to report users.
func (e *TransportError) UserMessage() string {
	switch e.Kind {
	case TransportNotFound:
		return "Spreadsheet not found (404). Check the id (the part between /d/ and /edit) and that the spreadsheet is shared with the service account as Viewer."
	case TransportPermissionDenied:
		return "Permission denied (403). Share the spreadsheet with the service account as Viewer."
	case TransportRateLimited:
		return "Spreadsheet API request limit exceeded. Wait a few minutes and try again."
	default:
		return "The spreadsheet service is unavailable. Try again later."
	}
}

// StatusCode maps the kind to an HTTP status.
func (e *TransportError) StatusCode() int {
	switch e.Kind {
	case TransportNotFound:
		return http.StatusNotFound
	case TransportPermissionDenied:
		return http.StatusForbidden
	case TransportRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusServiceUnavailable
	}
}

// AsTransport extracts a TransportError from an error chain.
func AsTransport(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
