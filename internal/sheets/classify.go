package sheets

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	apperrors "evalreport/internal/errors"
)

var quotaReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
}

// classify maps a Sheets API failure to a TransportError. Context
// cancellation passes through untouched.
func classify(err error, spreadsheetID, op string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	kind := apperrors.TransportUnavailable
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			kind = apperrors.TransportNotFound
		case http.StatusUnauthorized:
			kind = apperrors.TransportPermissionDenied
		case http.StatusForbidden:
			kind = apperrors.TransportPermissionDenied
			if isQuotaError(gerr) {
				kind = apperrors.TransportRateLimited
			}
		case http.StatusTooManyRequests:
			kind = apperrors.TransportRateLimited
		}
	}

	return apperrors.NewTransportError(kind, spreadsheetID, op, err)
}

func isQuotaError(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if quotaReasons[item.Reason] {
			return true
		}
	}
	return strings.Contains(strings.ToLower(gerr.Message), "quota")
}

// classifyFile maps a workbook open failure to a TransportError.
func classifyFile(err error, path string) error {
	kind := apperrors.TransportUnavailable
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = apperrors.TransportNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = apperrors.TransportPermissionDenied
	}
	return apperrors.NewTransportError(kind, path, "open", err)
}
