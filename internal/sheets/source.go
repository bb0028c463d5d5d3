// Package sheets reads evaluation worksheets from Google Sheets or from a
// local .xlsx workbook and hands them over as raw string grids.
package sheets

import (
	"context"
	"regexp"
	"strings"

	"evalreport/internal/evaluation"
)

// TabSource delivers every non-empty worksheet of a spreadsheet, first row
// included. Failures talking to the backend are *errors.TransportError.
type TabSource interface {
	FetchTabs(ctx context.Context, spreadsheetID string) ([]evaluation.RawTab, error)
}

var (
	_ TabSource = (*GoogleSource)(nil)
	_ TabSource = (*FileSource)(nil)
)

var spreadsheetURLPattern = regexp.MustCompile(`/d/([a-zA-Z0-9-_]+)`)

// NormalizeSpreadsheetID extracts the id from a full spreadsheet URL.
// Anything else is returned trimmed.
func NormalizeSpreadsheetID(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := spreadsheetURLPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

// HeaderOf returns the first row of the first tab, or nil.
func HeaderOf(tabs []evaluation.RawTab) []string {
	for _, tab := range tabs {
		if len(tab.Rows) > 0 {
			return tab.Rows[0]
		}
	}
	return nil
}

// TabNames lists tab titles in source order.
func TabNames(tabs []evaluation.RawTab) []string {
	names := make([]string, len(tabs))
	for i, tab := range tabs {
		names[i] = tab.Name
	}
	return names
}
