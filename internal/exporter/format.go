package exporter

import (
	"fmt"
	"strings"

	"evalreport/internal/evaluation"
)

// Download names and content types.
const (
	WorkbookFileName       = "evaluation_report_by_store.xlsx"
	EvaluatorRankingName   = "evaluator_ranking.csv"
	HourlyVolumeName       = "hourly_volume_by_store.csv"
	StoreSummaryName       = "store_summary.csv"
	WorkbookContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	CSVContentType         = "text/csv; charset=utf-8"
	EvaluatorsSheetName    = "Evaluators"
	missingStoreSheetName  = "(No store)"
	maxSheetNameLength     = 31
	invalidSheetNameRunes  = `:\/?*[]`
	fallbackSheetName      = "Sheet"
	sheetNameSuffixPattern = " (%d)"
)

var evaluatorHeaders = []string{"Evaluator", "Region", "Store", "Evaluations"}

// formatFloat formats a score with exactly 2 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return fmt.Sprintf("%d", i)
}

func fieldTitle(f evaluation.Field) string {
	switch f {
	case evaluation.FieldHourLabel:
		return "Time"
	}
	s := string(f)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
