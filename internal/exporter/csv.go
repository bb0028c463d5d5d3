package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"evalreport/internal/evaluation"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes headers and records to w.
func WriteCSV(w io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)

	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteSimpleCSV writes a BOM-prefixed CSV with headers and records
func WriteSimpleCSV(w io.Writer, headers []string, records [][]string) error {
	return WriteCSV(w, WriteOptions{
		Headers:   headers,
		Records:   records,
		BOMPrefix: true,
	})
}

// WriteEvaluatorRankingCSV writes the evaluator ranking, busiest first.
func WriteEvaluatorRankingCSV(w io.Writer, records []evaluation.Record) error {
	rows := evaluation.EvaluatorRanking(records)
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.Key(evaluation.FieldEvaluator).Value,
			r.Key(evaluation.FieldRegion).Value,
			r.Key(evaluation.FieldStore).Value,
			formatInt(int64(r.Count)),
		}
	}
	return WriteSimpleCSV(w, evaluatorHeaders, out)
}

// WriteHourlyVolumeCSV writes evaluation counts per region, store and hour.
func WriteHourlyVolumeCSV(w io.Writer, records []evaluation.Record) error {
	rows := evaluation.HourlyVolume(records)
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.Key(evaluation.FieldRegion).Value,
			r.Key(evaluation.FieldStore).Value,
			r.Key(evaluation.FieldHour).Value,
			formatInt(int64(r.Count)),
		}
	}
	return WriteSimpleCSV(w, []string{"Region", "Store", "Hour", "Evaluations"}, out)
}

// WriteSummaryCSV writes a grouped summary with one column per key field
// followed by the score means.
func WriteSummaryCSV(w io.Writer, rows []evaluation.SummaryRow, keys []evaluation.Field) error {
	headers := make([]string, 0, len(keys)+6)
	for _, k := range keys {
		headers = append(headers, fieldTitle(k))
	}
	headers = append(headers, "Speed", "Service", "Quality", "Helpfulness", "Evaluations", "Overall")

	out := make([][]string, len(rows))
	for i, r := range rows {
		line := make([]string, 0, len(headers))
		for _, k := range keys {
			line = append(line, r.Key(k).Value)
		}
		line = append(line,
			formatFloat(r.Speed),
			formatFloat(r.Service),
			formatFloat(r.Quality),
			formatFloat(r.Helpfulness),
			formatInt(int64(r.Count)),
			formatFloat(r.Overall),
		)
		out[i] = line
	}
	return WriteSimpleCSV(w, headers, out)
}
