package evaluation

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ColumnMap assigns a spreadsheet column letter to every semantic field. The
// same map applies to every tab.
type ColumnMap struct {
	Date         string `yaml:"date" json:"date"`
	Sector       string `yaml:"sector" json:"sector"`
	Collaborator string `yaml:"collaborator" json:"collaborator"`
	Speed        string `yaml:"speed" json:"speed"`
	Service      string `yaml:"service" json:"service"`
	Quality      string `yaml:"quality" json:"quality"`
	Helpfulness  string `yaml:"helpfulness" json:"helpfulness"`
	Evaluator    string `yaml:"evaluator" json:"evaluator"`
}

// DefaultColumnMap returns the layout used by the store evaluation forms.
func DefaultColumnMap() ColumnMap {
	return ColumnMap{
		Date:         "A",
		Sector:       "B",
		Collaborator: "C",
		Speed:        "D",
		Service:      "F",
		Quality:      "H",
		Helpfulness:  "J",
		Evaluator:    "M",
	}
}

type columnSpec struct {
	field  Field
	letter string
	target *int
}

func (m ColumnMap) specs(rc *ResolvedColumns) []columnSpec {
	return []columnSpec{
		{FieldDate, m.Date, &rc.Date},
		{FieldSector, m.Sector, &rc.Sector},
		{FieldCollaborator, m.Collaborator, &rc.Collaborator},
		{FieldSpeed, m.Speed, &rc.Speed},
		{FieldService, m.Service, &rc.Service},
		{FieldQuality, m.Quality, &rc.Quality},
		{FieldHelpfulness, m.Helpfulness, &rc.Helpfulness},
		{FieldEvaluator, m.Evaluator, &rc.Evaluator},
	}
}

// Validate checks every letter converts to a column index.
func (m ColumnMap) Validate() error {
	var rc ResolvedColumns
	for _, spec := range m.specs(&rc) {
		if _, err := ColumnIndex(spec.letter); err != nil {
			return fmt.Errorf("column for %s: %w", spec.field, err)
		}
	}
	return nil
}

// ResolvedColumns holds zero-based column indexes for one tab.
type ResolvedColumns struct {
	Date         int
	Sector       int
	Collaborator int
	Speed        int
	Service      int
	Quality      int
	Helpfulness  int
	Evaluator    int

	// Header is the tab's normalized header row, padded to the tab width.
	Header []string
}

// ColumnMappingError reports a tab whose layout cannot satisfy the column map.
type ColumnMappingError struct {
	Tab    string
	Field  Field
	Letter string
	Index  int
	Width  int
	Err    error
}

func (e *ColumnMappingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tab %q: column %s (%s): %v", e.Tab, e.Letter, e.Field, e.Err)
	}
	return fmt.Sprintf("tab %q: column %s (%s) is at position %d but the tab has %d columns",
		e.Tab, e.Letter, e.Field, e.Index+1, e.Width)
}

func (e *ColumnMappingError) Unwrap() error {
	return e.Err
}

// ColumnIndex converts a column letter to a zero-based index: A→0, B→1, AA→26.
func ColumnIndex(letter string) (int, error) {
	n, err := excelize.ColumnNameToNumber(strings.TrimSpace(letter))
	if err != nil {
		return 0, err
	}
	return n - 1, nil
}

// ResolveColumns maps every semantic field of m onto tab. The tab is as wide
// as its widest row, since sources drop trailing blank cells per row. It fails
// when a required column lies beyond that width.
func ResolveColumns(tab RawTab, m ColumnMap) (ResolvedColumns, error) {
	width := 0
	for _, row := range tab.Rows {
		width = max(width, len(row))
	}

	rc := ResolvedColumns{}
	if len(tab.Rows) > 0 {
		rc.Header = normalizeHeader(tab.Rows[0], width)
	}

	for _, spec := range m.specs(&rc) {
		idx, err := ColumnIndex(spec.letter)
		if err != nil {
			return ResolvedColumns{}, &ColumnMappingError{
				Tab: tab.Name, Field: spec.field, Letter: spec.letter, Width: width, Err: err,
			}
		}
		if idx >= width {
			return ResolvedColumns{}, &ColumnMappingError{
				Tab: tab.Name, Field: spec.field, Letter: spec.letter, Index: idx, Width: width,
			}
		}
		*spec.target = idx
	}
	return rc, nil
}

// normalizeHeader strips the UTF-8 BOM and surrounding whitespace from header
// cells and pads the row to width.
func normalizeHeader(row []string, width int) []string {
	out := make([]string, width)
	for i, cell := range row {
		out[i] = strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff"))
	}
	return out
}
