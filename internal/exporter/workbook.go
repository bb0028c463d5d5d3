package exporter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"evalreport/internal/evaluation"
)

var storeSheetColumns = []struct {
	title string
	width float64
}{
	{"Collaborator", 36},
	{"Region", 10},
	{"Store", 18},
	{"Sector", 20},
	{"Speed", 12},
	{"Service", 12},
	{"Quality", 12},
	{"Helpfulness", 12},
	{"Evaluations", 12},
	{"Overall", 12},
}

// workbookStyles are the cell styles shared by every sheet.
type workbookStyles struct {
	header int
	text   int
	score  int
	count  int
}

// WriteWorkbook writes the per-store report for records to w.
func WriteWorkbook(w io.Writer, records []evaluation.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newWorkbookStyles(f)
	if err != nil {
		return err
	}

	names := newSheetNamer(EvaluatorsSheetName)
	first := true
	addSheet := func(name string) error {
		if first {
			first = false
			return f.SetSheetName(f.GetSheetName(0), name)
		}
		_, err := f.NewSheet(name)
		return err
	}

	for _, store := range storeSummaries(records) {
		sheet := names.next(store.name)
		if err := addSheet(sheet); err != nil {
			return fmt.Errorf("failed to add sheet %q: %w", sheet, err)
		}
		if err := writeStoreSheet(f, sheet, store.rows, styles); err != nil {
			return err
		}
	}

	if err := addSheet(EvaluatorsSheetName); err != nil {
		return fmt.Errorf("failed to add sheet %q: %w", EvaluatorsSheetName, err)
	}
	if err := writeEvaluatorSheet(f, EvaluatorsSheetName, evaluation.EvaluatorRanking(records), styles); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type storeSummary struct {
	name string
	rows []evaluation.SummaryRow
}

// storeSummaries splits the person summary by store, stores sorted by name
// and rows kept in overall-descending order.
func storeSummaries(records []evaluation.Record) []storeSummary {
	byStore := make(map[string][]evaluation.SummaryRow)
	for _, row := range evaluation.Summarize(records, evaluation.PersonGrouping) {
		key := row.Key(evaluation.FieldStore)
		name := key.Value
		if key.Null || name == "" {
			name = missingStoreSheetName
		}
		byStore[name] = append(byStore[name], row)
	}

	out := make([]storeSummary, 0, len(byStore))
	for name, rows := range byStore {
		out = append(out, storeSummary{name: name, rows: rows})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func newWorkbookStyles(f *excelize.File) (workbookStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}

	var s workbookStyles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "000000"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"B7B7B7"}, Pattern: 1},
		Alignment: center,
		Border:    border,
	}); err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}
	if s.text, err = f.NewStyle(&excelize.Style{Alignment: center, Border: border}); err != nil {
		return s, fmt.Errorf("failed to create text style: %w", err)
	}
	// built-in number formats: 2 is "0.00", 1 is "0"
	if s.score, err = f.NewStyle(&excelize.Style{NumFmt: 2, Alignment: center, Border: border}); err != nil {
		return s, fmt.Errorf("failed to create score style: %w", err)
	}
	if s.count, err = f.NewStyle(&excelize.Style{NumFmt: 1, Alignment: center, Border: border}); err != nil {
		return s, fmt.Errorf("failed to create count style: %w", err)
	}
	return s, nil
}

func writeStoreSheet(f *excelize.File, sheet string, rows []evaluation.SummaryRow, styles workbookStyles) error {
	header := make([]interface{}, len(storeSheetColumns))
	for i, c := range storeSheetColumns {
		header[i] = c.title
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, c.width); err != nil {
			return err
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %q: %w", sheet, err)
	}

	for i, r := range rows {
		line := []interface{}{
			r.Key(evaluation.FieldCollaborator).Value,
			r.Key(evaluation.FieldRegion).Value,
			r.Key(evaluation.FieldStore).Value,
			r.Key(evaluation.FieldSector).Value,
			r.Speed, r.Service, r.Quality, r.Helpfulness,
			r.Count,
			r.Overall,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return fmt.Errorf("failed to write row %d of %q: %w", i+2, sheet, err)
		}
	}

	last := len(rows) + 1
	if err := styleTable(f, sheet, len(storeSheetColumns), last, styles); err != nil {
		return err
	}
	if len(rows) > 0 {
		if err := f.SetCellStyle(sheet, "E2", fmt.Sprintf("H%d", last), styles.score); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "I2", fmt.Sprintf("I%d", last), styles.count); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "J2", fmt.Sprintf("J%d", last), styles.score); err != nil {
			return err
		}
		if err := f.SetConditionalFormat(sheet, fmt.Sprintf("J2:J%d", last), []excelize.ConditionalFormatOptions{{
			Type:     "3_color_scale",
			Criteria: "=",
			MinType:  "min",
			MidType:  "percentile",
			MidValue: "50",
			MaxType:  "max",
			MinColor: "#FCA5A5",
			MidColor: "#FDE68A",
			MaxColor: "#86EFAC",
		}}); err != nil {
			return fmt.Errorf("failed to format overall column of %q: %w", sheet, err)
		}
	}
	return nil
}

func writeEvaluatorSheet(f *excelize.File, sheet string, rows []evaluation.CountRow, styles workbookStyles) error {
	header := make([]interface{}, len(evaluatorHeaders))
	for i, title := range evaluatorHeaders {
		header[i] = title
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := 18.0
		if title == "Evaluator" || title == "Store" {
			width = 24
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %q: %w", sheet, err)
	}

	for i, r := range rows {
		line := []interface{}{
			r.Key(evaluation.FieldEvaluator).Value,
			r.Key(evaluation.FieldRegion).Value,
			r.Key(evaluation.FieldStore).Value,
			r.Count,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return fmt.Errorf("failed to write row %d of %q: %w", i+2, sheet, err)
		}
	}

	last := len(rows) + 1
	if err := styleTable(f, sheet, len(evaluatorHeaders), last, styles); err != nil {
		return err
	}
	if len(rows) > 0 {
		return f.SetCellStyle(sheet, "D2", fmt.Sprintf("D%d", last), styles.count)
	}
	return nil
}

// styleTable applies the header and body styles, the auto filter and a
// frozen header row to a table spanning A1 to (cols, lastRow).
func styleTable(f *excelize.File, sheet string, cols, lastRow int, styles workbookStyles) error {
	lastCol, _ := excelize.ColumnNumberToName(cols)

	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", styles.header); err != nil {
		return err
	}
	if lastRow > 1 {
		if err := f.SetCellStyle(sheet, "A2", fmt.Sprintf("%s%d", lastCol, lastRow), styles.text); err != nil {
			return err
		}
	}
	if err := f.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, lastRow), nil); err != nil {
		return fmt.Errorf("failed to add auto filter to %q: %w", sheet, err)
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// sheetNamer turns store names into valid, unique sheet names.
type sheetNamer struct {
	used map[string]bool
}

func newSheetNamer(reserved ...string) *sheetNamer {
	n := &sheetNamer{used: make(map[string]bool)}
	for _, r := range reserved {
		n.used[strings.ToLower(r)] = true
	}
	return n
}

func (n *sheetNamer) next(name string) string {
	base := SanitizeSheetName(name)
	candidate := base
	for i := 2; n.used[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf(sheetNameSuffixPattern, i)
		candidate = truncateRunes(base, maxSheetNameLength-utf8.RuneCountInString(suffix)) + suffix
	}
	n.used[strings.ToLower(candidate)] = true
	return candidate
}

// SanitizeSheetName applies Excel's sheet naming rules: no :\/?*[]
// characters, no leading or trailing apostrophe, at most 31 characters,
// never empty.
func SanitizeSheetName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidSheetNameRunes, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	cleaned = strings.Trim(cleaned, "'")
	cleaned = strings.TrimSpace(truncateRunes(cleaned, maxSheetNameLength))
	if cleaned == "" {
		return fallbackSheetName
	}
	return cleaned
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
