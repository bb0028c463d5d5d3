package evaluation

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order; every layout is day-first.
var dateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"02-01-2006",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate parses a day-first timestamp. It returns nil for blank or
// unrecognized input.
func ParseDate(raw string, loc *time.Location) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.In(loc)
		return &t
	}
	return nil
}

// ParseScore coerces a score cell to a float. Blank, non-numeric and
// non-finite values become 0.
func ParseScore(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		v, err = strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil {
			return 0
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// CleanCollaborator trims a collaborator name. ok is false when the row must
// be dropped.
func CleanCollaborator(raw string) (name string, ok bool) {
	name = strings.TrimSpace(raw)
	switch strings.ToLower(name) {
	case "", "nan", "none":
		return "", false
	}
	return name, true
}

// NormalizeTab converts the data rows of tab into records. Store, region and
// the derived time fields are left for Enrich.
func NormalizeTab(tab RawTab, cols ResolvedColumns, loc *time.Location) []Record {
	if len(tab.Rows) < 2 {
		return nil
	}

	records := make([]Record, 0, len(tab.Rows)-1)
	for _, row := range tab.Rows[1:] {
		if blankRow(row) {
			continue
		}
		collaborator, ok := CleanCollaborator(cell(row, cols.Collaborator))
		if !ok {
			continue
		}
		records = append(records, Record{
			Date:         ParseDate(cell(row, cols.Date), loc),
			Sector:       strings.TrimSpace(cell(row, cols.Sector)),
			Collaborator: collaborator,
			Evaluator:    strings.TrimSpace(cell(row, cols.Evaluator)),
			Speed:        ParseScore(cell(row, cols.Speed)),
			Service:      ParseScore(cell(row, cols.Service)),
			Quality:      ParseScore(cell(row, cols.Quality)),
			Helpfulness:  ParseScore(cell(row, cols.Helpfulness)),
		})
	}
	return records
}

// cell returns row[idx], or "" for short rows.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
