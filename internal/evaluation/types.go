package evaluation

import (
	"strconv"
	"time"
)

// RawTab is one worksheet as delivered by a tab source: its title and the
// grid of cell strings. The first row is the header.
type RawTab struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// Field names a record attribute usable as a grouping key.
type Field string

const (
	FieldDate         Field = "date"
	FieldDay          Field = "day"
	FieldHourLabel    Field = "hour_label"
	FieldHour         Field = "hour"
	FieldSector       Field = "sector"
	FieldCollaborator Field = "collaborator"
	FieldEvaluator    Field = "evaluator"
	FieldStore        Field = "store"
	FieldRegion       Field = "region"
	FieldSpeed        Field = "speed"
	FieldService      Field = "service"
	FieldQuality      Field = "quality"
	FieldHelpfulness  Field = "helpfulness"
)

// Standard groupings used by the report views.
var (
	PersonGrouping  = []Field{FieldCollaborator, FieldRegion, FieldStore, FieldSector}
	SectorGrouping  = []Field{FieldSector, FieldRegion, FieldStore}
	StoreGrouping   = []Field{FieldRegion, FieldStore}
	RegionGrouping  = []Field{FieldRegion}
	OverallGrouping = []Field{}
)

// Record is the canonical evaluation row.
type Record struct {
	Date         *time.Time `json:"date,omitempty"`
	Day          *time.Time `json:"day,omitempty"`
	HourLabel    string     `json:"hour_label,omitempty"`
	Hour         *int       `json:"hour,omitempty"`
	Sector       string     `json:"sector"`
	Collaborator string     `json:"collaborator"`
	Evaluator    string     `json:"evaluator"`
	Store        string     `json:"store"`
	Region       string     `json:"region"`
	Speed        float64    `json:"speed"`
	Service      float64    `json:"service"`
	Quality      float64    `json:"quality"`
	Helpfulness  float64    `json:"helpfulness"`
}

// HasDate reports whether the source date cell parsed.
func (r Record) HasDate() bool {
	return r.Date != nil
}

// Key returns the grouping value of field for this record. Undated records
// yield null values for the temporal fields.
func (r Record) Key(field Field) KeyValue {
	kv := KeyValue{Field: field}
	switch field {
	case FieldDate:
		if !r.HasDate() {
			kv.Null = true
		} else {
			kv.Value = r.Date.Format(time.RFC3339)
		}
	case FieldDay:
		if r.Day == nil {
			kv.Null = true
		} else {
			kv.Value = r.Day.Format(DayLayout)
		}
	case FieldHourLabel:
		if !r.HasDate() {
			kv.Null = true
		} else {
			kv.Value = r.HourLabel
		}
	case FieldHour:
		if r.Hour == nil {
			kv.Null = true
		} else {
			kv.Value = strconv.Itoa(*r.Hour)
			kv.number = *r.Hour
			kv.numeric = true
		}
	case FieldSector:
		kv.Value = r.Sector
	case FieldCollaborator:
		kv.Value = r.Collaborator
	case FieldEvaluator:
		kv.Value = r.Evaluator
	case FieldStore:
		kv.Value = r.Store
	case FieldRegion:
		kv.Value = r.Region
	case FieldSpeed:
		kv.Value = strconv.FormatFloat(r.Speed, 'f', -1, 64)
	case FieldService:
		kv.Value = strconv.FormatFloat(r.Service, 'f', -1, 64)
	case FieldQuality:
		kv.Value = strconv.FormatFloat(r.Quality, 'f', -1, 64)
	case FieldHelpfulness:
		kv.Value = strconv.FormatFloat(r.Helpfulness, 'f', -1, 64)
	default:
		kv.Null = true
	}
	return kv
}

// DayLayout is the calendar-day format used in keys, query strings and exports.
const DayLayout = "2006-01-02"

// KeyValue is a single grouping-key component.
type KeyValue struct {
	Field Field  `json:"field"`
	Value string `json:"value"`
	Null  bool   `json:"null,omitempty"`

	number  int
	numeric bool
}

// compareKeys orders key values ascending with nulls last. Numeric keys
// compare by value so hour 9 sorts before hour 10.
func compareKeys(a, b KeyValue) int {
	switch {
	case a.Null && b.Null:
		return 0
	case a.Null:
		return 1
	case b.Null:
		return -1
	}
	if a.numeric && b.numeric {
		switch {
		case a.number < b.number:
			return -1
		case a.number > b.number:
			return 1
		}
		return 0
	}
	switch {
	case a.Value < b.Value:
		return -1
	case a.Value > b.Value:
		return 1
	}
	return 0
}

// Dataset is the unified, immutable result of one load cycle.
type Dataset struct {
	Records  []Record     `json:"records"`
	DateMin  time.Time    `json:"date_min"`
	DateMax  time.Time    `json:"date_max"`
	Warnings []TabWarning `json:"warnings,omitempty"`
	Tabs     int          `json:"tabs"`
	LoadedAt time.Time    `json:"loaded_at"`
}

// SingleDay reports whether every dated record falls on the same day, in
// which case date selection degenerates to a single-day picker.
func (d *Dataset) SingleDay() bool {
	return d.DateMin.Equal(d.DateMax)
}

// TabWarning describes a tab skipped during assembly.
type TabWarning struct {
	Tab     string `json:"tab"`
	Message string `json:"message"`
}
