package evaluation

import (
	"errors"
	"fmt"
	"time"
)

// Hour bounds of a day. A range covering both is no restriction.
const (
	MinHour = 0
	MaxHour = 23
)

// HourRange is an inclusive hour-of-day window.
type HourRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// IsFullDay reports whether the range covers every hour.
func (h HourRange) IsFullDay() bool {
	return h.From <= MinHour && h.To >= MaxHour
}

// FilterCriteria narrows a dataset. Every set criterion applies with AND;
// zero values impose no restriction.
type FilterCriteria struct {
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	Region   string     `json:"region,omitempty"`
	Stores   []string   `json:"stores,omitempty"`
	Sectors  []string   `json:"sectors,omitempty"`
	Hours    *HourRange `json:"hours,omitempty"`
}

// ErrInvalidCriteria is wrapped by every Validate failure.
var ErrInvalidCriteria = errors.New("invalid filter criteria")

// Validate rejects inverted or out-of-range bounds.
func (c FilterCriteria) Validate() error {
	if c.DateFrom == nil && c.DateTo != nil {
		return fmt.Errorf("%w: date_to requires date_from", ErrInvalidCriteria)
	}
	if c.DateFrom != nil && c.DateTo != nil && dayNumber(*c.DateTo) < dayNumber(*c.DateFrom) {
		return fmt.Errorf("%w: date_to %s is before date_from %s", ErrInvalidCriteria,
			c.DateTo.Format(DayLayout), c.DateFrom.Format(DayLayout))
	}
	if h := c.Hours; h != nil {
		if h.From < MinHour || h.From > MaxHour || h.To < MinHour || h.To > MaxHour {
			return fmt.Errorf("%w: hours must be within %d-%d", ErrInvalidCriteria, MinHour, MaxHour)
		}
		if h.From > h.To {
			return fmt.Errorf("%w: hour_from %d is after hour_to %d", ErrInvalidCriteria, h.From, h.To)
		}
	}
	return nil
}

// IsEmpty reports whether the criteria restrict nothing.
func (c FilterCriteria) IsEmpty() bool {
	return c.DateFrom == nil && c.DateTo == nil &&
		(c.Region == "" || c.Region == AllRegions) &&
		len(c.Stores) == 0 && len(c.Sectors) == 0 &&
		(c.Hours == nil || c.Hours.IsFullDay())
}

// Apply returns the records matching c as a new slice. The input is never
// modified.
func Apply(records []Record, c FilterCriteria) []Record {
	if c.IsEmpty() {
		return append([]Record(nil), records...)
	}
	m := newMatcher(c)
	out := make([]Record, 0, len(records))
	for i := range records {
		if m.match(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

type matcher struct {
	singleDay int
	rangeFrom int
	rangeTo   int
	hasRange  bool
	region    string
	stores    map[string]struct{}
	sectors   map[string]struct{}
	hours     *HourRange
}

func newMatcher(c FilterCriteria) matcher {
	m := matcher{
		stores:  toSet(c.Stores),
		sectors: toSet(c.Sectors),
	}
	if c.Region != AllRegions {
		m.region = c.Region
	}
	if c.Hours != nil && !c.Hours.IsFullDay() {
		h := *c.Hours
		m.hours = &h
	}

	switch {
	case c.DateFrom == nil:
	case c.DateTo == nil || dayNumber(*c.DateFrom) == dayNumber(*c.DateTo):
		m.singleDay = dayNumber(*c.DateFrom)
	default:
		// [from 00:00, to 23:59:59] on the record's wall clock
		m.hasRange = true
		m.rangeFrom = dayNumber(*c.DateFrom)
		m.rangeTo = dayNumber(*c.DateTo)
	}
	return m
}

func (m matcher) match(r *Record) bool {
	if m.singleDay != 0 && (r.Day == nil || dayNumber(*r.Day) != m.singleDay) {
		return false
	}
	if m.hasRange {
		if !r.HasDate() {
			return false
		}
		if d := dayNumber(*r.Date); d < m.rangeFrom || d > m.rangeTo {
			return false
		}
	}
	if m.region != "" && r.Region != m.region {
		return false
	}
	if m.stores != nil {
		if _, ok := m.stores[r.Store]; !ok {
			return false
		}
	}
	if m.sectors != nil {
		if _, ok := m.sectors[r.Sector]; !ok {
			return false
		}
	}
	if m.hours != nil && (r.Hour == nil || *r.Hour < m.hours.From || *r.Hour > m.hours.To) {
		return false
	}
	return true
}

// toSet returns nil for an empty list so that it means "all".
func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// dayNumber encodes the calendar day of t as yyyymmdd.
func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
