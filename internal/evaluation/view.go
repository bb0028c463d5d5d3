package evaluation

import (
	"sort"
	"time"
)

// Preview returns up to limit records, newest day first and then latest
// hour label. Undated records come last. limit <= 0 returns all.
func Preview(records []Record, limit int) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Day == nil && b.Day == nil:
			return false
		case a.Day == nil:
			return false
		case b.Day == nil:
			return true
		}
		if !a.Day.Equal(*b.Day) {
			return a.Day.After(*b.Day)
		}
		return a.HourLabel > b.HourLabel
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FilterOptions lists the choices a client may offer for filtering.
type FilterOptions struct {
	Regions   []string  `json:"regions"`
	Stores    []string  `json:"stores"`
	Sectors   []string  `json:"sectors"`
	DateMin   time.Time `json:"date_min"`
	DateMax   time.Time `json:"date_max"`
	SingleDay bool      `json:"single_day"`
	MinHour   int       `json:"min_hour"`
	MaxHour   int       `json:"max_hour"`
}

// Options derives filter choices from records. Regions always start with
// AllRegions.
func Options(records []Record, regions *RegionTable, dateMin, dateMax time.Time) FilterOptions {
	return FilterOptions{
		Regions:   append([]string{AllRegions}, regions.Regions()...),
		Stores:    distinct(records, func(r Record) string { return r.Store }),
		Sectors:   distinct(records, func(r Record) string { return r.Sector }),
		DateMin:   dateMin,
		DateMax:   dateMax,
		SingleDay: dateMin.Equal(dateMax),
		MinHour:   MinHour,
		MaxHour:   MaxHour,
	}
}

func distinct(records []Record, field func(Record) string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range records {
		v := field(r)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
