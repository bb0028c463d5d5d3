package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"evalreport/internal/evaluation"
)

// ReportQuery is the filter selection carried in the query string.
type ReportQuery struct {
	DateFrom string   `query:"date_from" validate:"isodate"`
	DateTo   string   `query:"date_to" validate:"isodate"`
	Region   string   `query:"region" validate:"max=64"`
	Store    string   `query:"store" validate:"max=128"`
	Stores   []string `query:"stores" validate:"max=100,dive,max=128"`
	Sectors  []string `query:"sectors" validate:"max=100,dive,max=128"`
	HourFrom *int     `query:"hour_from" validate:"omitempty,gte=0,lte=23"`
	HourTo   *int     `query:"hour_to" validate:"omitempty,gte=0,lte=23"`
	Preview  int      `query:"preview" validate:"gte=0,lte=5000"`
}

// queryError reports a parameter that is not even the right type.
type queryError struct {
	param string
	value string
}

func (e *queryError) Error() string {
	return e.param + " must be an integer, got " + strconv.Quote(e.value)
}

// parseReportQuery reads the filter parameters. List parameters accept both
// repeated keys and comma separated values.
func parseReportQuery(r *http.Request) (ReportQuery, error) {
	values := r.URL.Query()
	q := ReportQuery{
		DateFrom: strings.TrimSpace(values.Get("date_from")),
		DateTo:   strings.TrimSpace(values.Get("date_to")),
		Region:   strings.TrimSpace(values.Get("region")),
		Store:    strings.TrimSpace(values.Get("store")),
		Stores:   listParam(values, "stores"),
		Sectors:  listParam(values, "sectors"),
	}

	var err error
	if q.HourFrom, err = intParam(values, "hour_from"); err != nil {
		return q, err
	}
	if q.HourTo, err = intParam(values, "hour_to"); err != nil {
		return q, err
	}
	preview, err := intParam(values, "preview")
	if err != nil {
		return q, err
	}
	if preview != nil {
		q.Preview = *preview
	}
	return q, nil
}

// Criteria converts a validated query to filter criteria. A specific store
// overrides the store list. Missing hour bounds default to the whole day.
func (q ReportQuery) Criteria() evaluation.FilterCriteria {
	c := evaluation.FilterCriteria{
		Region:  q.Region,
		Stores:  q.Stores,
		Sectors: q.Sectors,
	}
	if q.Store != "" {
		c.Stores = []string{q.Store}
	}
	if t, ok := parseDay(q.DateFrom); ok {
		c.DateFrom = &t
	}
	if t, ok := parseDay(q.DateTo); ok {
		c.DateTo = &t
	}
	if q.HourFrom != nil || q.HourTo != nil {
		h := evaluation.HourRange{From: evaluation.MinHour, To: evaluation.MaxHour}
		if q.HourFrom != nil {
			h.From = *q.HourFrom
		}
		if q.HourTo != nil {
			h.To = *q.HourTo
		}
		c.Hours = &h
	}
	return c
}

func parseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(evaluation.DayLayout, s)
	return t, err == nil
}

func listParam(values url.Values, key string) []string {
	var out []string
	for _, raw := range values[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func intParam(values url.Values, key string) (*int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &queryError{param: key, value: raw}
	}
	return &n, nil
}
