package evaluation

import (
	"math"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
)

// SummaryRow is one group of a grouped aggregation. Scores are means rounded
// to two decimals.
type SummaryRow struct {
	Keys        []KeyValue `json:"keys"`
	Speed       float64    `json:"speed"`
	Service     float64    `json:"service"`
	Quality     float64    `json:"quality"`
	Helpfulness float64    `json:"helpfulness"`
	Overall     float64    `json:"overall"`
	Count       int        `json:"count"`
}

// Key returns the value of field in this row's key tuple.
func (r SummaryRow) Key(field Field) KeyValue {
	return lookupKey(r.Keys, field)
}

// Summarize groups records by keys and computes the score means, the count
// and Overall, the mean of the four unrounded means. Rows come back in key
// order, then stably sorted by Overall descending. Empty keys yield exactly
// one row, also for empty input.
func Summarize(records []Record, keys []Field) []SummaryRow {
	groups := groupRecords(records, keys)

	rows := make([]SummaryRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, summarizeGroup(g))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Overall > rows[j].Overall
	})
	return rows
}

// Overview is the KPI row over the whole record set.
func Overview(records []Record) SummaryRow {
	return Summarize(records, OverallGrouping)[0]
}

type group struct {
	keys    []KeyValue
	records []Record
}

// groupRecords partitions records by key tuple. Groups are returned in
// ascending key order with null values last.
func groupRecords(records []Record, keys []Field) []*group {
	if len(keys) == 0 {
		return []*group{{keys: []KeyValue{}, records: records}}
	}

	index := make(map[string]*group)
	var groups []*group
	for _, r := range records {
		kv := make([]KeyValue, len(keys))
		for i, f := range keys {
			kv[i] = r.Key(f)
		}
		id := tupleID(kv)
		g, ok := index[id]
		if !ok {
			g = &group{keys: kv}
			index[id] = g
			groups = append(groups, g)
		}
		g.records = append(g.records, r)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return compareTuples(groups[i].keys, groups[j].keys) < 0
	})
	return groups
}

func summarizeGroup(g *group) SummaryRow {
	n := len(g.records)
	speed := make(stats.Float64Data, n)
	service := make(stats.Float64Data, n)
	quality := make(stats.Float64Data, n)
	help := make(stats.Float64Data, n)
	for i, r := range g.records {
		speed[i] = r.Speed
		service[i] = r.Service
		quality[i] = r.Quality
		help[i] = r.Helpfulness
	}

	means := []float64{mean(speed), mean(service), mean(quality), mean(help)}
	overall := mean(means)

	return SummaryRow{
		Keys:        g.keys,
		Speed:       round2(means[0]),
		Service:     round2(means[1]),
		Quality:     round2(means[2]),
		Helpfulness: round2(means[3]),
		Overall:     round2(overall),
		Count:       n,
	}
}

// mean returns 0 for empty input.
func mean(data stats.Float64Data) float64 {
	m, err := stats.Mean(data)
	if err != nil {
		return 0
	}
	return m
}

// round2 rounds to two decimals, ties to even.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

func tupleID(kv []KeyValue) string {
	var b strings.Builder
	for _, k := range kv {
		if k.Null {
			b.WriteString("\x00null")
		} else {
			b.WriteString("\x00v")
			b.WriteString(k.Value)
		}
	}
	return b.String()
}

func compareTuples(a, b []KeyValue) int {
	for i := range a {
		if i >= len(b) {
			return 1
		}
		if c := compareKeys(a[i], b[i]); c != 0 {
			return c
		}
	}
	if len(a) < len(b) {
		return -1
	}
	return 0
}

func lookupKey(keys []KeyValue, field Field) KeyValue {
	for _, k := range keys {
		if k.Field == field {
			return k
		}
	}
	return KeyValue{Field: field, Null: true}
}
