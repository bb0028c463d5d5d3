package evaluation

import "sort"

// CountRow is one group of a count-only aggregation.
type CountRow struct {
	Keys  []KeyValue `json:"keys"`
	Count int        `json:"count"`
}

// Key returns the value of field in this row's key tuple.
func (r CountRow) Key(field Field) KeyValue {
	return lookupKey(r.Keys, field)
}

// CountBy groups records by keys and counts each group. Rows are in
// ascending key order with null values last.
func CountBy(records []Record, keys []Field) []CountRow {
	groups := groupRecords(records, keys)
	rows := make([]CountRow, len(groups))
	for i, g := range groups {
		rows[i] = CountRow{Keys: g.keys, Count: len(g.records)}
	}
	return rows
}

// EvaluatorRanking counts evaluations per evaluator, region and store,
// busiest first. Ties sort by evaluator name.
func EvaluatorRanking(records []Record) []CountRow {
	rows := CountBy(records, []Field{FieldEvaluator, FieldRegion, FieldStore})
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Keys[0].Value < rows[j].Keys[0].Value
	})
	return rows
}

// HourlyVolume counts evaluations per region, store and hour of day.
// Undated records have no hour and are left out.
func HourlyVolume(records []Record) []CountRow {
	dated := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Hour != nil {
			dated = append(dated, r)
		}
	}
	return CountBy(dated, []Field{FieldRegion, FieldStore, FieldHour})
}

// PivotTable is a dense count matrix. Cells[i][j] counts rows whose row
// field equals Rows[i] and column field equals Columns[j].
type PivotTable struct {
	RowField    Field    `json:"row_field"`
	ColumnField Field    `json:"column_field"`
	Rows        []string `json:"rows"`
	Columns     []string `json:"columns"`
	Cells       [][]int  `json:"cells"`
}

// Pivot spreads counts over rowField × colField. Combinations without a
// count are 0. Rows whose keys lack either field are ignored.
func Pivot(counts []CountRow, rowField, colField Field) PivotTable {
	var rowKeys, colKeys []KeyValue
	seenRow := make(map[string]bool)
	seenCol := make(map[string]bool)
	for _, c := range counts {
		rk, ck := c.Key(rowField), c.Key(colField)
		if rk.Null || ck.Null {
			continue
		}
		if !seenRow[rk.Value] {
			seenRow[rk.Value] = true
			rowKeys = append(rowKeys, rk)
		}
		if !seenCol[ck.Value] {
			seenCol[ck.Value] = true
			colKeys = append(colKeys, ck)
		}
	}
	sort.SliceStable(rowKeys, func(i, j int) bool { return compareKeys(rowKeys[i], rowKeys[j]) < 0 })
	sort.SliceStable(colKeys, func(i, j int) bool { return compareKeys(colKeys[i], colKeys[j]) < 0 })

	pt := PivotTable{
		RowField:    rowField,
		ColumnField: colField,
		Rows:        values(rowKeys),
		Columns:     values(colKeys),
		Cells:       make([][]int, len(rowKeys)),
	}
	rowIdx := indexOf(pt.Rows)
	colIdx := indexOf(pt.Columns)
	for i := range pt.Cells {
		pt.Cells[i] = make([]int, len(colKeys))
	}
	for _, c := range counts {
		rk, ck := c.Key(rowField), c.Key(colField)
		if rk.Null || ck.Null {
			continue
		}
		pt.Cells[rowIdx[rk.Value]][colIdx[ck.Value]] += c.Count
	}
	return pt
}

// EvaluatorStorePivot is the evaluator × store distribution.
func EvaluatorStorePivot(records []Record) PivotTable {
	return Pivot(CountBy(records, []Field{FieldEvaluator, FieldStore}), FieldEvaluator, FieldStore)
}

// HourStorePivot is the hour × store distribution.
func HourStorePivot(records []Record) PivotTable {
	return Pivot(HourlyVolume(records), FieldHour, FieldStore)
}

func values(keys []KeyValue) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.Value
	}
	return out
}

func indexOf(list []string) map[string]int {
	m := make(map[string]int, len(list))
	for i, v := range list {
		m[v] = i
	}
	return m
}
