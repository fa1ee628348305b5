package records

import (
	"strings"
)

// RecordSet is an immutable table of incident rows addressed by column name.
// A cell holding only whitespace is treated as null.
type RecordSet struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New builds a record set. Rows shorter than the header are padded with nulls.
func New(columns []string, rows [][]string) *RecordSet {
	rs := &RecordSet{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		rows:    make([][]string, 0, len(rows)),
	}
	for i, c := range rs.columns {
		if _, dup := rs.index[c]; !dup {
			rs.index[c] = i
		}
	}
	for _, r := range rows {
		row := make([]string, len(columns))
		copy(row, r)
		rs.rows = append(rs.rows, row)
	}
	return rs
}

// Columns returns the column names in source order.
func (rs *RecordSet) Columns() []string {
	return append([]string(nil), rs.columns...)
}

// Len returns the number of rows.
func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rows)
}

// HasColumn reports whether the column exists.
func (rs *RecordSet) HasColumn(name string) bool {
	if rs == nil {
		return false
	}
	_, ok := rs.index[name]
	return ok
}

// Value returns the cell at row i in column name. ok is false when the column
// is absent or the cell is null.
func (rs *RecordSet) Value(i int, name string) (string, bool) {
	idx, ok := rs.index[name]
	if !ok {
		return "", false
	}
	v := rs.rows[i][idx]
	if strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Raw returns the cell as stored, empty for absent columns.
func (rs *RecordSet) Raw(i int, name string) string {
	idx, ok := rs.index[name]
	if !ok {
		return ""
	}
	return rs.rows[i][idx]
}

// Select returns a record set restricted to the given columns, in that order.
// Columns that do not exist are skipped.
func (rs *RecordSet) Select(names []string) *RecordSet {
	var cols []int
	var kept []string
	for _, n := range names {
		if idx, ok := rs.index[n]; ok {
			cols = append(cols, idx)
			kept = append(kept, n)
		}
	}
	rows := make([][]string, len(rs.rows))
	for i, r := range rs.rows {
		row := make([]string, len(cols))
		for j, idx := range cols {
			row[j] = r[idx]
		}
		rows[i] = row
	}
	return New(kept, rows)
}

// Filter returns the rows for which keep returns true.
func (rs *RecordSet) Filter(keep func(i int) bool) *RecordSet {
	var rows [][]string
	for i, r := range rs.rows {
		if keep(i) {
			rows = append(rows, r)
		}
	}
	return New(rs.columns, rows)
}

// ApplyMapping renames raw columns to canonical names using a canonical→raw
// mapping. Only columns present in both the data and the mapping are renamed;
// everything else keeps its original name. It never fails: missing mapped
// columns surface later at the required-fields check.
func ApplyMapping(rs *RecordSet, mappings map[string]string) (*RecordSet, int) {
	rawToCanonical := make(map[string]string, len(mappings))
	for canonical, raw := range mappings {
		if rs.HasColumn(raw) {
			rawToCanonical[raw] = canonical
		}
	}

	cols := make([]string, len(rs.columns))
	mapped := 0
	for i, c := range rs.columns {
		if canonical, ok := rawToCanonical[c]; ok {
			cols[i] = canonical
			mapped++
			continue
		}
		cols[i] = c
	}
	// Rows are immutable, so the renamed view shares them.
	out := &RecordSet{columns: cols, index: make(map[string]int, len(cols)), rows: rs.rows}
	for i, c := range cols {
		if _, dup := out.index[c]; !dup {
			out.index[c] = i
		}
	}
	return out, mapped
}

// MissingColumns returns the names in fields that are not columns of rs.
func MissingColumns(rs *RecordSet, fields []string) []string {
	var missing []string
	for _, f := range fields {
		if !rs.HasColumn(f) {
			missing = append(missing, f)
		}
	}
	return missing
}
