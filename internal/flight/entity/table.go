package entity

import (
	"math"
	"strconv"
	"strings"
)

// Value is a single cell of a flight log. Raw keeps the text as it appeared in
// the file; Num is only meaningful when IsNum is true.
type Value struct {
	Raw   string
	Num   float64
	IsNum bool
}

// NewValue parses raw as a number when possible.
func NewValue(raw string) Value {
	v := Value{Raw: raw}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return v
	}

	if num, err := strconv.ParseFloat(trimmed, 64); err == nil {
		v.Num = num
		v.IsNum = true
	}

	return v
}

// Float returns the numeric value or NaN for non-numeric cells.
func (v Value) Float() float64 {
	if !v.IsNum {
		return math.NaN()
	}
	return v.Num
}

// FlightTable is a decoded flight log. Row order is the order of the file,
// which is the temporal order of the samples.
type FlightTable struct {
	Columns []string
	Rows    [][]Value

	// Dropped counts malformed rows skipped while parsing.
	Dropped int
}

func (t *FlightTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column or -1.
func (t *FlightTable) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

func (t *FlightTable) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Floats returns the named column as numbers, NaN for non-numeric cells. The
// result has one entry per row; nil when the column does not exist.
func (t *FlightTable) Floats(name string) []float64 {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}

	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx].Float()
	}
	return out
}

// Head returns at most n rows from the start of the table as column name to
// value mappings.
func (t *FlightTable) Head(n int) []map[string]Value {
	if t == nil || n <= 0 {
		return []map[string]Value{}
	}
	n = min(n, len(t.Rows))

	out := make([]map[string]Value, 0, n)
	for _, row := range t.Rows[:n] {
		m := make(map[string]Value, len(t.Columns))
		for i, col := range t.Columns {
			m[col] = row[i]
		}
		out = append(out, m)
	}
	return out
}
