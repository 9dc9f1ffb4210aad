package dataset

import (
	"fmt"
	"strings"
)

// Dataset is an ordered table of named, typed columns. A Dataset is owned by a
// single analysis request and mutated in place by filtering and derived-field
// generation; it is never shared across concurrent requests.
type Dataset struct {
	order   []string
	columns map[string][]Value
	rows    int
}

// New creates an empty dataset
func New() *Dataset {
	return &Dataset{columns: make(map[string][]Value)}
}

// Columns returns the column names in declaration order
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// HasColumn reports whether the named column exists
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.columns[name]
	return ok
}

// RowCount returns the number of rows
func (d *Dataset) RowCount() int {
	return d.rows
}

// ColumnCount returns the number of columns
func (d *Dataset) ColumnCount() int {
	return len(d.order)
}

// Column returns the values of the named column
func (d *Dataset) Column(name string) ([]Value, bool) {
	vals, ok := d.columns[name]
	return vals, ok
}

// SetColumn adds or overwrites a column. The column must match the dataset's
// row count unless the dataset is empty, in which case it defines it.
func (d *Dataset) SetColumn(name string, values []Value) error {
	if len(d.columns) > 0 && len(values) != d.rows {
		return fmt.Errorf("column %q has %d values, dataset has %d rows", name, len(values), d.rows)
	}
	if _, exists := d.columns[name]; !exists {
		d.order = append(d.order, name)
	}
	d.columns[name] = values
	d.rows = len(values)
	return nil
}

// FilterEqual keeps only the rows whose value in the named column matches the
// wanted value by its natural string representation. Missing cells never match.
func (d *Dataset) FilterEqual(name, want string) error {
	col, ok := d.columns[name]
	if !ok {
		return fmt.Errorf("column %q does not exist", name)
	}
	keep := make([]int, 0, len(col))
	for i, v := range col {
		if !v.IsMissing() && v.String() == want {
			keep = append(keep, i)
		}
	}
	d.selectRows(keep)
	return nil
}

// selectRows rewrites every column to the given row indices
func (d *Dataset) selectRows(keep []int) {
	for name, col := range d.columns {
		next := make([]Value, len(keep))
		for i, idx := range keep {
			next[i] = col[idx]
		}
		d.columns[name] = next
	}
	d.rows = len(keep)
}

// Select returns a new dataset restricted to the given rows. The source
// dataset is left untouched.
func (d *Dataset) Select(keep []int) *Dataset {
	out := New()
	for _, name := range d.order {
		col := d.columns[name]
		next := make([]Value, len(keep))
		for i, idx := range keep {
			next[i] = col[idx]
		}
		out.order = append(out.order, name)
		out.columns[name] = next
	}
	out.rows = len(keep)
	return out
}

// NormalizeTimeColumns re-parses columns whose names look time-like into
// timestamp values, coercing unparsable cells to missing
func (d *Dataset) NormalizeTimeColumns(patterns []string) []string {
	var normalized []string
	for _, name := range d.order {
		if !matchesTimePattern(name, patterns) {
			continue
		}
		col := d.columns[name]
		next := make([]Value, len(col))
		for i, v := range col {
			next[i] = ParseTimestamp(v)
		}
		d.columns[name] = next
		normalized = append(normalized, name)
	}
	return normalized
}

// DefaultTimePatterns are the column-name fragments recognized as time-like
var DefaultTimePatterns = []string{
	"时间", "日期", "datetime", "time", "timestamp", "date", "创建时间", "更新时间",
}

func matchesTimePattern(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
