// Package features builds the feature rows presented to trained stages.
//
// A Row is an ordered column → value mapping. The canonical column order is:
// present quarter grades (Q1..Q3), one-hot section indicators, one-hot gender
// indicators, then the two remarks indicators. Stages that recorded a schema at
// training time receive the row reordered to that schema via Row.Select.
package features

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrSchemaMismatch is matched by every SchemaMismatchError.
var ErrSchemaMismatch = errors.New("feature schema mismatch")

// SchemaMismatchError reports a row whose columns differ from a stage's recorded schema.
type SchemaMismatchError struct {
	Missing    []string
	Unexpected []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Unexpected, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrSchemaMismatch, strings.Join(parts, "; "))
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// Row is an ordered feature row. The zero value is an empty row.
type Row struct {
	columns []string
	values  []float64
}

// NewRow builds a row from parallel column and value slices.
func NewRow(columns []string, values []float64) (Row, error) {
	if len(columns) != len(values) {
		return Row{}, fmt.Errorf("row has %d columns but %d values", len(columns), len(values))
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			return Row{}, fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	return Row{columns: slices.Clone(columns), values: slices.Clone(values)}, nil
}

func (r *Row) append(column string, value float64) {
	r.columns = append(r.columns, column)
	r.values = append(r.values, value)
}

// Columns returns the column names in order.
func (r Row) Columns() []string {
	return slices.Clone(r.columns)
}

// Values returns the values in column order.
func (r Row) Values() []float64 {
	return slices.Clone(r.values)
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.columns)
}

// Value returns the value of the named column.
func (r Row) Value(column string) (float64, bool) {
	i := slices.Index(r.columns, column)
	if i < 0 {
		return 0, false
	}
	return r.values[i], true
}

// Select returns the row reordered to schema. The row must carry exactly the
// schema's columns; anything missing or extra yields a *SchemaMismatchError.
func (r Row) Select(schema []string) (Row, error) {
	index := make(map[string]int, len(r.columns))
	for i, c := range r.columns {
		index[c] = i
	}

	var mismatch SchemaMismatchError
	wanted := make(map[string]struct{}, len(schema))
	out := Row{
		columns: make([]string, 0, len(schema)),
		values:  make([]float64, 0, len(schema)),
	}
	for _, c := range schema {
		wanted[c] = struct{}{}
		i, ok := index[c]
		if !ok {
			mismatch.Missing = append(mismatch.Missing, c)
			continue
		}
		out.append(c, r.values[i])
	}
	for _, c := range r.columns {
		if _, ok := wanted[c]; !ok {
			mismatch.Unexpected = append(mismatch.Unexpected, c)
		}
	}

	if len(mismatch.Missing) > 0 || len(mismatch.Unexpected) > 0 {
		return Row{}, &mismatch
	}
	return out, nil
}
