// Package training fits the six cascade stages from the historical grade table
// and packages them, with class averages and holdout metrics, as an artifact bundle.
//
// The input is the cleaned grade CSV: normalized quarter grades
// (1st_quarter..4th_quarter), final_grade and one-hot section_*, gender_* and
// remarks_* columns. year_* columns are dropped on load.
package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/HatiCode/gradecast/pkg/baseline"
	"github.com/HatiCode/gradecast/pkg/grades"
)

// ColumnFinal is the target column of the to-final stages.
const ColumnFinal = "final_grade"

const yearPrefix = "year_"

// Dataset is a numeric table with named columns.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]float64
}

// LoadCSV reads a grade table from path.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV parses a grade table. Boolean cells (True/False, as written for
// one-hot columns) decode to 1 and 0.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var keep []int
	ds := &Dataset{index: make(map[string]int)}
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" || strings.HasPrefix(name, yearPrefix) {
			continue
		}
		if _, dup := ds.index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		ds.index[name] = len(ds.columns)
		ds.columns = append(ds.columns, name)
		keep = append(keep, i)
	}

	for _, required := range requiredColumns() {
		if _, ok := ds.index[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := make([]float64, len(keep))
		for j, i := range keep {
			v, err := parseCell(rec[i])
			if err != nil {
				return nil, fmt.Errorf("line %d, column %q: %w", line, ds.columns[j], err)
			}
			row[j] = v
		}
		ds.rows = append(ds.rows, row)
	}

	if len(ds.rows) == 0 {
		return nil, errors.New("dataset has no rows")
	}
	return ds, nil
}

func requiredColumns() []string {
	cols := make([]string, 0, len(grades.Quarters)+1)
	for _, q := range grades.Quarters {
		cols = append(cols, q.Column())
	}
	return append(cols, ColumnFinal)
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	case "":
		return 0, errors.New("empty cell")
	}
	return strconv.ParseFloat(s, 64)
}

// Columns returns the column names in file order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.rows)
}

// Column returns a copy of one column.
func (d *Dataset) Column(name string) ([]float64, error) {
	j, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	out := make([]float64, len(d.rows))
	for i, row := range d.rows {
		out[i] = row[j]
	}
	return out, nil
}

// Matrix returns the rows projected onto cols, in that order.
func (d *Dataset) Matrix(cols []string) ([][]float64, error) {
	idx := make([]int, len(cols))
	for k, c := range cols {
		j, ok := d.index[c]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", c)
		}
		idx[k] = j
	}

	out := make([][]float64, len(d.rows))
	for i, row := range d.rows {
		x := make([]float64, len(idx))
		for k, j := range idx {
			x[k] = row[j]
		}
		out[i] = x
	}
	return out, nil
}

// CategoricalColumns returns the section_*, gender_* and remarks_* columns in file order.
func (d *Dataset) CategoricalColumns() []string {
	var out []string
	for _, c := range d.columns {
		if strings.HasPrefix(c, grades.SectionPrefix) ||
			strings.HasPrefix(c, grades.GenderPrefix) ||
			strings.HasPrefix(c, grades.RemarksPrefix) {
			out = append(out, c)
		}
	}
	return out
}

// ClassAverages returns the mean normalized grade of every quarter and of
// the final grade, keyed "q1".."q4" and "final".
func (d *Dataset) ClassAverages() (map[string]float64, error) {
	out := make(map[string]float64, len(grades.Quarters)+1)
	for _, q := range grades.Quarters {
		col, err := d.Column(q.Column())
		if err != nil {
			return nil, err
		}
		out[q.Key()] = stat.Mean(col, nil)
	}
	final, err := d.Column(ColumnFinal)
	if err != nil {
		return nil, err
	}
	out[baseline.KeyFinal] = stat.Mean(final, nil)
	return out, nil
}
