package features

import (
	"github.com/HatiCode/gradecast/pkg/grades"
)

// Remarks columns. Every stage was trained with these fixed at PASSED, so rows
// always carry remarks_FAILED=0 and remarks_PASSED=1.
const (
	ColumnRemarksFailed = grades.RemarksPrefix + "FAILED"
	ColumnRemarksPassed = grades.RemarksPrefix + "PASSED"
)

// inputQuarters are the quarters that can appear as model inputs. Q4 is only
// ever a target.
var inputQuarters = []grades.Quarter{grades.Q1, grades.Q2, grades.Q3}

// Builder constructs canonical feature rows for a fixed category set.
// It holds no mutable state and is safe for concurrent use.
type Builder struct {
	categories grades.Categories
}

// NewBuilder returns a builder over the default section and gender sets.
func NewBuilder() *Builder {
	return NewBuilderWithCategories(grades.DefaultCategories())
}

// NewBuilderWithCategories returns a builder over the given category sets.
func NewBuilderWithCategories(c grades.Categories) *Builder {
	return &Builder{categories: c}
}

// Categories returns the builder's category sets.
func (b *Builder) Categories() grades.Categories {
	return b.categories
}

// Build returns the canonical row for the known grades and categorical attributes.
// A section or gender outside the closed set leaves all of its indicators at 0.
func (b *Builder) Build(known grades.Set, section, gender string) Row {
	size := len(inputQuarters) + len(b.categories.Sections) + len(b.categories.Genders) + 2
	row := Row{
		columns: make([]string, 0, size),
		values:  make([]float64, 0, size),
	}

	for _, q := range inputQuarters {
		if v, ok := known.Get(q); ok {
			row.append(q.Column(), v)
		}
	}
	for _, s := range b.categories.Sections {
		row.append(grades.SectionPrefix+s, indicator(s == section))
	}
	for _, g := range b.categories.Genders {
		row.append(grades.GenderPrefix+g, indicator(g == gender))
	}
	row.append(ColumnRemarksFailed, 0)
	row.append(ColumnRemarksPassed, 1)

	return row
}

// CanonicalColumns returns the column order Build produces when Q1..through are known.
func (b *Builder) CanonicalColumns(through grades.Quarter) []string {
	var known grades.Set
	for _, q := range inputQuarters {
		if q <= through {
			known.Put(q, 0)
		}
	}
	return b.Build(known, "", "").Columns()
}

func indicator(on bool) float64 {
	if on {
		return 1
	}
	return 0
}
