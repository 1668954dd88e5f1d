package grades

import (
	"slices"
	"strings"
)

// Column prefixes for the one-hot categorical columns of the training table.
const (
	SectionPrefix = "section_"
	GenderPrefix  = "gender_"
	RemarksPrefix = "remarks_"
)

// Categories is the closed set of categorical values every trained stage was fitted on.
type Categories struct {
	Sections []string
	Genders  []string
}

// DefaultCategories matches the historical dataset the stages are trained from.
func DefaultCategories() Categories {
	return Categories{
		Sections: []string{"BANABA", "CABALLERO", "GEMELINA"},
		Genders:  []string{"FEMALE", "MALE"},
	}
}

// CategoriesFromColumns derives the category sets from one-hot column names,
// keeping the order in which the columns appear.
func CategoriesFromColumns(columns []string) Categories {
	var c Categories
	for _, col := range columns {
		switch {
		case strings.HasPrefix(col, SectionPrefix):
			c.Sections = append(c.Sections, strings.TrimPrefix(col, SectionPrefix))
		case strings.HasPrefix(col, GenderPrefix):
			c.Genders = append(c.Genders, strings.TrimPrefix(col, GenderPrefix))
		}
	}
	return c
}

// HasSection reports whether s is in the closed section set.
func (c Categories) HasSection(s string) bool {
	return slices.Contains(c.Sections, s)
}

// HasGender reports whether g is in the closed gender set.
func (c Categories) HasGender(g string) bool {
	return slices.Contains(c.Genders, g)
}

// Empty reports whether no categories are defined.
func (c Categories) Empty() bool {
	return len(c.Sections) == 0 && len(c.Genders) == 0
}
