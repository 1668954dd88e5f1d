// Package baseline holds the historical class averages and compares a
// student's final grade against them.
package baseline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/HatiCode/gradecast/pkg/grades"
)

// KeyFinal is the baseline entry for the final grade.
const KeyFinal = "final"

// ErrMissingFinal is returned when a baseline has no final-grade average.
var ErrMissingFinal = errors.New("baseline has no final average")

// Baseline maps "q1".."q4" and "final" to the historical mean normalized grade.
type Baseline map[string]float64

// New copies m into a Baseline. The final entry is required.
func New(m map[string]float64) (Baseline, error) {
	if _, ok := m[KeyFinal]; !ok {
		return nil, ErrMissingFinal
	}
	b := make(Baseline, len(m))
	for k, v := range m {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("baseline %s = %v outside [0,1]", k, v)
		}
		b[k] = v
	}
	return b, nil
}

// Final returns the class average final grade.
func (b Baseline) Final() float64 {
	return b[KeyFinal]
}

// Quarter returns the class average for q.
func (b Baseline) Quarter(q grades.Quarter) (float64, bool) {
	v, ok := b[q.Key()]
	return v, ok
}

// Keys returns the baseline keys in sorted order.
func (b Baseline) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bucket is the qualitative position relative to the class average.
type Bucket string

const (
	AboveAverage Bucket = "Above Average"
	BelowAverage Bucket = "Below Average"
	Average      Bucket = "Average"
)

// Comparison is the result of comparing one final grade with the class.
type Comparison struct {
	ClassAverage float64 // percent, two decimals
	Difference   float64 // percent points, two decimals
	Bucket       Bucket
}

// Compare places finalPercent (0-100) against classAverage (normalized).
// The bucket is decided on the unrounded difference.
func Compare(finalPercent, classAverage float64) Comparison {
	avgPercent := classAverage * 100
	diff := finalPercent - avgPercent

	bucket := Average
	switch {
	case diff > 0:
		bucket = AboveAverage
	case diff < 0:
		bucket = BelowAverage
	}

	return Comparison{
		ClassAverage: grades.Round2(avgPercent),
		Difference:   grades.Round2(diff),
		Bucket:       bucket,
	}
}
