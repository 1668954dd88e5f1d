// Package grades defines the per-request student data the prediction cascade works on:
// quarters, optional quarter grades, the categorical attributes and the student record.
//
// Grades are held normalized to [0, 1]. Inputs arrive as 0-100 percentages and are
// converted with Normalize; outputs are converted back with Percent.
package grades

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Quarter is one of the four ordinal academic quarters.
type Quarter int

const (
	Q1 Quarter = iota + 1
	Q2
	Q3
	Q4
)

// Quarters lists all quarters in order.
var Quarters = []Quarter{Q1, Q2, Q3, Q4}

// ParseQuarter converts a 1-based quarter index.
func ParseQuarter(i int) (Quarter, error) {
	if i < int(Q1) || i > int(Q4) {
		return 0, fmt.Errorf("quarter %d out of range 1-4", i)
	}
	return Quarter(i), nil
}

// Valid reports whether q is one of Q1..Q4.
func (q Quarter) Valid() bool {
	return q >= Q1 && q <= Q4
}

// String returns the response label ("Q1".."Q4").
func (q Quarter) String() string {
	if !q.Valid() {
		return fmt.Sprintf("Quarter(%d)", int(q))
	}
	return fmt.Sprintf("Q%d", int(q))
}

// Key returns the lowercase key used in baselines and payloads ("q1".."q4").
func (q Quarter) Key() string {
	return strings.ToLower(q.String())
}

// Column returns the training-data column name for the quarter.
func (q Quarter) Column() string {
	switch q {
	case Q1:
		return "1st_quarter"
	case Q2:
		return "2nd_quarter"
	case Q3:
		return "3rd_quarter"
	case Q4:
		return "4th_quarter"
	}
	return ""
}

// Next returns the following quarter and false when q is the last one.
func (q Quarter) Next() (Quarter, bool) {
	if q >= Q4 || !q.Valid() {
		return 0, false
	}
	return q + 1, true
}

// Grade is an optional normalized quarter grade. The zero value is "not supplied".
type Grade struct {
	Value float64
	Valid bool
}

// Known returns a supplied grade.
func Known(v float64) Grade {
	return Grade{Value: v, Valid: true}
}

// Set holds up to one grade per quarter.
type Set struct {
	grades [4]Grade
}

// Put records a grade for q. Invalid quarters are ignored.
func (s *Set) Put(q Quarter, v float64) {
	if !q.Valid() {
		return
	}
	s.grades[q-1] = Known(v)
}

// Get returns the grade for q and whether it was supplied.
func (s Set) Get(q Quarter) (float64, bool) {
	if !q.Valid() {
		return 0, false
	}
	g := s.grades[q-1]
	return g.Value, g.Valid
}

// Has reports whether a grade for q is present.
func (s Set) Has(q Quarter) bool {
	_, ok := s.Get(q)
	return ok
}

// Through reports whether every quarter from Q1 up to and including q is present.
func (s Set) Through(q Quarter) bool {
	if !q.Valid() {
		return false
	}
	for i := Q1; i <= q; i++ {
		if !s.Has(i) {
			return false
		}
	}
	return true
}

// Truncate returns a copy holding only the grades for Q1..q.
func (s Set) Truncate(q Quarter) Set {
	var out Set
	for _, i := range Quarters {
		if i > q {
			break
		}
		if v, ok := s.Get(i); ok {
			out.Put(i, v)
		}
	}
	return out
}

// Known returns the quarters that have a grade, in order.
func (s Set) Known() []Quarter {
	out := make([]Quarter, 0, len(Quarters))
	for _, q := range Quarters {
		if s.Has(q) {
			out = append(out, q)
		}
	}
	return out
}

// Len returns the number of supplied grades.
func (s Set) Len() int {
	return len(s.Known())
}

// Record is the transient per-request student state.
type Record struct {
	CurrentQuarter Quarter
	Grades         Set
	Section        string
	Gender         string
}

// Normalize converts a 0-100 percentage to a fraction.
func Normalize(percent float64) float64 {
	return percent / 100
}

// Percent converts a fraction to a percentage rounded to two decimals.
func Percent(v float64) float64 {
	return Round2(v * 100)
}

// Round2 rounds v to two decimal places. The binary value is rounded
// directly, so 84.095 (stored just below the tie) becomes 84.09.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}
