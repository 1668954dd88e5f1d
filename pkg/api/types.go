// Package api defines the request and response payloads of the prediction
// service, shared by the HTTP and gRPC transports.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/HatiCode/gradecast/pkg/cascade"
	"github.com/HatiCode/gradecast/pkg/grades"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Percent is an optional 0-100 grade. It decodes from a JSON number, a
// numeric string, an empty string or null; the last two mean "not supplied".
type Percent struct {
	Value float64
	Set   bool
}

// Pct returns a supplied Percent.
func Pct(v float64) Percent {
	return Percent{Value: v, Set: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Percent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*p = Percent{}

	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("grade %q is not a number", s)
		}
		*p = Pct(v)
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("grade must be a number: %w", err)
	}
	*p = Pct(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p Percent) MarshalJSON() ([]byte, error) {
	if !p.Set {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

// IsZero reports whether the grade was not supplied.
func (p Percent) IsZero() bool {
	return !p.Set
}

// PredictRequest is the payload of a prediction request.
type PredictRequest struct {
	CurrentQuarter int     `json:"currentQuarter" validate:"required,min=1,max=4"`
	Section        string  `json:"section" validate:"required"`
	Gender         string  `json:"gender" validate:"required"`
	Q1             Percent `json:"q1,omitzero"`
	Q2             Percent `json:"q2,omitzero"`
	Q3             Percent `json:"q3,omitzero"`
	Q4             Percent `json:"q4,omitzero"`
}

// Grade returns the request field for q.
func (r *PredictRequest) Grade(q grades.Quarter) Percent {
	switch q {
	case grades.Q1:
		return r.Q1
	case grades.Q2:
		return r.Q2
	case grades.Q3:
		return r.Q3
	case grades.Q4:
		return r.Q4
	default:
		return Percent{}
	}
}

// Validate checks required fields and grade ranges. Failures are
// *cascade.ValidationError values.
func (r *PredictRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return validationError(verrs[0])
		}
		return &cascade.ValidationError{Reason: err.Error()}
	}

	for _, q := range grades.Quarters {
		p := r.Grade(q)
		if p.Set && !(p.Value >= 0 && p.Value <= 100) {
			return cascade.Invalid(q.Key(), "must be between 0 and 100, got %v", p.Value)
		}
	}
	return nil
}

func validationError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return cascade.Invalid(fe.Field(), "is required")
	case "min", "max":
		return cascade.Invalid(fe.Field(), "must be between 1 and 4, got %v", fe.Value())
	default:
		return cascade.Invalid(fe.Field(), "failed %s validation", fe.Tag())
	}
}

// Record converts the request into a student record with normalized grades.
// When zeroIsAbsent is set a supplied 0 is treated as not supplied.
func (r *PredictRequest) Record(zeroIsAbsent bool) grades.Record {
	rec := grades.Record{
		CurrentQuarter: grades.Quarter(r.CurrentQuarter),
		Section:        r.Section,
		Gender:         r.Gender,
	}
	for _, q := range grades.Quarters {
		p := r.Grade(q)
		if !p.Set || (zeroIsAbsent && p.Value == 0) {
			continue
		}
		rec.Grades.Put(q, grades.Normalize(p.Value))
	}
	return rec
}

// FinalGrade is the final-grade block of a response.
type FinalGrade struct {
	Percentage float64 `json:"percentage"`
	Status     string  `json:"status"`
	Confidence int     `json:"confidence"`
}

// Comparison is the class-average block of a response.
type Comparison struct {
	ClassAverage float64 `json:"classAverage"`
	Difference   float64 `json:"difference"`
	Percentile   string  `json:"percentile"`
}

// PredictResponse is returned for every prediction request. On failure only
// Success and Error are set.
type PredictResponse struct {
	Success         bool               `json:"success"`
	CurrentQuarter  int                `json:"currentQuarter,omitempty"`
	EnteredGrades   map[string]float64 `json:"enteredGrades,omitzero"`
	PredictedGrades map[string]float64 `json:"predictedGrades,omitzero"`
	FinalGrade      *FinalGrade        `json:"finalGrade,omitempty"`
	Comparison      *Comparison        `json:"comparison,omitempty"`
	Error           string             `json:"error,omitempty"`
}

// Failure builds the response for a failed request.
func Failure(err error) PredictResponse {
	return PredictResponse{Success: false, Error: err.Error()}
}

// HealthResponse is the liveness payload listing loaded stages.
type HealthResponse struct {
	Status string   `json:"status"`
	Models []string `json:"models"`
}
