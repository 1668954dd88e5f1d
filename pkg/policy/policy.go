// Package policy holds the confidence and pass/at-risk rules attached to a
// prediction. Both are configuration: defaults can be overridden by flags or
// a YAML file.
package policy

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/HatiCode/gradecast/pkg/grades"
)

// Status is the pass classification of a final grade.
type Status string

const (
	Passed Status = "PASSED"
	AtRisk Status = "AT RISK"
)

// Confidence holds the score attached to each current-quarter state.
type Confidence struct {
	Q1 int `yaml:"q1"`
	Q2 int `yaml:"q2"`
	Q3 int `yaml:"q3"`
	Q4 int `yaml:"q4"`
}

// Policy decides confidence and status.
type Policy struct {
	// PassThreshold is the normalized final grade at or above which a student passes.
	PassThreshold float64    `yaml:"passThreshold"`
	Confidence    Confidence `yaml:"confidence"`
}

// Default returns the stock policy: pass at 0.75, confidence 70/85/95/100.
func Default() Policy {
	return Policy{
		PassThreshold: 0.75,
		Confidence:    Confidence{Q1: 70, Q2: 85, Q3: 95, Q4: 100},
	}
}

// LoadFile reads a YAML policy. Fields absent from the file keep the values in base.
func LoadFile(path string, base Policy) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	p := base
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the threshold lies in (0,1] and every confidence in 0..100.
func (p Policy) Validate() error {
	if p.PassThreshold <= 0 || p.PassThreshold > 1 {
		return fmt.Errorf("pass threshold must be in (0, 1], got %v", p.PassThreshold)
	}
	var errs []error
	for _, q := range grades.Quarters {
		if c := p.ConfidenceFor(q); c < 0 || c > 100 {
			errs = append(errs, fmt.Errorf("confidence for %s must be in [0, 100], got %d", q, c))
		}
	}
	return errors.Join(errs...)
}

// ConfidenceFor returns the confidence for a cascade run at current quarter q.
func (p Policy) ConfidenceFor(q grades.Quarter) int {
	switch q {
	case grades.Q1:
		return p.Confidence.Q1
	case grades.Q2:
		return p.Confidence.Q2
	case grades.Q3:
		return p.Confidence.Q3
	case grades.Q4:
		return p.Confidence.Q4
	default:
		return 0
	}
}

// Status classifies a normalized final grade.
func (p Policy) Status(final float64) Status {
	if final >= p.PassThreshold {
		return Passed
	}
	return AtRisk
}
