package models

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers each feature on its training mean and divides by its
// population standard deviation. Features with zero variance keep a scale of 1.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitStandardScaler computes per-column statistics over the rows of X.
func FitStandardScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 {
		return nil, errors.New("scaler: no rows to fit")
	}
	n := len(X[0])
	s := &StandardScaler{
		Mean:  make([]float64, n),
		Scale: make([]float64, n),
	}

	col := make([]float64, len(X))
	for j := 0; j < n; j++ {
		for i, row := range X {
			if len(row) != n {
				return nil, fmt.Errorf("scaler: row %d has %d columns, want %d", i, len(row), n)
			}
			col[i] = row[j]
		}
		mean, variance := stat.PopMeanVariance(col, nil)
		s.Mean[j] = mean
		s.Scale[j] = 1
		if sd := math.Sqrt(variance); sd > 0 {
			s.Scale[j] = sd
		}
	}

	return s, nil
}

// Features returns the number of columns the scaler was fitted on.
func (s *StandardScaler) Features() int {
	return len(s.Mean)
}

// Transform scales one feature vector. It returns ErrDimension when x has the
// wrong length.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrDimension, len(s.Mean), len(x))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}

// TransformAll scales every row of X.
func (s *StandardScaler) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

// Validate checks that the scaler is usable.
func (s *StandardScaler) Validate() error {
	if len(s.Mean) == 0 {
		return errors.New("scaler has no features")
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler mean has %d entries but scale has %d", len(s.Mean), len(s.Scale))
	}
	for i, sc := range s.Scale {
		if sc == 0 || math.IsNaN(sc) || math.IsInf(sc, 0) {
			return fmt.Errorf("scaler scale[%d] = %v", i, sc)
		}
	}
	return nil
}
