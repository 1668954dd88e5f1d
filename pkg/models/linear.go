package models

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LinearRegressor predicts Intercept + Coef·x.
type LinearRegressor struct {
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
}

// FitLinear fits a ridge regression of y on X. The intercept is not penalized.
// A small positive lambda keeps the normal equations solvable when a column is
// constant (e.g. the remarks indicators after scaling).
func FitLinear(ctx context.Context, X [][]float64, y []float64, lambda float64) (*LinearRegressor, error) {
	if len(X) == 0 {
		return nil, errors.New("linear: no rows to fit")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("linear: %d rows but %d targets", len(X), len(y))
	}
	if lambda <= 0 {
		lambda = 1e-6
	}

	p := len(X[0]) + 1 // intercept first
	xtx := make([]float64, p*p)
	xty := make([]float64, p)
	aug := make([]float64, p)

	for i, row := range X {
		if len(row) != p-1 {
			return nil, fmt.Errorf("linear: row %d has %d columns, want %d", i, len(row), p-1)
		}
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		aug[0] = 1
		copy(aug[1:], row)
		for a := 0; a < p; a++ {
			xty[a] += aug[a] * y[i]
			for b := a; b < p; b++ {
				xtx[a*p+b] += aug[a] * aug[b]
			}
		}
	}
	for a := 0; a < p; a++ {
		for b := 0; b < a; b++ {
			xtx[a*p+b] = xtx[b*p+a]
		}
		if a > 0 {
			xtx[a*p+a] += lambda
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(p, xtx)); !ok {
		return nil, errors.New("linear: normal equations are not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, mat.NewVecDense(p, xty)); err != nil {
		return nil, fmt.Errorf("linear: solve: %w", err)
	}

	coef := make([]float64, p-1)
	for j := range coef {
		coef[j] = beta.AtVec(j + 1)
	}
	return &LinearRegressor{Intercept: beta.AtVec(0), Coef: coef}, nil
}

// Name returns the model identifier.
func (m *LinearRegressor) Name() string {
	return string(KindLinear)
}

// Features returns the number of coefficients.
func (m *LinearRegressor) Features() int {
	return len(m.Coef)
}

// Predict returns Intercept + Coef·x.
func (m *LinearRegressor) Predict(_ context.Context, x []float64) (float64, error) {
	if len(x) != len(m.Coef) {
		return 0, fmt.Errorf("%w: linear model expects %d features, got %d", ErrDimension, len(m.Coef), len(x))
	}
	out := m.Intercept
	for i, v := range x {
		out += m.Coef[i] * v
	}
	return out, nil
}

func (m *LinearRegressor) validate() error {
	if len(m.Coef) == 0 {
		return errors.New("linear model has no coefficients")
	}
	return nil
}
