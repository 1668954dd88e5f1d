// Package artifactstest builds small deterministic artifact bundles for tests.
//
// Every stage uses an identity scaler and a linear model:
//   - future-quarter stages predict the source quarter grade plus Step
//   - to-final stages predict the mean of the known quarter grades
package artifactstest

import (
	"testing"
	"time"

	"github.com/HatiCode/gradecast/pkg/artifacts"
	"github.com/HatiCode/gradecast/pkg/features"
	"github.com/HatiCode/gradecast/pkg/grades"
	"github.com/HatiCode/gradecast/pkg/models"
	"github.com/HatiCode/gradecast/pkg/storage"
)

// Step is the increment each future-quarter stage adds to its source grade.
const Step = 0.01

// ClassFinal is the baseline final average in generated bundles.
const ClassFinal = 0.8

// Bundle returns a complete bundle named name.
func Bundle(name string) storage.Bundle {
	b := features.NewBuilder()
	stages := make(map[string]storage.StageSpec, 6)

	for _, n := range artifacts.AllStages() {
		schema := b.CanonicalColumns(n.Source())
		coef := make([]float64, len(schema))
		var intercept float64

		if n.Kind() == artifacts.FutureQuarter {
			for i, c := range schema {
				if c == n.Source().Column() {
					coef[i] = 1
				}
			}
			intercept = Step
		} else {
			k := float64(n.Source())
			for i := 0; i < int(n.Source()); i++ {
				coef[i] = 1 / k
			}
		}

		stages[string(n)] = storage.StageSpec{
			Schema: schema,
			Scaler: identityScaler(len(schema)),
			Model: models.Spec{
				Kind:   models.KindLinear,
				Linear: &models.LinearRegressor{Intercept: intercept, Coef: coef},
			},
		}
	}

	return storage.Bundle{
		Name:        name,
		Version:     "test",
		GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Baseline: map[string]float64{
			grades.Q1.Key(): 0.79,
			grades.Q2.Key(): 0.8,
			grades.Q3.Key(): 0.81,
			grades.Q4.Key(): 0.8,
			"final":         ClassFinal,
		},
		Stages: stages,
	}
}

// Store returns a store built from Bundle("test"). It fails the test on error.
func Store(tb testing.TB) *artifacts.Store {
	tb.Helper()
	s, err := artifacts.FromBundle(Bundle("test"), models.BuildOptions{})
	if err != nil {
		tb.Fatalf("artifactstest: build store: %v", err)
	}
	return s
}

func identityScaler(n int) models.StandardScaler {
	s := models.StandardScaler{
		Mean:  make([]float64, n),
		Scale: make([]float64, n),
	}
	for i := range s.Scale {
		s.Scale[i] = 1
	}
	return s
}
