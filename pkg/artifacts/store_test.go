package artifacts_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/HatiCode/gradecast/pkg/artifacts"
	"github.com/HatiCode/gradecast/pkg/artifacts/artifactstest"
	"github.com/HatiCode/gradecast/pkg/features"
	"github.com/HatiCode/gradecast/pkg/grades"
	"github.com/HatiCode/gradecast/pkg/models"
	"github.com/HatiCode/gradecast/pkg/storage"
)

func TestStageName_Labels(t *testing.T) {
	tests := []struct {
		name   artifacts.StageName
		label  string
		kind   artifacts.StageKind
		source grades.Quarter
	}{
		{artifacts.Q1ToQ2, "Q1→Q2", artifacts.FutureQuarter, grades.Q1},
		{artifacts.Q2ToQ3, "Q2→Q3", artifacts.FutureQuarter, grades.Q2},
		{artifacts.Q3ToQ4, "Q3→Q4", artifacts.FutureQuarter, grades.Q3},
		{artifacts.Q1ToFinal, "Q1→Final", artifacts.ToFinal, grades.Q1},
		{artifacts.Q2ToFinal, "Q2→Final", artifacts.ToFinal, grades.Q2},
		{artifacts.Q3ToFinal, "Q3→Final", artifacts.ToFinal, grades.Q3},
	}
	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			if got := tt.name.Label(); got != tt.label {
				t.Errorf("Label() = %q, want %q", got, tt.label)
			}
			if got := tt.name.Kind(); got != tt.kind {
				t.Errorf("Kind() = %v, want %v", got, tt.kind)
			}
			if got := tt.name.Source(); got != tt.source {
				t.Errorf("Source() = %v, want %v", got, tt.source)
			}
		})
	}

	if artifacts.StageName("q4_to_final").Valid() {
		t.Error("q4_to_final should not be a valid stage")
	}
	if n, ok := artifacts.FutureStage(grades.Q2); !ok || n != artifacts.Q2ToQ3 {
		t.Errorf("FutureStage(Q2) = %v, %v", n, ok)
	}
	if _, ok := artifacts.FutureStage(grades.Q4); ok {
		t.Error("FutureStage(Q4) should not exist")
	}
	if n, ok := artifacts.FinalStage(grades.Q3); !ok || n != artifacts.Q3ToFinal {
		t.Errorf("FinalStage(Q3) = %v, %v", n, ok)
	}
}

func TestFromBundle_Complete(t *testing.T) {
	s := artifactstest.Store(t)

	if s.Len() != 6 {
		t.Errorf("Len() = %d, want 6", s.Len())
	}
	names := s.Names()
	if len(names) != 6 || names[0] != "q1_to_final" {
		t.Errorf("Names() = %v", names)
	}
	if s.Baseline().Final() != artifactstest.ClassFinal {
		t.Errorf("Baseline().Final() = %v", s.Baseline().Final())
	}
	c := s.Categories()
	if len(c.Sections) != 3 || len(c.Genders) != 2 {
		t.Errorf("Categories() = %+v", c)
	}
}

func TestFromBundle_Incomplete(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *storage.Bundle)
	}{
		{
			name:   "missing stage",
			mutate: func(b *storage.Bundle) { delete(b.Stages, "q2_to_q3") },
		},
		{
			name:   "missing baseline final",
			mutate: func(b *storage.Bundle) { delete(b.Baseline, "final") },
		},
		{
			name: "to-final stage without schema",
			mutate: func(b *storage.Bundle) {
				st := b.Stages["q1_to_final"]
				st.Schema = nil
				b.Stages["q1_to_final"] = st
			},
		},
		{
			name: "unknown stage",
			mutate: func(b *storage.Bundle) {
				b.Stages["q4_to_q5"] = b.Stages["q1_to_q2"]
			},
		},
		{
			name: "schema and scaler disagree",
			mutate: func(b *storage.Bundle) {
				st := b.Stages["q3_to_final"]
				st.Schema = st.Schema[1:]
				b.Stages["q3_to_final"] = st
			},
		},
		{
			name: "model and scaler disagree",
			mutate: func(b *storage.Bundle) {
				st := b.Stages["q1_to_q2"]
				st.Model = models.Spec{Kind: models.KindLinear, Linear: &models.LinearRegressor{Coef: []float64{1}}}
				b.Stages["q1_to_q2"] = st
			},
		},
		{
			name: "broken model",
			mutate: func(b *storage.Bundle) {
				st := b.Stages["q2_to_q3"]
				st.Model = models.Spec{Kind: "forest"}
				b.Stages["q2_to_q3"] = st
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := artifactstest.Bundle("broken")
			tt.mutate(&b)

			_, err := artifacts.FromBundle(b, models.BuildOptions{})
			if !errors.Is(err, artifacts.ErrIncompleteBundle) {
				t.Errorf("FromBundle() error = %v, want ErrIncompleteBundle", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()

	if _, err := artifacts.Load(ctx, st, "default", models.BuildOptions{}); !errors.Is(err, artifacts.ErrIncompleteBundle) {
		t.Fatalf("Load() on empty store: error = %v, want ErrIncompleteBundle", err)
	}

	if err := st.Put(ctx, artifactstest.Bundle("default")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	s, err := artifacts.Load(ctx, st, "default", models.BuildOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if name, version := s.Bundle(); name != "default" || version != "test" {
		t.Errorf("Bundle() = %s, %s", name, version)
	}
}

func TestStage_Invoke(t *testing.T) {
	s := artifactstest.Store(t)
	b := features.NewBuilder()
	ctx := context.Background()

	var known grades.Set
	known.Put(grades.Q1, 0.8)
	known.Put(grades.Q2, 0.9)
	row := b.Build(known, "BANABA", "FEMALE")

	final, err := s.Stage(artifacts.Q2ToFinal)
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	got, err := final.Invoke(ctx, row)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if math.Abs(got-0.85) > 1e-12 {
		t.Errorf("Invoke() = %v, want 0.85", got)
	}

	next, _ := s.Stage(artifacts.Q2ToQ3)
	got, err = next.Invoke(ctx, row)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if math.Abs(got-(0.9+artifactstest.Step)) > 1e-12 {
		t.Errorf("Invoke() = %v, want %v", got, 0.9+artifactstest.Step)
	}
}

func TestStage_Invoke_SchemaMismatch(t *testing.T) {
	s := artifactstest.Store(t)
	b := features.NewBuilder()

	// Q1..Q3 known but the Q1→Final stage only accepts 1st_quarter.
	var known grades.Set
	known.Put(grades.Q1, 0.8)
	known.Put(grades.Q2, 0.8)
	known.Put(grades.Q3, 0.8)

	st, _ := s.Stage(artifacts.Q1ToFinal)
	_, err := st.Invoke(context.Background(), b.Build(known, "BANABA", "MALE"))
	if !errors.Is(err, features.ErrSchemaMismatch) {
		t.Fatalf("Invoke() error = %v, want ErrSchemaMismatch", err)
	}

	var mismatch *features.SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error %v is not a *SchemaMismatchError", err)
	}
	if len(mismatch.Unexpected) != 2 {
		t.Errorf("Unexpected = %v, want 2 columns", mismatch.Unexpected)
	}
}

func TestNewStage_Invalid(t *testing.T) {
	scaler := &models.StandardScaler{Mean: []float64{0, 0}, Scale: []float64{1, 1}}
	model := &models.LinearRegressor{Coef: []float64{1, 1}}

	if _, err := artifacts.NewStage("bogus", scaler, model, nil); err == nil {
		t.Error("NewStage() with unknown name: error = nil")
	}
	if _, err := artifacts.NewStage(artifacts.Q1ToQ2, nil, model, nil); err == nil {
		t.Error("NewStage() without scaler: error = nil")
	}
	if _, err := artifacts.NewStage(artifacts.Q1ToQ2, scaler, model, []string{"a"}); err == nil {
		t.Error("NewStage() with short schema: error = nil")
	}
	st, err := artifacts.NewStage(artifacts.Q1ToQ2, scaler, model, nil)
	if err != nil {
		t.Fatalf("NewStage() error = %v", err)
	}
	if st.Schema() != nil {
		t.Errorf("Schema() = %v, want nil", st.Schema())
	}
}
