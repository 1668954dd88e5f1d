package training

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HatiCode/gradecast/pkg/artifacts"
	"github.com/HatiCode/gradecast/pkg/features"
	"github.com/HatiCode/gradecast/pkg/grades"
	"github.com/HatiCode/gradecast/pkg/models"
)

var sections = []string{"BANABA", "CABALLERO", "GEMELINA"}

// syntheticCSV builds n rows where every quarter adds 0.01 to the previous
// one and the final grade is the mean of the four quarters.
func syntheticCSV(n int) string {
	var sb strings.Builder
	sb.WriteString("1st_quarter,2nd_quarter,3rd_quarter,4th_quarter,final_grade,")
	sb.WriteString("section_BANABA,section_CABALLERO,section_GEMELINA,gender_FEMALE,gender_MALE,")
	sb.WriteString("remarks_FAILED,remarks_PASSED,year_2023\n")

	for i := 0; i < n; i++ {
		q1 := 0.7 + 0.005*float64(i%40)
		q2, q3, q4 := q1+0.01, q1+0.02, q1+0.03
		final := (q1 + q2 + q3 + q4) / 4

		sec := make([]string, len(sections))
		for j := range sections {
			sec[j] = "False"
			if j == i%len(sections) {
				sec[j] = "True"
			}
		}
		female, male := "True", "False"
		if i%2 == 1 {
			female, male = "False", "True"
		}

		fmt.Fprintf(&sb, "%.4f,%.4f,%.4f,%.4f,%.6f,%s,%s,%s,False,True,1\n",
			q1, q2, q3, q4, final, strings.Join(sec, ","), female, male)
	}
	return sb.String()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReadCSV(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(syntheticCSV(10)))
	require.NoError(t, err)

	assert.Equal(t, 10, ds.Len())
	assert.NotContains(t, ds.Columns(), "year_2023")
	assert.Equal(t, []string{
		"section_BANABA", "section_CABALLERO", "section_GEMELINA",
		"gender_FEMALE", "gender_MALE",
		"remarks_FAILED", "remarks_PASSED",
	}, ds.CategoricalColumns())

	passed, err := ds.Column("remarks_PASSED")
	require.NoError(t, err)
	for _, v := range passed {
		assert.Equal(t, 1.0, v)
	}

	X, err := ds.Matrix([]string{"2nd_quarter", "1st_quarter"})
	require.NoError(t, err)
	assert.InDelta(t, 0.71, X[0][0], 1e-9)
	assert.InDelta(t, 0.70, X[0][1], 1e-9)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "empty input", input: "", wantErr: "empty"},
		{name: "header only", input: "1st_quarter,2nd_quarter,3rd_quarter,4th_quarter,final_grade\n", wantErr: "no rows"},
		{name: "missing final", input: "1st_quarter,2nd_quarter,3rd_quarter,4th_quarter\n0.8,0.8,0.8,0.8\n", wantErr: `"final_grade"`},
		{name: "duplicate column", input: "1st_quarter,1st_quarter\n0.8,0.8\n", wantErr: "duplicate"},
		{name: "non-numeric cell", input: "1st_quarter,2nd_quarter,3rd_quarter,4th_quarter,final_grade\n0.8,abc,0.8,0.8,0.8\n", wantErr: "line 2"},
		{name: "empty cell", input: "1st_quarter,2nd_quarter,3rd_quarter,4th_quarter,final_grade\n0.8,,0.8,0.8,0.8\n", wantErr: "empty cell"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClassAverages(t *testing.T) {
	csv := "1st_quarter,2nd_quarter,3rd_quarter,4th_quarter,final_grade\n" +
		"0.8,0.7,0.9,0.6,0.75\n" +
		"0.9,0.9,0.7,0.8,0.85\n"
	ds, err := ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)

	avg, err := ds.ClassAverages()
	require.NoError(t, err)
	assert.InDelta(t, 0.85, avg["q1"], 1e-12)
	assert.InDelta(t, 0.8, avg["q2"], 1e-12)
	assert.InDelta(t, 0.8, avg["q3"], 1e-12)
	assert.InDelta(t, 0.7, avg["q4"], 1e-12)
	assert.InDelta(t, 0.8, avg["final"], 1e-12)
}

func TestSplit(t *testing.T) {
	train, test, err := Split(10, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 2)
	assert.Len(t, train, 8)

	seen := map[int]bool{}
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i], "index %d appears twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, 10)

	train2, test2, err := Split(10, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, _, err = Split(1, 0.2, 42)
	assert.Error(t, err)
	_, _, err = Split(10, 1, 42)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.Error(t, Config{Model: "svm"}.Validate())
	assert.Error(t, Config{TestFraction: 1.5}.Validate())
	assert.Error(t, Config{Ridge: -1}.Validate())
	assert.Error(t, Config{Name: "../x"}.Validate())
}

func TestFeatureColumns(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(syntheticCSV(5)))
	require.NoError(t, err)

	cols := FeatureColumns(ds, artifacts.Q2ToFinal)
	assert.Equal(t, []string{"1st_quarter", "2nd_quarter"}, cols[:2])
	assert.Len(t, cols, 2+7)

	assert.Equal(t, "2nd_quarter", TargetColumn(artifacts.Q1ToQ2))
	assert.Equal(t, "4th_quarter", TargetColumn(artifacts.Q3ToQ4))
	assert.Equal(t, ColumnFinal, TargetColumn(artifacts.Q3ToFinal))
}

func TestTrainer_Fit_Linear(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(syntheticCSV(60)))
	require.NoError(t, err)

	tr, err := New(Config{Name: "synthetic", Model: ModelLinear}, quietLogger())
	require.NoError(t, err)
	tr.now = func() time.Time { return time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC) }

	b, err := tr.Fit(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, "synthetic", b.Name)
	assert.Equal(t, "2026-10-16T10:00:00Z", b.Version)
	assert.Len(t, b.Stages, 6)
	assert.Len(t, b.Evaluation, 6)
	assert.Contains(t, b.Baseline, "final")

	for name, ev := range b.Evaluation {
		assert.Equal(t, 12, ev.TestRows, name)
		assert.Equal(t, 48, ev.TrainRows, name)
		assert.Greater(t, ev.R2, 0.99, name)
		assert.Less(t, ev.MAE, 0.001, name)
	}

	spec := b.Stages[string(artifacts.Q1ToQ2)]
	assert.Equal(t, "2nd_quarter", spec.Target)
	assert.Equal(t, "1st_quarter", spec.Schema[0])
	assert.Equal(t, models.KindLinear, spec.Model.Kind)

	store, err := artifacts.FromBundle(b, models.BuildOptions{})
	require.NoError(t, err)

	stage, err := store.Stage(artifacts.Q1ToQ2)
	require.NoError(t, err)

	var known grades.Set
	known.Put(grades.Q1, 0.8)
	row := features.NewBuilderWithCategories(store.Categories()).Build(known, "CABALLERO", "MALE")

	got, err := stage.Invoke(context.Background(), row)
	require.NoError(t, err)
	assert.InDelta(t, 0.81, got, 0.001)
}

func TestTrainer_Fit_GBR(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(syntheticCSV(40)))
	require.NoError(t, err)

	tr, err := New(Config{GB: models.GBParams{Estimators: 20}, Parallelism: 2}, quietLogger())
	require.NoError(t, err)

	b, err := tr.Fit(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, "default", b.Name)
	for name, spec := range b.Stages {
		assert.Equal(t, models.KindGBR, spec.Model.Kind, name)
		require.NotNil(t, spec.Model.GBR, name)
		assert.Len(t, spec.Model.GBR.Trees, 20, name)
	}

	again, err := tr.Fit(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, b.Stages, again.Stages, "fitting is deterministic")
}

func TestTrainer_Fit_Canceled(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(syntheticCSV(40)))
	require.NoError(t, err)

	tr, err := New(Config{}, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Fit(ctx, ds)
	assert.Error(t, err)
}
