package baseline

import (
	"errors"
	"testing"

	"github.com/HatiCode/gradecast/pkg/grades"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name         string
		final        float64
		classAverage float64
		wantAvg      float64
		wantDiff     float64
		wantBucket   Bucket
	}{
		{name: "above", final: 90, classAverage: 0.7, wantAvg: 70, wantDiff: 20, wantBucket: AboveAverage},
		{name: "below", final: 50, classAverage: 0.7, wantAvg: 70, wantDiff: -20, wantBucket: BelowAverage},
		{name: "equal", final: 75, classAverage: 0.75, wantAvg: 75, wantDiff: 0, wantBucket: Average},
		{name: "rounding", final: 84.126, classAverage: 0.83333, wantAvg: 83.33, wantDiff: 0.79, wantBucket: AboveAverage},
		// Difference rounds to zero but the bucket follows the raw value.
		{name: "tiny positive", final: 80.001, classAverage: 0.8, wantAvg: 80, wantDiff: 0, wantBucket: AboveAverage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.final, tt.classAverage)
			if got.ClassAverage != tt.wantAvg {
				t.Errorf("ClassAverage = %v, want %v", got.ClassAverage, tt.wantAvg)
			}
			if got.Difference != tt.wantDiff {
				t.Errorf("Difference = %v, want %v", got.Difference, tt.wantDiff)
			}
			if got.Bucket != tt.wantBucket {
				t.Errorf("Bucket = %q, want %q", got.Bucket, tt.wantBucket)
			}
		})
	}
}

func TestNew(t *testing.T) {
	if _, err := New(map[string]float64{"q1": 0.8}); !errors.Is(err, ErrMissingFinal) {
		t.Errorf("New() without final: error = %v, want ErrMissingFinal", err)
	}
	if _, err := New(map[string]float64{"final": 1.2}); err == nil {
		t.Error("New() with out-of-range value: error = nil")
	}

	src := map[string]float64{"q1": 0.81, "final": 0.84}
	b, err := New(src)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	src["final"] = 0
	if b.Final() != 0.84 {
		t.Errorf("Final() = %v, want 0.84 (baseline must not alias input)", b.Final())
	}
	if v, ok := b.Quarter(grades.Q1); !ok || v != 0.81 {
		t.Errorf("Quarter(Q1) = %v, %v", v, ok)
	}
	if keys := b.Keys(); len(keys) != 2 || keys[0] != "final" {
		t.Errorf("Keys() = %v", keys)
	}
}
