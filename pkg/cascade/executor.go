// Package cascade runs the progressive prediction cascade: it picks an
// execution path from the current quarter, chains the future-quarter stages
// and evaluates the matching to-final stage.
package cascade

import (
	"context"
	"fmt"
	"time"

	"github.com/HatiCode/gradecast/pkg/artifacts"
	"github.com/HatiCode/gradecast/pkg/features"
	"github.com/HatiCode/gradecast/pkg/grades"
)

// Stages resolves a stage by name. *artifacts.Store implements it.
type Stages interface {
	Stage(name artifacts.StageName) (*artifacts.Stage, error)
}

// StageRun records one stage invocation.
type StageRun struct {
	Stage    artifacts.StageName
	Output   float64
	Duration time.Duration
}

// Result is the outcome of one cascade run. Grades are normalized.
type Result struct {
	Path    Path
	Current grades.Quarter

	// Entered holds the supplied grades Q1..Current.
	Entered grades.Set

	// Predicted holds the forecast quarters only.
	Predicted grades.Set

	Final float64

	// FinalIsActual is true on P4, where Final is the mean of real grades.
	FinalIsActual bool

	Stages []StageRun
}

// Option configures an Executor.
type Option func(*Executor)

// WithClamp bounds every stage output to [0, 1] before it is chained or reported.
func WithClamp(on bool) Option {
	return func(e *Executor) { e.clamp = on }
}

// WithBuilder sets the feature builder. Defaults to features.NewBuilder().
func WithBuilder(b *features.Builder) Option {
	return func(e *Executor) { e.builder = b }
}

// Executor runs cascades against a fixed stage set. It holds no per-request
// state and may be shared across goroutines.
type Executor struct {
	stages  Stages
	builder *features.Builder
	clamp   bool
}

// NewExecutor creates an executor. Clamping is on by default.
func NewExecutor(stages Stages, opts ...Option) *Executor {
	e := &Executor{
		stages:  stages,
		builder: features.NewBuilder(),
		clamp:   true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the cascade for rec.
//
// Grades after the current quarter are ignored. Validation failures return a
// *ValidationError; a row that does not fit a stage schema returns an error
// matching features.ErrSchemaMismatch.
func (e *Executor) Run(ctx context.Context, rec grades.Record) (Result, error) {
	if rec.Section == "" {
		return Result{}, Invalid("section", "is required")
	}
	if rec.Gender == "" {
		return Result{}, Invalid("gender", "is required")
	}

	pl, err := selectPlan(rec)
	if err != nil {
		return Result{}, err
	}

	known := rec.Grades.Truncate(pl.current)
	res := Result{
		Path:    pl.path,
		Current: pl.current,
		Entered: known,
	}

	if pl.path == P4 {
		var sum float64
		for _, q := range grades.Quarters {
			v, _ := known.Get(q)
			sum += v
		}
		res.Final = sum / float64(len(grades.Quarters))
		res.FinalIsActual = true
		return res, nil
	}

	working := known
	for _, name := range pl.chain {
		y, err := e.invoke(ctx, &res, name, working, rec)
		if err != nil {
			return Result{}, err
		}
		target, _ := name.Target()
		working.Put(target, y)
		res.Predicted.Put(target, y)
	}

	final, err := e.invoke(ctx, &res, pl.final, known, rec)
	if err != nil {
		return Result{}, err
	}
	res.Final = final

	return res, nil
}

func (e *Executor) invoke(ctx context.Context, res *Result, name artifacts.StageName, known grades.Set, rec grades.Record) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	stage, err := e.stages.Stage(name)
	if err != nil {
		return 0, fmt.Errorf("cascade %s: %w", res.Path, err)
	}

	start := time.Now()
	row := e.builder.Build(known, rec.Section, rec.Gender)
	y, err := stage.Invoke(ctx, row)
	if err != nil {
		return 0, fmt.Errorf("cascade %s: %w", res.Path, err)
	}
	if e.clamp {
		y = clamp01(y)
	}

	res.Stages = append(res.Stages, StageRun{
		Stage:    name,
		Output:   y,
		Duration: time.Since(start),
	})
	return y, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
