// Package predictor is the request boundary of the prediction service.
//
// One request flows:
//
//	validate → cascade → policy → baseline comparison → response
//
// Every failure is converted into a structured response; callers pick the
// transport status with IsInvalid.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/HatiCode/gradecast/pkg/api"
	"github.com/HatiCode/gradecast/pkg/artifacts"
	"github.com/HatiCode/gradecast/pkg/baseline"
	"github.com/HatiCode/gradecast/pkg/cascade"
	"github.com/HatiCode/gradecast/pkg/features"
	"github.com/HatiCode/gradecast/pkg/grades"
	"github.com/HatiCode/gradecast/pkg/policy"
)

// Artifacts is the read-only artifact set a Service predicts with.
// *artifacts.Store implements it.
type Artifacts interface {
	cascade.Stages
	Baseline() baseline.Baseline
	Categories() grades.Categories
	Names() []string
}

// Recorder receives per-request measurements. Implementations must be safe
// for concurrent use.
type Recorder interface {
	RecordPredict(path, status string, d time.Duration)
	RecordStage(stage string, d time.Duration)
	RecordError(component, reason string)
}

// Options tune how requests are interpreted.
type Options struct {
	Policy       policy.Policy
	ZeroIsAbsent bool
	Clamp        bool
}

// DefaultOptions returns the stock policy with zero-as-absent and clamping on.
func DefaultOptions() Options {
	return Options{
		Policy:       policy.Default(),
		ZeroIsAbsent: true,
		Clamp:        true,
	}
}

// Service answers prediction requests. It is safe for concurrent use.
type Service struct {
	artifacts    Artifacts
	executor     *cascade.Executor
	policy       policy.Policy
	zeroIsAbsent bool
	metrics      Recorder
	logger       *slog.Logger
}

// New creates a Service. metrics may be nil.
func New(a Artifacts, opts Options, metrics Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	builder := features.NewBuilderWithCategories(a.Categories())
	return &Service{
		artifacts:    a,
		executor:     cascade.NewExecutor(a, cascade.WithClamp(opts.Clamp), cascade.WithBuilder(builder)),
		policy:       opts.Policy,
		zeroIsAbsent: opts.ZeroIsAbsent,
		metrics:      metrics,
		logger:       logger,
	}
}

// Predict serves one request. On failure the returned response is the
// structured failure body and err carries the cause.
func (s *Service) Predict(ctx context.Context, req api.PredictRequest) (api.PredictResponse, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		s.fail("request", err)
		return api.Failure(err), err
	}

	res, err := s.executor.Run(ctx, req.Record(s.zeroIsAbsent))
	if err != nil {
		s.fail("cascade", err)
		return api.Failure(err), err
	}

	resp := s.respond(res)

	if s.metrics != nil {
		for _, st := range res.Stages {
			s.metrics.RecordStage(string(st.Stage), st.Duration)
		}
		s.metrics.RecordPredict(res.Path.String(), resp.FinalGrade.Status, time.Since(start))
	}

	s.logger.Debug("prediction complete",
		"path", res.Path.String(),
		"stages", len(res.Stages),
		"final", resp.FinalGrade.Percentage,
		"status", resp.FinalGrade.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return resp, nil
}

func (s *Service) respond(res cascade.Result) api.PredictResponse {
	finalPct := res.Final * 100
	cmp := baseline.Compare(finalPct, s.artifacts.Baseline().Final())

	return api.PredictResponse{
		Success:         true,
		CurrentQuarter:  int(res.Current),
		EnteredGrades:   percentages(res.Entered),
		PredictedGrades: percentages(res.Predicted),
		FinalGrade: &api.FinalGrade{
			Percentage: grades.Round2(finalPct),
			Status:     string(s.policy.Status(res.Final)),
			Confidence: s.policy.ConfidenceFor(res.Current),
		},
		Comparison: &api.Comparison{
			ClassAverage: cmp.ClassAverage,
			Difference:   cmp.Difference,
			Percentile:   string(cmp.Bucket),
		},
	}
}

func percentages(set grades.Set) map[string]float64 {
	out := make(map[string]float64, set.Len())
	for _, q := range set.Known() {
		v, _ := set.Get(q)
		out[q.String()] = grades.Percent(v)
	}
	return out
}

func (s *Service) fail(component string, err error) {
	reason := "internal"
	switch {
	case IsInvalid(err):
		reason = "invalid_input"
		s.logger.Debug("rejected prediction request", "component", component, "error", err)
	case errors.Is(err, features.ErrSchemaMismatch):
		reason = "schema_mismatch"
		s.logger.Error("artifact schema mismatch", "component", component, "error", err)
	default:
		s.logger.Error("prediction failed", "component", component, "error", err)
	}

	if s.metrics != nil {
		s.metrics.RecordError(component, reason)
	}
}

// Health reports liveness and the loaded stage names.
func (s *Service) Health() api.HealthResponse {
	return api.HealthResponse{
		Status: "healthy",
		Models: s.artifacts.Names(),
	}
}

// Ready reports whether every stage resolves. Artifacts are loaded before the
// service is built and never change, so this involves no I/O.
func (s *Service) Ready() error {
	for _, name := range artifacts.AllStages() {
		if _, err := s.artifacts.Stage(name); err != nil {
			return fmt.Errorf("stage %s unavailable: %w", name, err)
		}
	}
	return nil
}

// IsInvalid reports whether err is an input validation failure.
func IsInvalid(err error) bool {
	return errors.Is(err, cascade.ErrInvalidInput)
}

var _ Artifacts = (*artifacts.Store)(nil)
