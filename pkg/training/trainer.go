package training

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/HatiCode/gradecast/pkg/artifacts"
	"github.com/HatiCode/gradecast/pkg/grades"
	"github.com/HatiCode/gradecast/pkg/models"
	"github.com/HatiCode/gradecast/pkg/storage"
)

// Model kinds the trainer can fit.
const (
	ModelGBR    = "gbr"
	ModelLinear = "linear"
)

// Config controls a training run.
type Config struct {
	// Name is the bundle name. Defaults to "default".
	Name string

	// Model is ModelGBR (default) or ModelLinear.
	Model string

	// TestFraction of rows held out for evaluation. Defaults to 0.2.
	TestFraction float64

	// Seed for the holdout shuffle. Zero means 42.
	Seed int64

	GB models.GBParams

	// Ridge is the L2 penalty for linear stages. Defaults to 1e-6.
	Ridge float64

	// Parallelism bounds how many stages are fitted at once. Zero means GOMAXPROCS.
	Parallelism int
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Model == "" {
		c.Model = ModelGBR
	}
	if c.TestFraction == 0 {
		c.TestFraction = 0.2
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.Ridge == 0 {
		c.Ridge = 1e-6
	}
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.GOMAXPROCS(0)
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Model != ModelGBR && c.Model != ModelLinear {
		return fmt.Errorf("invalid model %q (must be gbr or linear)", c.Model)
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return fmt.Errorf("test fraction must be in (0, 1), got %v", c.TestFraction)
	}
	if c.Ridge < 0 {
		return fmt.Errorf("ridge penalty cannot be negative, got %v", c.Ridge)
	}
	return storage.ValidateName(c.Name)
}

// Trainer fits complete artifact bundles.
type Trainer struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Trainer.
func New(cfg Config, logger *slog.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{cfg: cfg.withDefaults(), logger: logger, now: time.Now}, nil
}

type stageResult struct {
	spec storage.StageSpec
	eval storage.Evaluation
}

// Fit trains all six stages on ds and returns a bundle that loads cleanly
// into an artifact store.
func (t *Trainer) Fit(ctx context.Context, ds *Dataset) (storage.Bundle, error) {
	averages, err := ds.ClassAverages()
	if err != nil {
		return storage.Bundle{}, err
	}

	train, test, err := Split(ds.Len(), t.cfg.TestFraction, t.cfg.Seed)
	if err != nil {
		return storage.Bundle{}, err
	}

	stages := artifacts.AllStages()
	results := make([]stageResult, len(stages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Parallelism)
	for i, name := range stages {
		g.Go(func() error {
			res, err := t.fitStage(gctx, ds, name, train, test)
			if err != nil {
				return fmt.Errorf("stage %s: %w", name.Label(), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return storage.Bundle{}, err
	}

	now := t.now().UTC()
	b := storage.Bundle{
		Name:        t.cfg.Name,
		Version:     now.Format(time.RFC3339),
		GeneratedAt: now,
		Baseline:    averages,
		Stages:      make(map[string]storage.StageSpec, len(stages)),
		Evaluation:  make(map[string]storage.Evaluation, len(stages)),
	}
	for i, name := range stages {
		b.Stages[string(name)] = results[i].spec
		b.Evaluation[string(name)] = results[i].eval
	}

	if _, err := artifacts.FromBundle(b, models.BuildOptions{}); err != nil {
		return storage.Bundle{}, fmt.Errorf("fitted bundle does not load: %w", err)
	}
	return b, nil
}

// FeatureColumns returns the input columns of a stage: the known quarters
// followed by the categorical columns in file order.
func FeatureColumns(ds *Dataset, name artifacts.StageName) []string {
	var cols []string
	for _, q := range grades.Quarters {
		if q > name.Source() {
			break
		}
		cols = append(cols, q.Column())
	}
	return append(cols, ds.CategoricalColumns()...)
}

// TargetColumn returns the column a stage predicts.
func TargetColumn(name artifacts.StageName) string {
	if q, ok := name.Target(); ok {
		return q.Column()
	}
	return ColumnFinal
}

func (t *Trainer) fitStage(ctx context.Context, ds *Dataset, name artifacts.StageName, train, test []int) (stageResult, error) {
	start := time.Now()
	cols := FeatureColumns(ds, name)
	target := TargetColumn(name)

	X, err := ds.Matrix(cols)
	if err != nil {
		return stageResult{}, err
	}
	y, err := ds.Column(target)
	if err != nil {
		return stageResult{}, err
	}

	scaler, err := models.FitStandardScaler(X)
	if err != nil {
		return stageResult{}, err
	}
	Xs, err := scaler.TransformAll(X)
	if err != nil {
		return stageResult{}, err
	}

	model, err := t.fitModel(ctx, pick(Xs, train), pick(y, train))
	if err != nil {
		return stageResult{}, err
	}

	eval, err := evaluate(ctx, model, pick(Xs, test), pick(y, test))
	if err != nil {
		return stageResult{}, err
	}
	eval.TrainRows = len(train)

	spec, err := models.SpecOf(model)
	if err != nil {
		return stageResult{}, err
	}

	t.logger.Info("stage fitted",
		"stage", string(name),
		"target", target,
		"features", len(cols),
		"r2", eval.R2,
		"mae", eval.MAE,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return stageResult{
		spec: storage.StageSpec{
			Target: target,
			Schema: cols,
			Scaler: *scaler,
			Model:  spec,
		},
		eval: eval,
	}, nil
}

func (t *Trainer) fitModel(ctx context.Context, X [][]float64, y []float64) (models.Regressor, error) {
	if t.cfg.Model == ModelLinear {
		return models.FitLinear(ctx, X, y, t.cfg.Ridge)
	}
	return models.FitGradientBoosting(ctx, X, y, t.cfg.GB)
}

// evaluate scores model on a holdout set. An undefined R² (constant targets)
// is reported as 0.
func evaluate(ctx context.Context, model models.Regressor, X [][]float64, y []float64) (storage.Evaluation, error) {
	pred := make([]float64, len(X))
	var absErr float64
	for i, x := range X {
		p, err := model.Predict(ctx, x)
		if err != nil {
			return storage.Evaluation{}, err
		}
		pred[i] = p
		absErr += math.Abs(p - y[i])
	}

	r2 := stat.RSquaredFrom(pred, y, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}
	return storage.Evaluation{
		R2:       r2,
		MAE:      absErr / float64(len(X)),
		TestRows: len(X),
	}, nil
}
