// Package storage persists artifact bundles: the fitted stages, the class
// baseline and the holdout evaluation produced by the trainer.
//
// Backends:
//   - MemoryStore: in-process, for tests and single-binary setups
//   - FileStore: one JSON document per bundle in a directory
//   - RedisStore: shared storage so several predictor replicas load the same artifacts
//
// Bundles are written once by the trainer and read once at predictor startup.
package storage

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/HatiCode/gradecast/pkg/models"
)

// Bundle is the serialized artifact set for one trained cascade.
type Bundle struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generatedAt"`

	// Baseline maps "q1".."q4" and "final" to the historical mean normalized grade.
	Baseline map[string]float64 `json:"baseline"`

	// Stages maps a stage name (e.g. "q1_to_q2") to its fitted artifacts.
	Stages map[string]StageSpec `json:"stages"`

	// Evaluation holds holdout metrics per stage. Informational only.
	Evaluation map[string]Evaluation `json:"evaluation,omitempty"`
}

// StageSpec is one fitted stage.
type StageSpec struct {
	// Target is the training column the stage predicts.
	Target string `json:"target,omitempty"`

	// Schema is the ordered feature-column list the model was fitted on.
	Schema []string `json:"schema,omitempty"`

	Scaler models.StandardScaler `json:"scaler"`
	Model  models.Spec           `json:"model"`
}

// Evaluation summarizes holdout quality for a stage.
type Evaluation struct {
	R2        float64 `json:"r2"`
	MAE       float64 `json:"mae"`
	TrainRows int     `json:"trainRows"`
	TestRows  int     `json:"testRows"`
}

// Store reads and writes bundles by name.
type Store interface {
	Put(ctx context.Context, bundle Bundle) error
	GetLatest(ctx context.Context, name string) (Bundle, bool, error)
}

var bundleNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_.-]{0,251}[a-zA-Z0-9])?$`)

// ValidateName checks that a bundle name is safe to use as a file name or key suffix.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("bundle name cannot be empty")
	}
	if !bundleNameRegex.MatchString(name) {
		return fmt.Errorf("invalid bundle name %q: only alphanumeric, dots, hyphens, and underscores allowed", name)
	}
	return nil
}
