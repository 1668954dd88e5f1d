package artifacts

import (
	"context"
	"errors"
	"fmt"

	"github.com/HatiCode/gradecast/pkg/baseline"
	"github.com/HatiCode/gradecast/pkg/grades"
	"github.com/HatiCode/gradecast/pkg/models"
	"github.com/HatiCode/gradecast/pkg/storage"
)

// ErrIncompleteBundle marks an artifact set the predictor must not serve with.
var ErrIncompleteBundle = errors.New("incomplete artifact bundle")

// Store holds the six stages and the class baseline. It is immutable after
// construction.
type Store struct {
	name     string
	version  string
	stages   map[StageName]*Stage
	baseline baseline.Baseline
}

// New validates that every stage is present, that to-final stages carry a
// schema, and that the baseline has a final entry.
func New(stages []*Stage, base baseline.Baseline) (*Store, error) {
	byName := make(map[StageName]*Stage, len(stages))
	for _, st := range stages {
		if st == nil {
			continue
		}
		if _, dup := byName[st.name]; dup {
			return nil, fmt.Errorf("%w: duplicate stage %s", ErrIncompleteBundle, st.name)
		}
		byName[st.name] = st
	}

	for _, name := range AllStages() {
		st, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing stage %s", ErrIncompleteBundle, name)
		}
		if name.Kind() == ToFinal && len(st.schema) == 0 {
			return nil, fmt.Errorf("%w: stage %s has no feature schema", ErrIncompleteBundle, name)
		}
	}
	if _, ok := base[baseline.KeyFinal]; !ok {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteBundle, baseline.ErrMissingFinal)
	}

	return &Store{
		stages:   byName,
		baseline: base,
	}, nil
}

// FromBundle builds a store from a stored bundle. Any problem with the bundle
// is reported as ErrIncompleteBundle.
func FromBundle(b storage.Bundle, opts models.BuildOptions) (*Store, error) {
	base, err := baseline.New(b.Baseline)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteBundle, err)
	}

	stages := make([]*Stage, 0, len(b.Stages))
	for key, spec := range b.Stages {
		name := StageName(key)
		if !name.Valid() {
			return nil, fmt.Errorf("%w: unknown stage %q", ErrIncompleteBundle, key)
		}
		model, err := spec.Model.Build(key, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: stage %s model: %v", ErrIncompleteBundle, key, err)
		}
		scaler := spec.Scaler
		st, err := NewStage(name, &scaler, model, spec.Schema)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIncompleteBundle, err)
		}
		stages = append(stages, st)
	}

	s, err := New(stages, base)
	if err != nil {
		return nil, err
	}
	s.name = b.Name
	s.version = b.Version
	return s, nil
}

// Load reads the named bundle from st and builds a store from it.
func Load(ctx context.Context, st storage.Store, name string, opts models.BuildOptions) (*Store, error) {
	b, found, err := st.GetLatest(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load bundle %q: %w", name, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: bundle %q not found", ErrIncompleteBundle, name)
	}
	return FromBundle(b, opts)
}

// Stage returns the named stage.
func (s *Store) Stage(name StageName) (*Stage, error) {
	st, ok := s.stages[name]
	if !ok {
		return nil, fmt.Errorf("stage %s not loaded", name)
	}
	return st, nil
}

// Baseline returns the class baseline.
func (s *Store) Baseline() baseline.Baseline {
	return s.baseline
}

// Names returns the loaded stage names in stable order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.stages))
	for _, n := range AllStages() {
		if _, ok := s.stages[n]; ok {
			names = append(names, string(n))
		}
	}
	return names
}

// Len returns the number of loaded stages.
func (s *Store) Len() int {
	return len(s.stages)
}

// Bundle returns the name and version of the bundle the store was built from.
func (s *Store) Bundle() (name, version string) {
	return s.name, s.version
}

// Categories derives the section and gender sets the stages were trained on
// from the to-final schemas. Falls back to the default sets.
func (s *Store) Categories() grades.Categories {
	for _, n := range []StageName{Q3ToFinal, Q2ToFinal, Q1ToFinal} {
		st, ok := s.stages[n]
		if !ok {
			continue
		}
		if c := grades.CategoriesFromColumns(st.schema); !c.Empty() {
			return c
		}
	}
	return grades.DefaultCategories()
}
