// Package artifacts is the read-only store of fitted cascade stages.
//
// The six stages form a closed set: three future-quarter stages (Q1→Q2,
// Q2→Q3, Q3→Q4) and three to-final stages (Q1→Final, Q2→Final, Q3→Final).
// A Store is built once at startup from a storage bundle and shared by all
// requests without locking.
package artifacts

import (
	"context"
	"fmt"

	"github.com/HatiCode/gradecast/pkg/features"
	"github.com/HatiCode/gradecast/pkg/grades"
	"github.com/HatiCode/gradecast/pkg/models"
)

// StageName identifies one of the six stages.
type StageName string

const (
	Q1ToQ2    StageName = "q1_to_q2"
	Q2ToQ3    StageName = "q2_to_q3"
	Q3ToQ4    StageName = "q3_to_q4"
	Q1ToFinal StageName = "q1_to_final"
	Q2ToFinal StageName = "q2_to_final"
	Q3ToFinal StageName = "q3_to_final"
)

// StageKind separates stages that forecast a quarter from stages that forecast the final grade.
type StageKind int

const (
	FutureQuarter StageKind = iota
	ToFinal
)

type stageInfo struct {
	kind   StageKind
	source grades.Quarter
	target grades.Quarter // zero for to-final stages
}

var stageTable = map[StageName]stageInfo{
	Q1ToQ2:    {kind: FutureQuarter, source: grades.Q1, target: grades.Q2},
	Q2ToQ3:    {kind: FutureQuarter, source: grades.Q2, target: grades.Q3},
	Q3ToQ4:    {kind: FutureQuarter, source: grades.Q3, target: grades.Q4},
	Q1ToFinal: {kind: ToFinal, source: grades.Q1},
	Q2ToFinal: {kind: ToFinal, source: grades.Q2},
	Q3ToFinal: {kind: ToFinal, source: grades.Q3},
}

// AllStages lists every stage in a stable order.
func AllStages() []StageName {
	return []StageName{Q1ToFinal, Q2ToFinal, Q3ToFinal, Q1ToQ2, Q2ToQ3, Q3ToQ4}
}

// FutureStage returns the stage forecasting the quarter after from.
func FutureStage(from grades.Quarter) (StageName, bool) {
	for name, info := range stageTable {
		if info.kind == FutureQuarter && info.source == from {
			return name, true
		}
	}
	return "", false
}

// FinalStage returns the to-final stage fed by grades Q1..from.
func FinalStage(from grades.Quarter) (StageName, bool) {
	for name, info := range stageTable {
		if info.kind == ToFinal && info.source == from {
			return name, true
		}
	}
	return "", false
}

// Valid reports whether n is one of the six stages.
func (n StageName) Valid() bool {
	_, ok := stageTable[n]
	return ok
}

// Kind returns the stage kind.
func (n StageName) Kind() StageKind {
	return stageTable[n].kind
}

// Source returns the last quarter the stage consumes.
func (n StageName) Source() grades.Quarter {
	return stageTable[n].source
}

// Target returns the forecast quarter. ok is false for to-final stages.
func (n StageName) Target() (grades.Quarter, bool) {
	info := stageTable[n]
	return info.target, info.kind == FutureQuarter
}

// Label returns a human-readable name such as "Q1→Q2" or "Q2→Final".
func (n StageName) Label() string {
	info, ok := stageTable[n]
	if !ok {
		return string(n)
	}
	if info.kind == ToFinal {
		return info.source.String() + "→Final"
	}
	return info.source.String() + "→" + info.target.String()
}

// Stage is one fitted regression step: scaler, model and an optional column schema.
type Stage struct {
	name   StageName
	scaler *models.StandardScaler
	model  models.Regressor
	schema []string
}

// NewStage assembles a stage and checks that its pieces agree on dimensions.
func NewStage(name StageName, scaler *models.StandardScaler, model models.Regressor, schema []string) (*Stage, error) {
	if !name.Valid() {
		return nil, fmt.Errorf("unknown stage %q", name)
	}
	if scaler == nil || model == nil {
		return nil, fmt.Errorf("stage %s: scaler and model are required", name)
	}
	if err := scaler.Validate(); err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	if len(schema) > 0 && len(schema) != scaler.Features() {
		return nil, fmt.Errorf("stage %s: schema has %d columns, scaler expects %d", name, len(schema), scaler.Features())
	}
	if n := model.Features(); n >= 0 && n != scaler.Features() {
		return nil, fmt.Errorf("stage %s: model expects %d features, scaler produces %d", name, n, scaler.Features())
	}

	return &Stage{
		name:   name,
		scaler: scaler,
		model:  model,
		schema: append([]string(nil), schema...),
	}, nil
}

// Name returns the stage identifier.
func (s *Stage) Name() StageName {
	return s.name
}

// Schema returns a copy of the recorded column schema, or nil.
func (s *Stage) Schema() []string {
	if len(s.schema) == 0 {
		return nil
	}
	return append([]string(nil), s.schema...)
}

// Model returns the stage's regressor.
func (s *Stage) Model() models.Regressor {
	return s.model
}

// Invoke runs row through the stage: schema selection, scaling, then the model.
// A row that does not match the schema fails with a *features.SchemaMismatchError.
func (s *Stage) Invoke(ctx context.Context, row features.Row) (float64, error) {
	if len(s.schema) > 0 {
		selected, err := row.Select(s.schema)
		if err != nil {
			return 0, fmt.Errorf("stage %s: %w", s.name.Label(), err)
		}
		row = selected
	}

	x, err := s.scaler.Transform(row.Values())
	if err != nil {
		return 0, fmt.Errorf("stage %s scale: %w", s.name.Label(), err)
	}

	y, err := s.model.Predict(ctx, x)
	if err != nil {
		return 0, fmt.Errorf("stage %s predict: %w", s.name.Label(), err)
	}
	return y, nil
}
