package cascade

import (
	"strings"

	"github.com/HatiCode/gradecast/pkg/artifacts"
	"github.com/HatiCode/gradecast/pkg/grades"
)

// Path is one of the four mutually exclusive execution paths.
type Path int

const (
	P1 Path = iota + 1
	P2
	P3
	P4
)

func (p Path) String() string {
	switch p {
	case P1:
		return "P1"
	case P2:
		return "P2"
	case P3:
		return "P3"
	case P4:
		return "P4"
	default:
		return "invalid"
	}
}

// plan is the stage sequence a path runs. chain stages feed each other;
// final is fed by the initial known grades only. P4 runs no stages.
type plan struct {
	path    Path
	current grades.Quarter
	chain   []artifacts.StageName
	final   artifacts.StageName
}

var plans = map[grades.Quarter]plan{
	grades.Q1: {
		path:    P1,
		current: grades.Q1,
		chain:   []artifacts.StageName{artifacts.Q1ToQ2, artifacts.Q2ToQ3, artifacts.Q3ToQ4},
		final:   artifacts.Q1ToFinal,
	},
	grades.Q2: {
		path:    P2,
		current: grades.Q2,
		chain:   []artifacts.StageName{artifacts.Q2ToQ3, artifacts.Q3ToQ4},
		final:   artifacts.Q2ToFinal,
	},
	grades.Q3: {
		path:    P3,
		current: grades.Q3,
		chain:   []artifacts.StageName{artifacts.Q3ToQ4},
		final:   artifacts.Q3ToFinal,
	},
	grades.Q4: {
		path:    P4,
		current: grades.Q4,
	},
}

// Stages returns the stages p runs, in order.
func (p Path) Stages() []artifacts.StageName {
	for _, pl := range plans {
		if pl.path == p {
			out := append([]artifacts.StageName(nil), pl.chain...)
			if pl.final != "" {
				out = append(out, pl.final)
			}
			return out
		}
	}
	return nil
}

// SelectPath picks the execution path for rec. The current quarter decides
// the path; every grade Q1..current must be present or the record is rejected.
func SelectPath(rec grades.Record) (Path, error) {
	pl, err := selectPlan(rec)
	if err != nil {
		return 0, err
	}
	return pl.path, nil
}

func selectPlan(rec grades.Record) (plan, error) {
	pl, ok := plans[rec.CurrentQuarter]
	if !ok {
		return plan{}, Invalid("currentQuarter", "must be between 1 and 4, got %d", int(rec.CurrentQuarter))
	}

	var missing []string
	for _, q := range grades.Quarters {
		if q > pl.current {
			break
		}
		if !rec.Grades.Has(q) {
			missing = append(missing, q.String())
		}
	}
	if len(missing) > 0 {
		return plan{}, &ValidationError{
			Reason: "invalid quarter data: current quarter " + pl.current.String() +
				" requires grades for Q1.." + pl.current.String() + ", missing " + strings.Join(missing, ", "),
		}
	}
	return pl, nil
}
