package members

import (
	"context"
	"fmt"

	"Pylon/internal/calc/optimize"
	"Pylon/internal/calc/units"
)

// memberProblem searches a single gene: the index into the canonically ordered pool.
type memberProblem struct {
	pool       []Option
	objectives []string
}

func (p memberProblem) Cardinalities() []int { return []int{len(p.pool)} }

func (p memberProblem) Key(genome []int) string {
	return p.pool[genome[0]].Member.Key()
}

func (p memberProblem) Evaluate(genome []int) optimize.Evaluation {
	o := p.pool[genome[0]]
	objs := make([]float64, 0, len(p.objectives))
	for _, name := range p.objectives {
		switch name {
		case ObjectiveCost:
			objs = append(objs, o.CostUSD)
		case ObjectiveWeight:
			objs = append(objs, o.TotalWeightLb)
		case ObjectiveUtilization:
			// higher utilization is better
			objs = append(objs, units.Round(1-o.rawUtil))
		}
	}
	return optimize.Evaluation{Objectives: objs, Feasible: o.Feasible}
}

func pareto(ctx context.Context, pool []Option, prefs Preferences, opts optimize.Options) (Selection, error) {
	prob := memberProblem{pool: pool, objectives: prefs.Objectives}
	out, err := optimize.Search(ctx, prob, opts)
	if err != nil {
		return Selection{}, fmt.Errorf("members: pareto search: %w", err)
	}
	options := make([]Option, 0, len(out.Front))
	for _, c := range out.Front {
		options = append(options, pool[c.Genome[0]])
	}
	return Selection{
		Options:       options,
		Method:        "pareto-" + string(out.Method),
		Deterministic: out.Deterministic,
		Search:        &out,
	}, nil
}
