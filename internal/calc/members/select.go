package members

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/catalog"
	"Pylon/internal/calc/constants"
	"Pylon/internal/calc/envelope"
	"Pylon/internal/calc/optimize"
	"Pylon/internal/calc/units"
)

type SortBy string

const (
	SortWeight      SortBy = "weight"
	SortCost        SortBy = "cost"
	SortCapacity    SortBy = "capacity"
	SortUtilization SortBy = "utilization"
)

// Objectives accepted in multi-objective mode.
const (
	ObjectiveCost        = "cost"
	ObjectiveWeight      = "weight"
	ObjectiveUtilization = "utilization"
)

type Preferences struct {
	SortBy     SortBy   `json:"sort_by"`
	Objectives []string `json:"objectives"`
	// LengthFt scales weight and cost; zero means per foot.
	LengthFt   float64 `json:"length_ft"`
	MaxResults int     `json:"max_results"`
	// ShearKip and ArmFt enable the serviceability deflection estimate.
	ShearKip float64 `json:"shear_kip"`
	ArmFt    float64 `json:"arm_ft"`
}

type Request struct {
	DemandMomentKipFt float64     `json:"demand_moment_kipft"`
	Material          string      `json:"material"`
	Preferences       Preferences `json:"preferences"`
}

// Option is one evaluated catalog member. Member is a value copy, never a
// pointer into the catalog.
type Option struct {
	Member            catalog.Member `json:"member"`
	CapacityKipFt     float64        `json:"capacity_kipft"`
	AllowableKipFt    float64        `json:"allowable_kipft"`
	UtilizationRatio  float64        `json:"utilization_ratio"`
	Feasible          bool           `json:"feasible"`
	TotalWeightLb     float64        `json:"total_weight_lb"`
	CostUSD           float64        `json:"cost_usd"`
	DeflectionIn      float64        `json:"deflection_in,omitempty"`
	DeflectionLimitIn float64        `json:"deflection_limit_in,omitempty"`
	DeflectionOK      *bool          `json:"deflection_ok,omitempty"`

	tieBreak uint64
	rawUtil  float64
}

type Selection struct {
	Options       []Option          `json:"options"`
	Recommended   *Option           `json:"recommended"`
	Method        string            `json:"method"`
	Deterministic bool              `json:"deterministic"`
	Search        *optimize.Outcome `json:"-"`
}

type Result struct {
	Selection   Selection
	Assumptions []string
	Warnings    []envelope.Warning
}

// Multi reports whether the preferences request a trade-off search.
func (p Preferences) Multi() bool {
	return len(p.Objectives) >= 2
}

// Filter returns the feasible members for a demand moment, ordered by the
// requested preference and a seeded hash tie-break, so the result never
// depends on catalog iteration order. An empty feasible set is a normal,
// low-confidence result.
func Filter(ctx context.Context, cat *catalog.Catalog, pack *constants.Pack, req Request) (Result, error) {
	return FilterWith(ctx, cat, pack, req, optimize.FromPack(pack.Optimize))
}

// FilterWith is Filter with explicit search options for multi-objective mode.
func FilterWith(ctx context.Context, cat *catalog.Catalog, pack *constants.Pack, req Request, opts optimize.Options) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}
	prefs := req.Preferences
	if prefs.SortBy == "" {
		prefs.SortBy = SortWeight
	}

	var res Result
	sf := pack.Members.SafetyFactor
	res.Assumptions = append(res.Assumptions,
		fmt.Sprintf("feasible when S*Fy >= %.2f x demand moment", sf))
	if prefs.LengthFt <= 0 {
		res.Assumptions = append(res.Assumptions, "member length not given; weight and cost are per foot")
	}

	pool := evaluate(cat.Filter(req.Material), pack, req.DemandMomentKipFt, prefs)
	if len(pool) == 0 {
		res.Assumptions = append(res.Assumptions,
			fmt.Sprintf("catalog %s has no members of material %q", cat.Name(), req.Material))
	}

	if prefs.Multi() {
		sel, err := pareto(ctx, pool, prefs, opts)
		if err != nil {
			return Result{}, err
		}
		res.Selection = sel
		res.Assumptions = append(res.Assumptions,
			fmt.Sprintf("multi-objective selection over %s", strings.Join(prefs.Objectives, ", ")),
			sel.Search.String())
		if sel.Search.EarlyTermination {
			res.Warnings = append(res.Warnings, envelope.Warn(envelope.Generic,
				"search stopped at the deadline; the options are the best found so far"))
		}
	} else {
		feasible := make([]Option, 0, len(pool))
		for _, o := range pool {
			if o.Feasible {
				feasible = append(feasible, o)
			}
		}
		sortOptions(feasible, prefs.SortBy)
		res.Selection = Selection{Options: feasible, Method: "ranked-" + string(prefs.SortBy), Deterministic: true}
	}

	if prefs.MaxResults > 0 && len(res.Selection.Options) > prefs.MaxResults {
		res.Selection.Options = res.Selection.Options[:prefs.MaxResults]
	}
	if len(res.Selection.Options) == 0 {
		res.Warnings = append(res.Warnings, envelope.Warn(envelope.NoFeasible,
			fmt.Sprintf("no feasible member for demand moment %.2f kip-ft", req.DemandMomentKipFt)))
		return res, nil
	}
	rec := res.Selection.Options[0]
	res.Selection.Recommended = &rec
	if rec.DeflectionOK != nil && !*rec.DeflectionOK {
		res.Warnings = append(res.Warnings, envelope.Warn(envelope.Generic,
			fmt.Sprintf("recommended member %s exceeds deflection limit", rec.Member.Key())))
	}
	return res, nil
}

func validate(req Request) error {
	v := calcerr.NewValidator("members.filter")
	v.NonNegative("demand_moment_kipft", req.DemandMomentKipFt)
	p := req.Preferences
	switch p.SortBy {
	case "", SortWeight, SortCost, SortCapacity, SortUtilization:
	default:
		v.Add("preferences.sort_by", "unknown sort %q", p.SortBy)
	}
	seen := map[string]bool{}
	for i, o := range p.Objectives {
		switch o {
		case ObjectiveCost, ObjectiveWeight, ObjectiveUtilization:
		default:
			v.Add(fmt.Sprintf("preferences.objectives[%d]", i), "unknown objective %q", o)
		}
		if seen[o] {
			v.Add(fmt.Sprintf("preferences.objectives[%d]", i), "duplicate objective %q", o)
		}
		seen[o] = true
	}
	v.NonNegative("preferences.length_ft", p.LengthFt)
	v.NonNegative("preferences.shear_kip", p.ShearKip)
	v.NonNegative("preferences.arm_ft", p.ArmFt)
	if p.MaxResults < 0 {
		v.Add("preferences.max_results", "must not be negative")
	}
	return v.Err()
}

func evaluate(ms []catalog.Member, pack *constants.Pack, demand float64, prefs Preferences) []Option {
	sf := pack.Members.SafetyFactor
	length := prefs.LengthFt
	if length <= 0 {
		length = 1
	}
	out := make([]Option, 0, len(ms))
	for _, m := range ms {
		capacity := m.CapacityKipFt()
		util := demand * sf / capacity
		weight := m.WeightPerLengthPlf * length
		o := Option{
			Member:           m,
			CapacityKipFt:    units.Round(capacity),
			AllowableKipFt:   units.Round(capacity / sf),
			UtilizationRatio: units.Round(util),
			Feasible:         capacity >= demand*sf,
			TotalWeightLb:    units.Round(weight),
			CostUSD:          units.Round(weight * pack.Members.CostPerLb[m.Material]),
			tieBreak:         TieBreak(pack.Members.TieBreakSeed, m),
			rawUtil:          util,
		}
		if prefs.ShearKip > 0 && prefs.ArmFt > 0 {
			if e := pack.Members.ModulusKsi[m.Material]; e > 0 {
				l := prefs.ArmFt * 12
				d := prefs.ShearKip * l * l * l / (3 * e * m.MomentOfInertiaIn4)
				limit := l / pack.Members.DeflectionLimitRatio
				ok := d <= limit
				o.DeflectionIn = units.Round(d)
				o.DeflectionLimitIn = units.Round(limit)
				o.DeflectionOK = &ok
			}
		}
		out = append(out, o)
	}
	// canonical order: identical for any catalog iteration order
	sort.SliceStable(out, func(i, j int) bool { return tieLess(out[i], out[j]) })
	return out
}

// TieBreak is the seeded hash used to break ordering ties.
func TieBreak(seed string, m catalog.Member) uint64 {
	return xxhash.Sum64String(seed + "\x00" + m.Key())
}

func tieLess(a, b Option) bool {
	if a.tieBreak != b.tieBreak {
		return a.tieBreak < b.tieBreak
	}
	return a.Member.Key() < b.Member.Key()
}

func sortOptions(os []Option, by SortBy) {
	sort.SliceStable(os, func(i, j int) bool {
		a, b := os[i], os[j]
		var ka, kb float64
		switch by {
		case SortCost:
			ka, kb = a.CostUSD, b.CostUSD
		case SortCapacity:
			ka, kb = a.CapacityKipFt, b.CapacityKipFt
		case SortUtilization:
			// most efficient first
			ka, kb = -a.UtilizationRatio, -b.UtilizationRatio
		default:
			ka, kb = a.TotalWeightLb, b.TotalWeightLb
		}
		if ka != kb {
			return ka < kb
		}
		return tieLess(a, b)
	})
}
