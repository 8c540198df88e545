package baseplate

import (
	"context"
	"fmt"
	"math"

	"Pylon/internal/calc/constants"
	"Pylon/internal/calc/envelope"
	"Pylon/internal/calc/optimize"
	"Pylon/internal/calc/units"
)

// Configuration is one sized connection with its material estimate.
type Configuration struct {
	ThicknessIn      float64 `json:"thickness_in"`
	AnchorDiameterIn float64 `json:"anchor_diameter_in"`
	EmbedmentIn      float64 `json:"embedment_in"`
	AnchorCount      int     `json:"anchor_count"`
	PlateWeightLb    float64 `json:"plate_weight_lb"`
	AnchorWeightLb   float64 `json:"anchor_weight_lb"`
	CostUSD          float64 `json:"cost_usd"`
	MaxUtilization   float64 `json:"max_utilization"`
}

type Sizing struct {
	Selected         *Configuration  `json:"selected"`
	Report           *Report         `json:"report,omitempty"`
	WeldSizeIn       float64         `json:"weld_size_in"`
	Alternatives     []Configuration `json:"alternatives"`
	Method           string          `json:"method"`
	Deterministic    bool            `json:"deterministic"`
	EarlyTermination bool            `json:"early_termination"`
}

type SizingResult struct {
	Sizing      Sizing
	Assumptions []string
	Warnings    []envelope.Warning
}

// anchorProjectionIn is the anchor length above the plate for nut and washer.
const anchorProjectionIn = 3.0

type sizingProblem struct {
	pack *constants.Pack
	base Input
}

func (p sizingProblem) grid() constants.Baseplate { return p.pack.Baseplate }

func (p sizingProblem) Cardinalities() []int {
	g := p.grid()
	return []int{len(g.ThicknessesIn), len(g.AnchorDiametersIn), len(g.EmbedmentsIn), len(g.AnchorCounts)}
}

func (p sizingProblem) input(genome []int) Input {
	g := p.grid()
	in := p.base
	in.Plate.ThicknessIn = g.ThicknessesIn[genome[0]]
	in.Anchors.DiameterIn = g.AnchorDiametersIn[genome[1]]
	in.Anchors.EmbedmentIn = g.EmbedmentsIn[genome[2]]
	in.Anchors.Count = g.AnchorCounts[genome[3]]
	return in
}

func (p sizingProblem) Key(genome []int) string {
	in := p.input(genome)
	return fmt.Sprintf("t%.4f-d%.4f-h%.2f-n%02d",
		in.Plate.ThicknessIn, in.Anchors.DiameterIn, in.Anchors.EmbedmentIn, in.Anchors.Count)
}

func (p sizingProblem) Evaluate(genome []int) optimize.Evaluation {
	in := p.input(genome)
	rep := evaluate(resolve(p.pack, in))
	c := configuration(p.pack, in, rep)
	return optimize.Evaluation{
		Objectives: []float64{c.CostUSD, c.MaxUtilization},
		Feasible:   rep.AllPass,
	}
}

func configuration(pack *constants.Pack, in Input, rep Report) Configuration {
	b := pack.Baseplate
	w, t := in.Plate.WidthIn, in.Plate.ThicknessIn
	plate := w * w * t * b.SteelDensityLbIn3
	d := in.Anchors.DiameterIn
	length := in.Anchors.EmbedmentIn + t + anchorProjectionIn
	anchors := float64(in.Anchors.Count) * (math.Pi * d * d / 4) * length * b.SteelDensityLbIn3
	return Configuration{
		ThicknessIn:      t,
		AnchorDiameterIn: d,
		EmbedmentIn:      in.Anchors.EmbedmentIn,
		AnchorCount:      in.Anchors.Count,
		PlateWeightLb:    units.Round(plate),
		AnchorWeightLb:   units.Round(anchors),
		CostUSD:          units.Round(plate*b.PlateCostPerLb + anchors*b.AnchorCostPerLb),
		MaxUtilization:   rep.maxUtilization(),
	}
}

// AutoSize searches the pack's thickness, anchor diameter, embedment and
// anchor count grids for the cheapest connection where every check passes.
func AutoSize(ctx context.Context, pack *constants.Pack, in Input) (SizingResult, error) {
	return AutoSizeWith(ctx, pack, in, optimize.FromPack(pack.Optimize))
}

func AutoSizeWith(ctx context.Context, pack *constants.Pack, in Input, opts optimize.Options) (SizingResult, error) {
	if err := validate(in, false); err != nil {
		return SizingResult{}, err
	}

	var res SizingResult
	if in.Weld.SizeIn == 0 {
		rec, err := RecommendWeld(pack, WeldInput{
			ColumnWidthIn: in.Plate.ColumnWidthIn,
			ElectrodeKsi:  in.Weld.ElectrodeKsi,
			Loads:         in.Loads,
		})
		if err != nil {
			return SizingResult{}, err
		}
		in.Weld.SizeIn = float64(rec.Sixteenths) / 16
		res.Assumptions = append(res.Assumptions,
			fmt.Sprintf("weld size not given; %d/16 in fillet recommended", rec.Sixteenths))
	}

	prob := sizingProblem{pack: pack, base: in}
	out, err := optimize.Search(ctx, prob, opts)
	if err != nil {
		return SizingResult{}, fmt.Errorf("baseplate: autosize search: %w", err)
	}

	s := Sizing{
		WeldSizeIn:       units.Round(in.Weld.SizeIn),
		Method:           string(out.Method),
		Deterministic:    out.Deterministic,
		EarlyTermination: out.EarlyTermination,
		Alternatives:     make([]Configuration, 0, len(out.Front)),
	}
	for _, c := range out.Front {
		sized := prob.input(c.Genome)
		s.Alternatives = append(s.Alternatives, configuration(pack, sized, evaluate(resolve(pack, sized))))
	}
	res.Assumptions = append(res.Assumptions,
		fmt.Sprintf("anchor length = embedment + plate thickness + %.0f in projection", anchorProjectionIn),
		out.String())
	if out.EarlyTermination {
		res.Warnings = append(res.Warnings, envelope.Warn(envelope.Generic,
			"search stopped at the deadline; the selected connection is the best found so far"))
	}

	best, ok := out.Best()
	if !ok {
		res.Sizing = s
		res.Warnings = append(res.Warnings, envelope.Warn(envelope.NoFeasible,
			"no feasible plate and anchor combination in the sizing grid passes every check"))
		return res, nil
	}
	sel := s.Alternatives[0]
	s.Selected = &sel
	checked, err := Check(pack, prob.input(best.Genome))
	if err != nil {
		return SizingResult{}, err
	}
	s.Report = &checked.Report
	res.Sizing = s
	return res, nil
}
