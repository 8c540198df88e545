package baseplate

import (
	"fmt"
	"math"

	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/constants"
	"Pylon/internal/calc/envelope"
)

// Plate is a square base plate centered on a square or round column.
// FyKsi of zero uses the pack default.
type Plate struct {
	WidthIn       float64 `json:"width_in"`
	ThicknessIn   float64 `json:"thickness_in"`
	ColumnWidthIn float64 `json:"column_width_in"`
	FyKsi         float64 `json:"fy_ksi,omitempty"`
}

type Weld struct {
	SizeIn       float64 `json:"size_in"`
	ElectrodeKsi float64 `json:"electrode_ksi,omitempty"`
}

// Anchors are split evenly between two rows parallel to the bending axis.
// EdgeDistanceIn is measured from the plate edge to the anchor centerline.
type Anchors struct {
	DiameterIn     float64 `json:"diameter_in"`
	Count          int     `json:"count"`
	EmbedmentIn    float64 `json:"embedment_in"`
	EdgeDistanceIn float64 `json:"edge_distance_in"`
	FuKsi          float64 `json:"fu_ksi,omitempty"`
}

// Loads at the top of the plate. Positive AxialKip is compression.
type Loads struct {
	MomentKipFt float64 `json:"moment_kipft"`
	ShearKip    float64 `json:"shear_kip"`
	AxialKip    float64 `json:"axial_kip"`
}

type Input struct {
	Plate         Plate   `json:"plate"`
	Weld          Weld    `json:"weld"`
	Anchors       Anchors `json:"anchors"`
	Loads         Loads   `json:"loads"`
	ConcreteFcPsi float64 `json:"concrete_fc_psi,omitempty"`
}

type Report struct {
	Checks    []CheckResult `json:"checks"`
	AllPass   bool          `json:"all_pass"`
	Governing string        `json:"governing"`
}

type Result struct {
	Report      Report
	Assumptions []string
	Warnings    []envelope.Warning
}

// Check runs every connection check. A failing check never stops the others.
func Check(pack *constants.Pack, in Input) (Result, error) {
	if err := validate(in, true); err != nil {
		return Result{}, err
	}
	g := resolve(pack, in)
	rep := evaluate(g)

	var res Result
	res.Report = rep
	res.Assumptions = append(res.Assumptions,
		fmt.Sprintf("ASD with omega plate %.2f, weld %.2f, anchor %.2f, bearing %.2f",
			g.omegaPlate, g.omegaWeld, g.omegaAnchor, g.omegaBearing),
		fmt.Sprintf("%d anchors in two rows %.2f in apart; moment resolved as a couple between rows",
			in.Anchors.Count, g.rowSpacing))
	if in.ConcreteFcPsi == 0 {
		res.Assumptions = append(res.Assumptions,
			fmt.Sprintf("concrete f'c not given; %.0f psi assumed", g.fc))
	}
	for _, c := range rep.Checks {
		if !c.Passed {
			res.Warnings = append(res.Warnings, envelope.Warn(envelope.NeedsReview,
				fmt.Sprintf("%s fails: utilization %.2f (demand %.2f %s, capacity %.2f %s)",
					c.CheckName, c.Utilization, c.Demand, c.Unit, c.Capacity, c.Unit)))
		}
	}
	return res, nil
}

func evaluate(g geometry) Report {
	rep := Report{Checks: make([]CheckResult, 0, len(checks)), AllPass: true}
	worst := -1.0
	for _, c := range checks {
		r := c.run(g)
		rep.Checks = append(rep.Checks, r)
		if !r.Passed {
			rep.AllPass = false
		}
		if r.Utilization > worst {
			worst = r.Utilization
			rep.Governing = r.CheckName
		}
	}
	return rep
}

// maxUtilization is the governing ratio of a report.
func (r Report) maxUtilization() float64 {
	m := 0.0
	for _, c := range r.Checks {
		m = math.Max(m, c.Utilization)
	}
	return m
}

// validate enumerates every bad field. sized is false for auto-size requests,
// where thickness, anchor size, count and embedment come from the search grid.
func validate(in Input, sized bool) error {
	op := "baseplate.check"
	if !sized {
		op = "baseplate.autosize"
	}
	v := calcerr.NewValidator(op)

	p := in.Plate
	v.Positive("plate.width_in", p.WidthIn)
	v.Positive("plate.column_width_in", p.ColumnWidthIn)
	v.NonNegative("plate.fy_ksi", p.FyKsi)
	if p.WidthIn > 0 && p.ColumnWidthIn >= p.WidthIn {
		v.Add("plate.column_width_in", "must be smaller than plate width %.2f in", p.WidthIn)
	}

	if sized {
		v.Positive("plate.thickness_in", p.ThicknessIn)
		v.Positive("weld.size_in", in.Weld.SizeIn)
		v.Positive("anchors.diameter_in", in.Anchors.DiameterIn)
		v.Positive("anchors.embedment_in", in.Anchors.EmbedmentIn)
		if n := in.Anchors.Count; n < 4 || n%2 != 0 {
			v.Add("anchors.count", "must be an even count of at least 4, got %d", n)
		}
	} else {
		v.NonNegative("weld.size_in", in.Weld.SizeIn)
	}
	v.NonNegative("weld.electrode_ksi", in.Weld.ElectrodeKsi)

	a := in.Anchors
	if v.Positive("anchors.edge_distance_in", a.EdgeDistanceIn) && p.WidthIn > 0 && 2*a.EdgeDistanceIn >= p.WidthIn {
		v.Add("anchors.edge_distance_in", "anchor rows overlap: 2 x %.2f in >= plate width %.2f in", a.EdgeDistanceIn, p.WidthIn)
	}
	v.NonNegative("anchors.fu_ksi", a.FuKsi)

	v.NonNegative("loads.moment_kipft", in.Loads.MomentKipFt)
	v.NonNegative("loads.shear_kip", in.Loads.ShearKip)
	v.Finite("loads.axial_kip", in.Loads.AxialKip)
	v.NonNegative("concrete_fc_psi", in.ConcreteFcPsi)
	return v.Err()
}

func orDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

func resolve(pack *constants.Pack, in Input) geometry {
	b := pack.Baseplate
	g := geometry{
		in:            in,
		fy:            orDefault(in.Plate.FyKsi, b.PlateFyKsi),
		fexx:          orDefault(in.Weld.ElectrodeKsi, b.ElectrodeFexxKsi),
		fu:            orDefault(in.Anchors.FuKsi, b.AnchorFuKsi),
		fc:            orDefault(in.ConcreteFcPsi, b.ConcreteFcPsi),
		omegaPlate:    b.OmegaPlate,
		omegaWeld:     b.OmegaWeld,
		omegaAnchor:   b.OmegaAnchor,
		omegaBearing:  b.OmegaBearing,
		tensionFactor: b.TensionFactor,
		shearFactor:   b.ShearFactor,
		bearingFactor: b.BearingFactor,
		breakoutKc:    b.BreakoutKc,
		breakoutPhi:   b.BreakoutPhi,
		asdConversion: b.ASDConversion,
	}

	d := in.Anchors.DiameterIn
	g.anchorArea = math.Pi * d * d / 4
	g.rowSpacing = in.Plate.WidthIn - 2*in.Anchors.EdgeDistanceIn

	m := in.Loads.MomentKipFt * 12
	perRow := float64(in.Anchors.Count) / 2
	g.tensionSide = math.Max(m/g.rowSpacing-in.Loads.AxialKip/2, 0)
	g.tensionPer = g.tensionSide / perRow
	g.shearPer = in.Loads.ShearKip / float64(in.Anchors.Count)

	w := in.Plate.WidthIn
	g.bearingPress = math.Max(in.Loads.AxialKip/(w*w)+m/(w*w*w/6), 0)
	return g
}
