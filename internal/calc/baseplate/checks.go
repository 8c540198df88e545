package baseplate

import (
	"math"

	"Pylon/internal/calc/units"
)

// CheckResult is the outcome of one connection check. Utilization is
// demand/capacity; Passed is decided on the rounded utilization.
type CheckResult struct {
	CheckName   string  `json:"check_name"`
	Passed      bool    `json:"passed"`
	Demand      float64 `json:"demand"`
	Capacity    float64 `json:"capacity"`
	Utilization float64 `json:"utilization"`
	Unit        string  `json:"unit"`
}

// geometry is the resolved connection, with pack defaults filled in and the
// per-anchor forces already distributed.
type geometry struct {
	in Input

	fy, fexx, fu, fc float64
	omegaPlate       float64
	omegaWeld        float64
	omegaAnchor      float64
	omegaBearing     float64
	tensionFactor    float64
	shearFactor      float64
	bearingFactor    float64
	breakoutKc       float64
	breakoutPhi      float64
	asdConversion    float64

	anchorArea   float64 // in²
	rowSpacing   float64 // in, between tension and compression anchor rows
	tensionSide  float64 // kip, total anchor tension on one row
	tensionPer   float64 // kip per anchor
	shearPer     float64 // kip per anchor
	bearingPress float64 // ksi, peak under the plate
}

// check is one variant in the list. Every entry runs for every call.
type check struct {
	name string
	unit string
	eval func(g geometry) (demand, capacity float64)
}

var checks = []check{
	{name: "plate_bending", unit: "kip-in", eval: plateBending},
	{name: "weld", unit: "kip/in", eval: weldCheck},
	{name: "anchor_tension", unit: "kip", eval: anchorTension},
	{name: "anchor_shear", unit: "kip", eval: anchorShear},
	{name: "anchor_combined", unit: "ratio", eval: anchorCombined},
	{name: "concrete_bearing", unit: "ksi", eval: concreteBearing},
	{name: "anchor_breakout", unit: "kip", eval: anchorBreakout},
}

// CheckNames lists the checks in evaluation order.
func CheckNames() []string {
	out := make([]string, len(checks))
	for i, c := range checks {
		out[i] = c.name
	}
	return out
}

func (c check) run(g geometry) CheckResult {
	d, cp := c.eval(g)
	util := 0.0
	if cp > 0 {
		util = d / cp
	} else if d > 0 {
		util = math.Inf(1)
	}
	r := CheckResult{
		CheckName:   c.name,
		Demand:      units.Round(d),
		Capacity:    units.Round(cp),
		Utilization: units.Round(util),
		Unit:        c.unit,
	}
	r.Passed = units.IsFinite(r.Utilization) && r.Utilization <= 1.0
	return r
}

// plateBending takes the worse of the tension-side cantilever (anchor row
// pulling on the plate outside the column face) and the compression-side
// cantilever loaded by bearing pressure.
func plateBending(g geometry) (float64, float64) {
	p := g.in.Plate
	overhang := (p.WidthIn - p.ColumnWidthIn) / 2
	arm := math.Max(overhang-g.in.Anchors.EdgeDistanceIn, 0)
	tension := g.tensionSide * arm
	compression := g.bearingPress * p.WidthIn * overhang * overhang / 2
	demand := math.Max(tension, compression)
	capacity := g.fy * p.WidthIn * p.ThicknessIn * p.ThicknessIn / 4 / g.omegaPlate
	return demand, capacity
}

// weldCheck treats the all-around fillet as a line about the column perimeter.
func weldCheck(g geometry) (float64, float64) {
	return weldDemand(g.in.Plate.ColumnWidthIn, g.in.Loads),
		weldStrength(g.fexx, g.in.Weld.SizeIn, g.omegaWeld)
}

func weldDemand(b float64, l Loads) float64 {
	sw := 4 * b * b / 3
	length := 4 * b
	normal := units.KipFtToKipIn(l.MomentKipFt)/sw + math.Abs(l.AxialKip)/length
	shear := l.ShearKip / length
	return math.Hypot(normal, shear)
}

// weldStrength is the allowable fillet strength per inch of weld.
func weldStrength(fexx, size, omega float64) float64 {
	return 0.6 * fexx * 0.707 * size / omega
}

func anchorTension(g geometry) (float64, float64) {
	return g.tensionPer, g.tensionFactor * g.fu * g.anchorArea / g.omegaAnchor
}

func anchorShear(g geometry) (float64, float64) {
	return g.shearPer, g.shearFactor * g.fu * g.anchorArea / g.omegaAnchor
}

// anchorCombined is the elliptical tension/shear interaction.
func anchorCombined(g geometry) (float64, float64) {
	t, tc := anchorTension(g)
	v, vc := anchorShear(g)
	return math.Pow(t/tc, 2) + math.Pow(v/vc, 2), 1.0
}

func concreteBearing(g geometry) (float64, float64) {
	return g.bearingPress, g.bearingFactor * g.fc / 1000 / g.omegaBearing
}

// anchorBreakout is single-anchor concrete cone breakout, converted to an
// allowable value.
func anchorBreakout(g geometry) (float64, float64) {
	hef := g.in.Anchors.EmbedmentIn
	nb := g.breakoutKc * math.Sqrt(g.fc) * math.Pow(hef, 1.5) // lb
	return g.tensionPer, g.breakoutPhi * nb / g.asdConversion / 1000
}
