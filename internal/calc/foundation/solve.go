package foundation

import (
	"fmt"
	"math"

	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/constants"
	"Pylon/internal/calc/envelope"
	"Pylon/internal/calc/units"
)

// Input for a direct-burial pole footing. MomentKipFt is the total overturning
// moment shared equally by NumPoles.
type Input struct {
	DiameterFt     float64 `json:"diameter_ft"`
	SoilBearingPsf float64 `json:"soil_bearing_psf"`
	MomentKipFt    float64 `json:"moment_kipft"`
	NumPoles       int     `json:"num_poles"`
	AxialKip       float64 `json:"axial_kip"`
}

type Footing struct {
	MinDepthFt            float64 `json:"min_depth_ft"`
	DiameterFt            float64 `json:"diameter_ft"`
	ConcreteVolumeFt3     float64 `json:"concrete_volume_ft3"`
	ConcreteVolumeCY      float64 `json:"concrete_volume_cy"`
	TotalConcreteVolumeCY float64 `json:"total_concrete_volume_cy"`
	ConcreteCostUSD       float64 `json:"concrete_cost_usd"`
	NumPoles              int     `json:"num_poles"`
	MomentPerPoleKipFt    float64 `json:"moment_per_pole_kipft"`
	ResistingMomentKipFt  float64 `json:"resisting_moment_kipft"`
	LateralBearingPsf     float64 `json:"lateral_bearing_psf"`
	BearingPressurePsf    float64 `json:"bearing_pressure_psf"`
	Iterations            int     `json:"iterations"`
	Monotonic             bool    `json:"monotonic"`
}

type Result struct {
	Footing     Footing
	Assumptions []string
	Warnings    []envelope.Warning
}

// solver holds the pack coefficients for one call.
type solver struct {
	f          constants.Foundation
	soil       float64
	diameter   float64
	targetLbFt float64
}

// lateral is the allowable lateral soil bearing S3 at depth d, in psf.
func (s solver) lateral(d float64) float64 {
	return s.soil * s.f.LateralBearingRatio * s.f.IsolatedPoleFactor * d
}

// resisting is the constrained-pole resisting moment at depth d, in lb-ft.
func (s solver) resisting(d float64) float64 {
	return s.lateral(d) * s.diameter * d * d / s.f.ConstrainedCoefficient
}

// SolveFooting finds the minimum embedment depth whose resisting moment covers
// the per-pole moment times the overturning safety factor. The search always
// bisects the same [0, max_depth] bracket, so the depth it returns is
// non-decreasing in moment and non-increasing in diameter.
func SolveFooting(pack *constants.Pack, in Input) (Result, error) {
	if err := validate(in); err != nil {
		return Result{}, err
	}
	f := pack.Foundation
	perPole := in.MomentKipFt / float64(in.NumPoles)
	s := solver{
		f:          f,
		soil:       in.SoilBearingPsf,
		diameter:   in.DiameterFt,
		targetLbFt: f.OverturningSafetyFactor * units.KipFtToLbFt(perPole),
	}

	if s.resisting(f.MaxDepthFt) < s.targetLbFt {
		return Result{}, calcerr.NonConvergence("foundation.solve_footing",
			"resisting moment at max depth %.2f ft is %.2f kip-ft, below required %.2f kip-ft",
			f.MaxDepthFt, units.LbFtToKipFt(s.resisting(f.MaxDepthFt)), units.LbFtToKipFt(s.targetLbFt))
	}

	lo, hi := 0.0, f.MaxDepthFt
	iter := 0
	for hi-lo >= f.ToleranceFt {
		if iter >= f.MaxIterations {
			return Result{}, calcerr.NonConvergence("foundation.solve_footing",
				"bracket [%.4f, %.4f] ft still wider than %.4f ft after %d iterations",
				lo, hi, f.ToleranceFt, iter)
		}
		iter++
		mid := lo + (hi-lo)/2
		if s.resisting(mid) >= s.targetLbFt {
			hi = mid
		} else {
			lo = mid
		}
	}

	depth := math.Max(units.CeilTo(hi), f.MinDepthFt)
	area := math.Pi * math.Pow(in.DiameterFt/2, 2)
	volume := area * depth
	cy := units.CubicFeetToYards(volume)
	total := cy * float64(in.NumPoles)

	var res Result
	res.Footing = Footing{
		MinDepthFt:            units.Round(depth),
		DiameterFt:            units.Round(in.DiameterFt),
		ConcreteVolumeFt3:     units.Round(volume),
		ConcreteVolumeCY:      units.Round(cy),
		TotalConcreteVolumeCY: units.Round(total),
		ConcreteCostUSD:       units.Round(total * f.ConcreteCostPerCY),
		NumPoles:              in.NumPoles,
		MomentPerPoleKipFt:    units.Round(perPole),
		ResistingMomentKipFt:  units.Round(units.LbFtToKipFt(s.resisting(depth))),
		LateralBearingPsf:     units.Round(s.lateral(depth)),
		Iterations:            iter,
		Monotonic:             s.resisting(lo) <= s.resisting(hi) && s.resisting(hi) <= s.resisting(depth),
	}

	res.Assumptions = append(res.Assumptions,
		fmt.Sprintf("direct burial, constrained pole: Mr = S3*D*d^2/%.2f with S3 = %.2f*%.1f*soil bearing*d",
			f.ConstrainedCoefficient, f.LateralBearingRatio, f.IsolatedPoleFactor),
		fmt.Sprintf("overturning safety factor %.2f on %.2f kip-ft per pole", f.OverturningSafetyFactor, perPole))
	if hi < f.MinDepthFt {
		res.Assumptions = append(res.Assumptions,
			fmt.Sprintf("computed depth %.2f ft raised to minimum embedment %.2f ft", hi, f.MinDepthFt))
	}

	if in.AxialKip > 0 {
		bearing := in.AxialKip * 1000 / float64(in.NumPoles) / area
		res.Footing.BearingPressurePsf = units.Round(bearing)
		if bearing > in.SoilBearingPsf {
			res.Warnings = append(res.Warnings, envelope.Warn(envelope.NeedsReview,
				fmt.Sprintf("end bearing pressure %.2f psf exceeds allowable soil bearing %.2f psf", bearing, in.SoilBearingPsf)))
		}
	}
	return res, nil
}

func validate(in Input) error {
	v := calcerr.NewValidator("foundation.solve_footing")
	v.Positive("diameter_ft", in.DiameterFt)
	v.Positive("soil_bearing_psf", in.SoilBearingPsf)
	v.NonNegative("moment_kipft", in.MomentKipFt)
	v.NonNegative("axial_kip", in.AxialKip)
	if in.NumPoles < 1 {
		v.Add("num_poles", "must be at least 1, got %d", in.NumPoles)
	}
	return v.Err()
}
