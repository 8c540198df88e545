package loads

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/constants"
	"Pylon/internal/calc/envelope"
	"Pylon/internal/calc/units"
)

type SiteConditions struct {
	WindSpeedMph float64 `json:"wind_speed_mph"`
	Exposure     string  `json:"exposure_category"`
	SnowLoadPsf  float64 `json:"snow_load_psf"`
	Location     string  `json:"location"`
}

// Cabinet is one sign face. VerticalOffsetFt is measured from the top of the
// pole to the bottom of the cabinet.
type Cabinet struct {
	WidthFt          float64 `json:"width_ft"`
	HeightFt         float64 `json:"height_ft"`
	DepthFt          float64 `json:"depth_ft"`
	WeightPerAreaPsf float64 `json:"weight_per_area_psf"`
	VerticalOffsetFt float64 `json:"vertical_offset_ft"`
}

type Input struct {
	Site         SiteConditions `json:"site"`
	Cabinets     []Cabinet      `json:"cabinets"`
	PoleHeightFt float64        `json:"pole_height_ft"`
}

// DerivedLoads is computed once per request and never mutated afterwards.
type DerivedLoads struct {
	ProjectedAreaFt2    float64 `json:"projected_area_ft2"`
	CentroidHeightFt    float64 `json:"centroid_height_ft"`
	WeightEstimateLb    float64 `json:"weight_estimate_lb"`
	BendingMomentKipFt  float64 `json:"bending_moment_kipft"`
	SnowLoadLb          float64 `json:"snow_load_lb"`
	WindSpeedMph        float64 `json:"wind_speed_mph"`
	Exposure            string  `json:"exposure_category"`
	Kz                  float64 `json:"kz"`
	VelocityPressurePsf float64 `json:"velocity_pressure_psf"`
	WindPressurePsf     float64 `json:"wind_pressure_psf"`
	WindForceLb         float64 `json:"wind_force_lb"`
	MomentArmFt         float64 `json:"moment_arm_ft"`
	OverallHeightFt     float64 `json:"overall_height_ft"`
	ShearKip            float64 `json:"shear_kip"`
	AxialKip            float64 `json:"axial_kip"`
}

type Result struct {
	Loads       DerivedLoads
	Assumptions []string
	Warnings    []envelope.Warning
}

// Derive turns site conditions and cabinet geometry into rounded design loads.
func Derive(pack *constants.Pack, in Input) (Result, error) {
	if err := validate(pack, in); err != nil {
		return Result{}, err
	}

	var res Result
	w := pack.Wind

	exposure := strings.ToUpper(strings.TrimSpace(in.Site.Exposure))
	if exposure == "" {
		exposure = w.DefaultExposure
		res.Assumptions = append(res.Assumptions,
			fmt.Sprintf("exposure category not given; assumed %s", exposure))
	}
	exp := w.Exposures[exposure]

	speed := in.Site.WindSpeedMph
	if speed <= 0 {
		speed = w.MinSpeedMph
		res.Assumptions = append(res.Assumptions,
			fmt.Sprintf("wind speed %.0f mph is not positive; code minimum %.0f mph used", in.Site.WindSpeedMph, w.MinSpeedMph))
	}

	// Accumulate in a canonical order so the cabinet order can't change the bits.
	cabs := make([]Cabinet, len(in.Cabinets))
	copy(cabs, in.Cabinets)
	sort.Slice(cabs, func(i, j int) bool { return cabinetLess(cabs[i], cabs[j]) })

	area, moment, weight, snow, top := 0.0, 0.0, 0.0, 0.0, 0.0
	for _, c := range cabs {
		a := c.WidthFt * c.HeightFt
		area += a
		moment += a * (c.VerticalOffsetFt + c.HeightFt/2)
		weight += a * c.WeightPerAreaPsf
		snow += in.Site.SnowLoadPsf * c.WidthFt * c.DepthFt
		top = math.Max(top, c.VerticalOffsetFt+c.HeightFt)
	}
	centroid := 0.0
	if area > 0 {
		centroid = moment / area
	}

	// ASCE 7 velocity pressure at the centroid of the sign area.
	z := math.Max(in.PoleHeightFt+centroid, w.MinKzHeightFt)
	kz := 2.01 * math.Pow(z/exp.ZgFt, 2/exp.Alpha)
	qz := 0.00256 * kz * w.Kzt * w.Kd * speed * speed
	p := qz * w.GustFactor * w.ForceCoefficient

	force := p * area
	arm := centroid + in.PoleHeightFt
	bending := units.LbFtToKipFt(force * arm)
	overall := in.PoleHeightFt + top

	res.Loads = DerivedLoads{
		ProjectedAreaFt2:    units.Round(area),
		CentroidHeightFt:    units.Round(centroid),
		WeightEstimateLb:    units.Round(weight),
		BendingMomentKipFt:  units.Round(bending),
		SnowLoadLb:          units.Round(snow),
		WindSpeedMph:        units.Round(speed),
		Exposure:            exposure,
		Kz:                  units.Round(kz),
		VelocityPressurePsf: units.Round(qz),
		WindPressurePsf:     units.Round(p),
		WindForceLb:         units.Round(force),
		MomentArmFt:         units.Round(arm),
		OverallHeightFt:     units.Round(overall),
		ShearKip:            units.Round(force / 1000.0),
		AxialKip:            units.Round((weight + snow) / 1000.0),
	}

	res.Assumptions = append(res.Assumptions,
		fmt.Sprintf("velocity pressure per ASCE 7 exposure %s with Kd=%.2f, Kzt=%.2f, G=%.2f, Cf=%.2f",
			exposure, w.Kd, w.Kzt, w.GustFactor, w.ForceCoefficient))
	if in.Site.Location != "" {
		res.Assumptions = append(res.Assumptions, "site: "+in.Site.Location)
	}

	if len(in.Cabinets) == 0 {
		res.Warnings = append(res.Warnings,
			envelope.Warn(envelope.Generic, "no cabinets given; wind and dead loads are zero"))
	}
	if overall > pack.Limits.MaxHeightFt {
		res.Warnings = append(res.Warnings, envelope.Warn(envelope.Abstain,
			fmt.Sprintf("overall height %.2f ft exceeds validated envelope of %.0f ft; engineering review required",
				overall, pack.Limits.MaxHeightFt)))
	}
	if pack.Limits.MaxMomentKipFt > 0 && bending > pack.Limits.MaxMomentKipFt {
		res.Warnings = append(res.Warnings, envelope.Warn(envelope.Abstain,
			fmt.Sprintf("bending moment %.2f kip-ft exceeds validated envelope of %.0f kip-ft",
				bending, pack.Limits.MaxMomentKipFt)))
	}
	return res, nil
}

func validate(pack *constants.Pack, in Input) error {
	v := calcerr.NewValidator("loads.derive")
	v.Finite("site.wind_speed_mph", in.Site.WindSpeedMph)
	v.NonNegative("site.snow_load_psf", in.Site.SnowLoadPsf)
	v.NonNegative("pole_height_ft", in.PoleHeightFt)
	if e := strings.ToUpper(strings.TrimSpace(in.Site.Exposure)); e != "" {
		if _, ok := pack.Wind.Exposures[e]; !ok {
			v.Add("site.exposure_category", "unknown exposure %q, want one of %s",
				in.Site.Exposure, strings.Join(pack.ExposureNames(), ", "))
		}
	}
	for i, c := range in.Cabinets {
		p := fmt.Sprintf("cabinets[%d]", i)
		v.Positive(p+".width_ft", c.WidthFt)
		v.Positive(p+".height_ft", c.HeightFt)
		v.NonNegative(p+".depth_ft", c.DepthFt)
		v.NonNegative(p+".weight_per_area_psf", c.WeightPerAreaPsf)
		v.NonNegative(p+".vertical_offset_ft", c.VerticalOffsetFt)
	}
	return v.Err()
}

func cabinetLess(a, b Cabinet) bool {
	if a.VerticalOffsetFt != b.VerticalOffsetFt {
		return a.VerticalOffsetFt < b.VerticalOffsetFt
	}
	if a.WidthFt != b.WidthFt {
		return a.WidthFt < b.WidthFt
	}
	if a.HeightFt != b.HeightFt {
		return a.HeightFt < b.HeightFt
	}
	if a.DepthFt != b.DepthFt {
		return a.DepthFt < b.DepthFt
	}
	return a.WeightPerAreaPsf < b.WeightPerAreaPsf
}
