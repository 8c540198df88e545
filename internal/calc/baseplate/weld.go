package baseplate

import (
	"fmt"
	"math"

	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/constants"
	"Pylon/internal/calc/units"
)

type WeldInput struct {
	ColumnWidthIn float64 `json:"column_width_in"`
	ElectrodeKsi  float64 `json:"electrode_ksi,omitempty"`
	Loads         Loads   `json:"loads"`
}

type WeldRecommendation struct {
	RequiredSizeIn   float64 `json:"required_size_in"`
	Sixteenths       int     `json:"sixteenths"`
	DemandKipPerIn   float64 `json:"demand_kip_per_in"`
	CapacityKipPerIn float64 `json:"capacity_kip_per_in"`
	Notes            string  `json:"notes"`
}

// RecommendWeld sizes the all-around column fillet for the given loads,
// rounded up to the next 1/16 in and never below the pack minimum.
func RecommendWeld(pack *constants.Pack, in WeldInput) (WeldRecommendation, error) {
	v := calcerr.NewValidator("baseplate.weld_advisor")
	v.Positive("column_width_in", in.ColumnWidthIn)
	v.NonNegative("electrode_ksi", in.ElectrodeKsi)
	v.NonNegative("loads.moment_kipft", in.Loads.MomentKipFt)
	v.NonNegative("loads.shear_kip", in.Loads.ShearKip)
	v.Finite("loads.axial_kip", in.Loads.AxialKip)
	if err := v.Err(); err != nil {
		return WeldRecommendation{}, err
	}

	b := pack.Baseplate
	fexx := orDefault(in.ElectrodeKsi, b.ElectrodeFexxKsi)
	demand := weldDemand(in.ColumnWidthIn, in.Loads)
	// f = 0.6·Fexx·0.707·s/Ω solved for s
	s := demand * b.OmegaWeld / (0.6 * fexx * 0.707)
	s = math.Ceil(s*16-1e-9) / 16
	notes := "Recommended fillet weld size for combined moment, axial and shear."
	if s < b.MinWeldIn {
		s = b.MinWeldIn
		notes = fmt.Sprintf("Minimum fillet size %.4g in governs.", b.MinWeldIn)
	}
	return WeldRecommendation{
		RequiredSizeIn:   units.Round(s),
		Sixteenths:       int(math.Round(s * 16)),
		DemandKipPerIn:   units.Round(demand),
		CapacityKipPerIn: units.Round(weldStrength(fexx, s, b.OmegaWeld)),
		Notes:            notes,
	}, nil
}
