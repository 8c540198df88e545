package loads

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/constants"
	"Pylon/internal/calc/envelope"
)

func singleCabinet() Input {
	return Input{
		Site:         SiteConditions{WindSpeedMph: 115, Exposure: "C"},
		Cabinets:     []Cabinet{{WidthFt: 14, HeightFt: 8, WeightPerAreaPsf: 10}},
		PoleHeightFt: 25,
	}
}

func TestDeriveSingleCabinet(t *testing.T) {
	res, err := Derive(constants.MustDefault(), singleCabinet())
	require.NoError(t, err)

	l := res.Loads
	assert.Equal(t, 112.0, l.ProjectedAreaFt2)
	assert.Equal(t, 1120.0, l.WeightEstimateLb)
	assert.Equal(t, 4.0, l.CentroidHeightFt)
	assert.Equal(t, 29.0, l.MomentArmFt)
	assert.Greater(t, l.BendingMomentKipFt, 0.0)
	assert.InDelta(t, 93.0, l.BendingMomentKipFt, 0.5)
	assert.InDelta(t, 3.21, l.ShearKip, 0.02)
	assert.Equal(t, "C", l.Exposure)
	assert.Empty(t, res.Warnings)
}

func TestDeriveIgnoresCabinetOrder(t *testing.T) {
	in := Input{
		Site: SiteConditions{WindSpeedMph: 105, Exposure: "B", SnowLoadPsf: 20},
		Cabinets: []Cabinet{
			{WidthFt: 10.3, HeightFt: 3.7, DepthFt: 1.5, WeightPerAreaPsf: 12.1, VerticalOffsetFt: 0},
			{WidthFt: 6.1, HeightFt: 2.9, DepthFt: 1, WeightPerAreaPsf: 9.7, VerticalOffsetFt: 4.1},
			{WidthFt: 4.4, HeightFt: 1.3, DepthFt: 0.5, WeightPerAreaPsf: 7.3, VerticalOffsetFt: 7.7},
		},
		PoleHeightFt: 18,
	}
	a, err := Derive(constants.MustDefault(), in)
	require.NoError(t, err)

	in.Cabinets = []Cabinet{in.Cabinets[2], in.Cabinets[0], in.Cabinets[1]}
	b, err := Derive(constants.MustDefault(), in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveSubstitutesMinimumWind(t *testing.T) {
	in := singleCabinet()
	in.Site.WindSpeedMph = 0
	res, err := Derive(constants.MustDefault(), in)
	require.NoError(t, err)
	assert.Equal(t, 15.0, res.Loads.WindSpeedMph)
	assert.Contains(t, res.Assumptions[0], "code minimum 15 mph")
}

func TestDeriveDefaultsExposure(t *testing.T) {
	in := singleCabinet()
	in.Site.Exposure = ""
	res, err := Derive(constants.MustDefault(), in)
	require.NoError(t, err)
	assert.Equal(t, "C", res.Loads.Exposure)
	assert.Contains(t, res.Assumptions[0], "assumed C")
}

func TestDeriveRejectsInvalidInput(t *testing.T) {
	in := singleCabinet()
	in.Cabinets[0].WidthFt = -2
	in.Site.Exposure = "Q"
	in.Site.SnowLoadPsf = math.NaN()

	_, err := Derive(constants.MustDefault(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, calcerr.ErrInvalidInput))

	paths := map[string]bool{}
	for _, f := range calcerr.FieldsOf(err) {
		paths[f.Path] = true
	}
	assert.True(t, paths["cabinets[0].width_ft"])
	assert.True(t, paths["site.exposure_category"])
	assert.True(t, paths["site.snow_load_psf"])
}

func TestDeriveWarnings(t *testing.T) {
	res, err := Derive(constants.MustDefault(), Input{Site: SiteConditions{WindSpeedMph: 100}, PoleHeightFt: 10})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, envelope.Generic, res.Warnings[0].Category)
	assert.Zero(t, res.Loads.BendingMomentKipFt)

	tall := singleCabinet()
	tall.PoleHeightFt = 45
	res, err = Derive(constants.MustDefault(), tall)
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)
	assert.Equal(t, envelope.Abstain, res.Warnings[0].Category)
	assert.Contains(t, res.Warnings[0].Message, "engineering review")
}

func TestDeriveSnowAndAxial(t *testing.T) {
	in := singleCabinet()
	in.Site.SnowLoadPsf = 30
	in.Cabinets[0].DepthFt = 2
	res, err := Derive(constants.MustDefault(), in)
	require.NoError(t, err)
	assert.Equal(t, 840.0, res.Loads.SnowLoadLb)
	assert.Equal(t, 1.96, res.Loads.AxialKip)
}
