package members

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/catalog"
	"Pylon/internal/calc/constants"
	"Pylon/internal/calc/envelope"
	"Pylon/internal/calc/optimize"
)

func keys(os []Option) []string {
	out := make([]string, 0, len(os))
	for _, o := range os {
		out = append(out, o.Member.Key())
	}
	return out
}

func TestFilterLightestFeasibleFirst(t *testing.T) {
	res, err := Filter(context.Background(), catalog.MustDefault(), constants.MustDefault(), Request{
		DemandMomentKipFt: 10,
		Material:          "steel",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Selection.Recommended)
	assert.Equal(t, "HSS/6X6X1/4", res.Selection.Recommended.Member.Key())
	assert.Equal(t, "ranked-weight", res.Selection.Method)
	assert.True(t, res.Selection.Deterministic)
	assert.Empty(t, res.Warnings)

	for i, o := range res.Selection.Options {
		assert.True(t, o.Feasible)
		assert.LessOrEqual(t, o.UtilizationRatio, 1.0)
		assert.Equal(t, "steel", o.Member.Material)
		if i > 0 {
			assert.LessOrEqual(t, res.Selection.Options[i-1].TotalWeightLb, o.TotalWeightLb)
		}
	}
	assert.NotContains(t, keys(res.Selection.Options), "PIPE/5 STD")
}

func TestFilterSortModes(t *testing.T) {
	cat, pack := catalog.MustDefault(), constants.MustDefault()
	ctx := context.Background()

	byWeight, err := Filter(ctx, cat, pack, Request{DemandMomentKipFt: 10})
	require.NoError(t, err)
	assert.Equal(t, "AL-PIPE/6 SCH40", byWeight.Selection.Recommended.Member.Key())

	byCost, err := Filter(ctx, cat, pack, Request{DemandMomentKipFt: 10, Preferences: Preferences{SortBy: SortCost}})
	require.NoError(t, err)
	assert.Equal(t, "HSS/6X6X1/4", byCost.Selection.Recommended.Member.Key())

	byCap, err := Filter(ctx, cat, pack, Request{DemandMomentKipFt: 10, Preferences: Preferences{SortBy: SortCapacity}})
	require.NoError(t, err)
	opts := byCap.Selection.Options
	for i := 1; i < len(opts); i++ {
		assert.LessOrEqual(t, opts[i-1].CapacityKipFt, opts[i].CapacityKipFt)
	}

	byUtil, err := Filter(ctx, cat, pack, Request{DemandMomentKipFt: 10, Preferences: Preferences{SortBy: SortUtilization}})
	require.NoError(t, err)
	opts = byUtil.Selection.Options
	for i := 1; i < len(opts); i++ {
		assert.GreaterOrEqual(t, opts[i-1].UtilizationRatio, opts[i].UtilizationRatio)
	}
}

func TestFilterNoFeasibleIsNotAnError(t *testing.T) {
	res, err := Filter(context.Background(), catalog.MustDefault(), constants.MustDefault(), Request{
		DemandMomentKipFt: 1e6,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Selection.Options)
	assert.Nil(t, res.Selection.Recommended)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, envelope.NoFeasible, res.Warnings[0].Category)
	assert.Contains(t, res.Warnings[0].Message, "no feasible")
	assert.LessOrEqual(t, envelope.Confidence(res.Warnings), envelope.NoFeasibleThreshold)
}

func TestFilterIgnoresCatalogOrder(t *testing.T) {
	base := catalog.MustDefault()
	ms := base.Members()
	for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
		ms[i], ms[j] = ms[j], ms[i]
	}
	reversed, err := catalog.New(base.Name(), base.Version(), ms)
	require.NoError(t, err)
	pack := constants.MustDefault()

	for _, sortBy := range []SortBy{SortWeight, SortCost, SortCapacity, SortUtilization} {
		req := Request{DemandMomentKipFt: 25, Preferences: Preferences{SortBy: sortBy, LengthFt: 20}}
		a, err := Filter(context.Background(), base, pack, req)
		require.NoError(t, err)
		b, err := Filter(context.Background(), reversed, pack, req)
		require.NoError(t, err)
		assert.Equal(t, a.Selection, b.Selection, "sort %s", sortBy)
	}
}

func TestFilterMaxResultsAndLength(t *testing.T) {
	res, err := Filter(context.Background(), catalog.MustDefault(), constants.MustDefault(), Request{
		DemandMomentKipFt: 10,
		Material:          "steel",
		Preferences:       Preferences{LengthFt: 20, MaxResults: 3},
	})
	require.NoError(t, err)
	require.Len(t, res.Selection.Options, 3)
	assert.InDelta(t, 343.8, res.Selection.Options[0].TotalWeightLb, 1e-9)
	assert.InDelta(t, 378.18, res.Selection.Options[0].CostUSD, 1e-9)
}

func TestFilterDeflectionWarning(t *testing.T) {
	res, err := Filter(context.Background(), catalog.MustDefault(), constants.MustDefault(), Request{
		DemandMomentKipFt: 10,
		Material:          "aluminum",
		Preferences:       Preferences{ShearKip: 1, ArmFt: 20},
	})
	require.NoError(t, err)
	rec := res.Selection.Recommended
	require.NotNil(t, rec)
	require.NotNil(t, rec.DeflectionOK)
	assert.False(t, *rec.DeflectionOK)
	assert.Greater(t, rec.DeflectionIn, rec.DeflectionLimitIn)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, envelope.Generic, res.Warnings[0].Category)
}

func TestFilterRejectsBadPreferences(t *testing.T) {
	_, err := Filter(context.Background(), catalog.MustDefault(), constants.MustDefault(), Request{
		DemandMomentKipFt: -1,
		Preferences:       Preferences{SortBy: "price", Objectives: []string{"cost", "cost"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, calcerr.ErrInvalidInput))

	paths := []string{}
	for _, f := range calcerr.FieldsOf(err) {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, "demand_moment_kipft")
	assert.Contains(t, paths, "preferences.sort_by")
	assert.Contains(t, paths, "preferences.objectives[1]")
}

func TestParetoExhaustive(t *testing.T) {
	res, err := Filter(context.Background(), catalog.MustDefault(), constants.MustDefault(), Request{
		DemandMomentKipFt: 10,
		Material:          "steel",
		Preferences:       Preferences{Objectives: []string{ObjectiveCost, ObjectiveUtilization}},
	})
	require.NoError(t, err)
	sel := res.Selection
	assert.Equal(t, "pareto-exhaustive", sel.Method)
	assert.True(t, sel.Deterministic)
	require.NotEmpty(t, sel.Options)
	for _, o := range sel.Options {
		assert.True(t, o.Feasible)
	}
	// the cheapest feasible member is always on the front and sorts first
	assert.Equal(t, "HSS/6X6X1/4", sel.Recommended.Member.Key())
	assert.Contains(t, strings.Join(res.Assumptions, "\n"), "exhaustive search")
}

func TestParetoGeneticReproducible(t *testing.T) {
	opts := optimize.FromPack(constants.MustDefault().Optimize)
	opts.ExhaustiveLimit = 1
	req := Request{
		DemandMomentKipFt: 10,
		Preferences:       Preferences{Objectives: []string{ObjectiveWeight, ObjectiveUtilization}},
	}
	run := func() Result {
		res, err := FilterWith(context.Background(), catalog.MustDefault(), constants.MustDefault(), req, opts)
		require.NoError(t, err)
		return res
	}
	a, b := run(), run()

	assert.Equal(t, "pareto-genetic", a.Selection.Method)
	assert.False(t, a.Selection.Deterministic)
	assert.Equal(t, keys(a.Selection.Options), keys(b.Selection.Options))
	assert.Contains(t, strings.Join(a.Assumptions, "\n"), "reproducible for this seed only")
	for _, o := range a.Selection.Options {
		assert.True(t, o.Feasible)
	}
}

func TestParetoDeadlineLowersConfidence(t *testing.T) {
	opts := optimize.FromPack(constants.MustDefault().Optimize)
	opts.ExhaustiveLimit = 1
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := FilterWith(ctx, catalog.MustDefault(), constants.MustDefault(), Request{
		DemandMomentKipFt: 10,
		Preferences:       Preferences{Objectives: []string{ObjectiveCost, ObjectiveWeight}},
	}, opts)
	require.NoError(t, err)

	require.NotNil(t, res.Selection.Search)
	assert.True(t, res.Selection.Search.EarlyTermination)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, envelope.Generic, res.Warnings[0].Category)
	assert.Less(t, envelope.Confidence(res.Warnings), 1.0)
}

func TestTieBreakDependsOnSeed(t *testing.T) {
	m := catalog.MustDefault().At(0)
	assert.Equal(t, TieBreak("a", m), TieBreak("a", m))
	assert.NotEqual(t, TieBreak("a", m), TieBreak("b", m))
}
