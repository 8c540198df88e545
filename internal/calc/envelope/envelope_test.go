package envelope

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Pylon/internal/calc/calcerr"
)

var pins = Pins{
	Solvers:   map[string]string{"loads.derive": "1.2.0"},
	Constants: map[string]string{"asce7-16-sign": "1.0.0"},
}

type sample struct {
	Area   float64 `json:"area"`
	Moment float64 `json:"moment"`
	Name   string  `json:"name"`
}

func TestConfidencePenalties(t *testing.T) {
	tests := []struct {
		name string
		ws   []Warning
		want float64
	}{
		{"clean", nil, 1.0},
		{"generic", []Warning{Warn(Generic, "a")}, 0.9},
		{"review", []Warning{Warn(NeedsReview, "a")}, 0.7},
		{"no feasible", []Warning{Warn(NoFeasible, "a")}, 0.6},
		{"abstain", []Warning{Warn(Abstain, "a")}, 0.5},
		{"clamped", []Warning{Warn(Abstain, "a"), Warn(Abstain, "b"), Warn(NoFeasible, "c")}, 0},
		{"unknown category counts as generic", []Warning{Warn(Category("odd"), "a")}, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.ws)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestWarningLowersConfidence(t *testing.T) {
	clean, err := Build(sample{Area: 1}, nil, nil, pins)
	require.NoError(t, err)
	warned, err := Build(sample{Area: 1}, nil, []Warning{Warn(Generic, "tall")}, pins)
	require.NoError(t, err)
	assert.Greater(t, clean.Confidence, warned.Confidence)
	assert.Equal(t, clean.ContentHash, warned.ContentHash)
}

func TestBuildOrdersAssumptionsThenWarnings(t *testing.T) {
	env, err := Build(sample{}, []string{"wind defaulted"}, []Warning{Warn(NoFeasible, "no feasible member")}, pins)
	require.NoError(t, err)
	assert.Equal(t, []string{"wind defaulted", "no feasible member"}, env.Assumptions)
	assert.Equal(t, 0.6, env.Confidence)
	assert.Equal(t, "1.2.0", env.SolverVersions["loads.derive"])
	assert.Equal(t, "1.0.0", env.ConstantsVersion["asce7-16-sign"])
}

func TestHashIsStableAndRounded(t *testing.T) {
	a, err := Hash(sample{Area: 112.0000001, Moment: 92.951, Name: "x"})
	require.NoError(t, err)
	b, err := Hash(sample{Area: 112, Moment: 92.95, Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Hash(sample{Area: 112, Moment: 92.96, Name: "x"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	for i := 0; i < 100; i++ {
		again, err := Hash(sample{Area: 112, Moment: 92.95, Name: "x"})
		require.NoError(t, err)
		require.Equal(t, a, again)
	}
}

func TestCanonicalizeSortsKeys(t *testing.T) {
	b, err := Canonicalize(map[string]any{"z": 1.006, "a": []any{0.333, "s"}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[0.33,"s"],"z":1.01}`, string(b))
}

func TestHashDependsOnPins(t *testing.T) {
	a, err := Build(sample{Area: 1}, nil, nil, pins)
	require.NoError(t, err)
	other := Pins{Solvers: pins.Solvers, Constants: map[string]string{"asce7-16-sign": "2.0.0"}}
	b, err := Build(sample{Area: 1}, nil, nil, other)
	require.NoError(t, err)
	assert.NotEqual(t, a.ContentHash, b.ContentHash)
}

func TestHashRejectsNonFinite(t *testing.T) {
	_, err := Build(map[string]float64{"x": math.Inf(1)}, nil, nil, pins)
	assert.Error(t, err)
}

func TestFailure(t *testing.T) {
	v := calcerr.NewValidator("foundation.solve")
	v.Positive("soil_bearing_psf", 0)
	err := fmt.Errorf("engine: %w", v.Err())

	env := Failure(err, pins)
	assert.Equal(t, 0.0, env.Confidence)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "soil_bearing_psf", env.Errors[0].Path)
	assert.Contains(t, env.Assumptions[1], "soil_bearing_psf")
	assert.Empty(t, env.ContentHash)
}
