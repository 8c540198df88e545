package optimize

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/constants"
)

// grid trades x against (29-x); y only adds cost, and odd y is infeasible.
type grid struct {
	n        int
	feasible bool
}

func (g grid) Cardinalities() []int { return []int{g.n, g.n} }

func (g grid) Evaluate(genome []int) Evaluation {
	x, y := float64(genome[0]), float64(genome[1])
	return Evaluation{
		Objectives: []float64{x + y, float64(g.n-1) - x + y},
		Feasible:   g.feasible && genome[1]%2 == 0,
	}
}

func (g grid) Key(genome []int) string { return fmt.Sprintf("%d-%d", genome[0], genome[1]) }

func TestDominates(t *testing.T) {
	assert.True(t, Dominates([]float64{1, 1}, []float64{1, 2}))
	assert.False(t, Dominates([]float64{1, 2}, []float64{1, 2}))
	assert.False(t, Dominates([]float64{0, 3}, []float64{1, 2}))
}

func TestParetoFrontIgnoresInputOrder(t *testing.T) {
	cands := []Candidate{
		{Key: "a", Objectives: []float64{1, 5}, Feasible: true},
		{Key: "b", Objectives: []float64{2, 2}, Feasible: true},
		{Key: "c", Objectives: []float64{3, 3}, Feasible: true},
		{Key: "d", Objectives: []float64{0, 0}, Feasible: false},
		{Key: "e", Objectives: []float64{5, 1}, Feasible: true},
	}
	front := ParetoFront(cands)
	keys := func(cs []Candidate) []string {
		out := []string{}
		for _, c := range cs {
			out = append(out, c.Key)
		}
		return out
	}
	assert.Equal(t, []string{"a", "b", "e"}, keys(front))

	reversed := []Candidate{cands[4], cands[3], cands[2], cands[1], cands[0]}
	assert.Equal(t, keys(front), keys(ParetoFront(reversed)))
}

func TestExhaustiveFront(t *testing.T) {
	opts := FromPack(constants.MustDefault().Optimize)
	out, err := Search(context.Background(), grid{n: 30, feasible: true}, opts)
	require.NoError(t, err)

	assert.Equal(t, Exhaustive, out.Method)
	assert.True(t, out.Deterministic)
	assert.Equal(t, 900, out.Evaluated)
	require.Len(t, out.Front, 30)
	for _, c := range out.Front {
		assert.Equal(t, 0, c.Genome[1])
	}
	best, ok := out.Best()
	require.True(t, ok)
	assert.Equal(t, "0-0", best.Key)
}

func geneticOpts() Options {
	opts := FromPack(constants.MustDefault().Optimize)
	opts.ExhaustiveLimit = 10
	return opts
}

func TestGeneticIsReproducibleForSeed(t *testing.T) {
	a, err := Search(context.Background(), grid{n: 30, feasible: true}, geneticOpts())
	require.NoError(t, err)
	b, err := Search(context.Background(), grid{n: 30, feasible: true}, geneticOpts())
	require.NoError(t, err)

	assert.Equal(t, Genetic, a.Method)
	assert.False(t, a.Deterministic)
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a.Front)
	for _, c := range a.Front {
		assert.True(t, c.Feasible)
	}
}

func TestGeneticWorkerCountDoesNotChangeResult(t *testing.T) {
	one := geneticOpts()
	one.Workers = 1
	many := geneticOpts()
	many.Workers = 8

	a, err := Search(context.Background(), grid{n: 30, feasible: true}, one)
	require.NoError(t, err)
	b, err := Search(context.Background(), grid{n: 30, feasible: true}, many)
	require.NoError(t, err)
	assert.Equal(t, a.Front, b.Front)
}

func TestGeneticEarlyTermination(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := Search(ctx, grid{n: 30, feasible: true}, geneticOpts())
	require.NoError(t, err)
	assert.True(t, out.EarlyTermination)
	assert.Equal(t, 0, out.Generations)
	assert.NotEmpty(t, out.Front)
	assert.Contains(t, out.String(), "early termination")
}

func TestGeneticTimeoutWithoutFeasible(t *testing.T) {
	opts := geneticOpts()
	clock := time.Unix(0, 0)
	opts.Budget = time.Second
	opts.Now = func() time.Time {
		clock = clock.Add(700 * time.Millisecond)
		return clock
	}

	_, err := Search(context.Background(), grid{n: 30, feasible: false}, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, calcerr.ErrTimeout))
}

func TestGeneticNoFeasibleIsNotAnError(t *testing.T) {
	out, err := Search(context.Background(), grid{n: 30, feasible: false}, geneticOpts())
	require.NoError(t, err)
	assert.Empty(t, out.Front)
	assert.False(t, out.EarlyTermination)
}

func TestSpaceSize(t *testing.T) {
	assert.Equal(t, 24, SpaceSize([]int{2, 3, 4}, 100))
	assert.Equal(t, 11, SpaceSize([]int{100, 100}, 10))
	assert.Equal(t, 0, SpaceSize([]int{3, 0}, 10))
}
