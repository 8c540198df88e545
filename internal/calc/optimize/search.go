package optimize

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/combin"

	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/constants"
)

// Problem is a discrete multi-objective search space. Gene i takes values in
// [0, Cardinalities()[i]). All objectives are minimized. Evaluate must be a
// pure function of the genome; it is called from several goroutines.
type Problem interface {
	Cardinalities() []int
	Evaluate(genome []int) Evaluation
	Key(genome []int) string
}

type Evaluation struct {
	Objectives []float64
	Feasible   bool
}

type Method string

const (
	Exhaustive Method = "exhaustive"
	Genetic    Method = "genetic"
)

type Options struct {
	Seed            uint64
	Population      int
	Generations     int
	MutationRate    float64
	CrossoverRate   float64
	ExhaustiveLimit int
	Workers         int
	// Budget bounds wall-clock time; zero means only ctx and Generations bound the run.
	Budget time.Duration
	// Now is the clock used for Budget. Defaults to time.Now.
	Now func() time.Time
}

func FromPack(o constants.Optimize) Options {
	return Options{
		Seed:            o.Seed,
		Population:      o.Population,
		Generations:     o.Generations,
		MutationRate:    o.MutationRate,
		CrossoverRate:   o.CrossoverRate,
		ExhaustiveLimit: o.ExhaustiveLimit,
		Workers:         o.Workers,
	}
}

// Outcome of a search. Deterministic is true only for exhaustive runs; a
// genetic run is reproducible for a fixed Seed and nothing more.
type Outcome struct {
	Front            []Candidate `json:"front"`
	Method           Method      `json:"method"`
	Seed             uint64      `json:"seed,omitempty"`
	Generations      int         `json:"generations"`
	Evaluated        int         `json:"evaluated"`
	EarlyTermination bool        `json:"early_termination"`
	Deterministic    bool        `json:"deterministic"`
}

// Best returns the first front entry.
func (o Outcome) Best() (Candidate, bool) {
	if len(o.Front) == 0 {
		return Candidate{}, false
	}
	return o.Front[0], true
}

// SpaceSize returns the number of genomes, capped at limit+1 to avoid overflow.
func SpaceSize(cards []int, limit int) int {
	size := 1
	for _, c := range cards {
		if c <= 0 {
			return 0
		}
		size *= c
		if size > limit {
			return limit + 1
		}
	}
	return size
}

// Search enumerates the space when it is small enough and otherwise runs a
// seeded genetic search. The deadline is checked once per generation; when it
// expires the best front found so far is returned with EarlyTermination set,
// or a solver_timeout error if nothing feasible was found.
func Search(ctx context.Context, p Problem, opts Options) (Outcome, error) {
	opts = withDefaults(opts)
	cards := p.Cardinalities()
	if SpaceSize(cards, opts.ExhaustiveLimit) <= opts.ExhaustiveLimit {
		return exhaustive(ctx, p, cards, opts)
	}
	return genetic(ctx, p, cards, opts)
}

func withDefaults(o Options) Options {
	if o.Population < 2 {
		o.Population = 2
	}
	if o.Generations <= 0 {
		o.Generations = 1
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func exhaustive(ctx context.Context, p Problem, cards []int, opts Options) (Outcome, error) {
	out := Outcome{Method: Exhaustive, Deterministic: true}
	if SpaceSize(cards, opts.ExhaustiveLimit) == 0 {
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return out, calcerr.Timeout("optimize.exhaustive", "cancelled before evaluation: %v", err)
	}
	genomes := combin.Cartesian(cards)
	cands := evaluateAll(p, genomes, opts.Workers)
	out.Front = ParetoFront(cands)
	out.Generations = 1
	out.Evaluated = len(cands)
	return out, nil
}

func genetic(ctx context.Context, p Problem, cards []int, opts Options) (Outcome, error) {
	out := Outcome{Method: Genetic, Seed: opts.Seed}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	start := opts.Now()
	archive := make(map[string]Candidate)

	record := func(cs []Candidate) {
		for _, c := range cs {
			out.Evaluated++
			if c.Feasible {
				archive[c.Key] = c
			}
		}
	}

	pop := make([][]int, opts.Population)
	for i := range pop {
		pop[i] = randomGenome(rng, cards)
	}
	current := evaluateAll(p, pop, opts.Workers)
	record(current)

	for gen := 0; gen < opts.Generations; gen++ {
		if expired(ctx, opts, start) {
			out.EarlyTermination = true
			break
		}
		order := rankOrder(current)
		children := make([][]int, 0, opts.Population)
		for len(children) < opts.Population {
			a := tournament(rng, current, order)
			b := tournament(rng, current, order)
			child := make([]int, len(a.Genome))
			copy(child, a.Genome)
			if rng.Float64() < opts.CrossoverRate {
				for g := range child {
					if rng.IntN(2) == 1 {
						child[g] = b.Genome[g]
					}
				}
			}
			for g := range child {
				if rng.Float64() < opts.MutationRate {
					child[g] = rng.IntN(cards[g])
				}
			}
			children = append(children, child)
		}
		offspring := evaluateAll(p, children, opts.Workers)
		record(offspring)

		merged := append(append([]Candidate{}, current...), offspring...)
		current = survivors(merged, opts.Population)
		out.Generations = gen + 1
	}

	front := make([]Candidate, 0, len(archive))
	for _, c := range archive {
		front = append(front, c)
	}
	out.Front = ParetoFront(front)
	if out.EarlyTermination && len(out.Front) == 0 {
		return out, calcerr.Timeout("optimize.genetic",
			"deadline reached after %d generations with no feasible candidate", out.Generations)
	}
	return out, nil
}

func expired(ctx context.Context, opts Options, start time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	return opts.Budget > 0 && opts.Now().Sub(start) >= opts.Budget
}

func randomGenome(rng *rand.Rand, cards []int) []int {
	g := make([]int, len(cards))
	for i, c := range cards {
		g[i] = rng.IntN(c)
	}
	return g
}

// evaluateAll fans evaluation out over workers. Results land at their input
// index so arrival order never matters.
func evaluateAll(p Problem, genomes [][]int, workers int) []Candidate {
	out := make([]Candidate, len(genomes))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, genome := range genomes {
		g.Go(func() error {
			ev := p.Evaluate(genome)
			out[i] = Candidate{
				Genome:     genome,
				Key:        p.Key(genome),
				Objectives: ev.Objectives,
				Feasible:   ev.Feasible,
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// rankOrder returns, per candidate index, its position in the total order
// (Pareto rank, objectives, key). Lower is fitter.
func rankOrder(cs []Candidate) []int {
	r := ranks(cs)
	idx := make([]int, len(cs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		if r[i] != r[j] {
			return r[i] < r[j]
		}
		return less(cs[i], cs[j])
	})
	pos := make([]int, len(cs))
	for p, i := range idx {
		pos[i] = p
	}
	return pos
}

func tournament(rng *rand.Rand, cs []Candidate, pos []int) Candidate {
	a := rng.IntN(len(cs))
	b := rng.IntN(len(cs))
	if pos[b] < pos[a] {
		return cs[b]
	}
	return cs[a]
}

func survivors(cs []Candidate, n int) []Candidate {
	pos := rankOrder(cs)
	idx := make([]int, len(cs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return pos[idx[a]] < pos[idx[b]] })
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]Candidate, 0, n)
	for _, i := range idx[:n] {
		out = append(out, cs[i])
	}
	return out
}

// String is used in assumptions recorded by callers.
func (o Outcome) String() string {
	s := fmt.Sprintf("%s search evaluated %d candidates", o.Method, o.Evaluated)
	if o.Method == Genetic {
		s += fmt.Sprintf(" over %d generations (seed %d; reproducible for this seed only)", o.Generations, o.Seed)
	}
	if o.EarlyTermination {
		s += "; early termination at deadline, best candidate so far returned"
	}
	return s
}
