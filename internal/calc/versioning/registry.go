package versioning

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Solver names recorded into envelopes.
const (
	LoadsDerive          = "loads.derive"
	MembersFilter        = "members.filter"
	OptimizePareto       = "optimize.pareto"
	OptimizeGenetic      = "optimize.genetic"
	FoundationBurial     = "foundation.direct_burial"
	BaseplateCheck       = "baseplate.check"
	BaseplateAutosize    = "baseplate.autosize"
	BaseplateWeldAdvisor = "baseplate.weld_recommend"
	EnvelopeBuild        = "envelope.build"
)

var ErrUnknownSolver = errors.New("unknown solver")

// Bumped only at deploy time. A MAJOR bump means outputs for an existing input
// may differ; MINOR and PATCH bumps must reproduce the previous golden outputs.
var solverVersions = map[string]string{
	LoadsDerive:          "1.2.0",
	MembersFilter:        "1.1.0",
	OptimizePareto:       "1.0.0",
	OptimizeGenetic:      "1.0.0",
	FoundationBurial:     "2.0.0",
	BaseplateCheck:       "1.3.0",
	BaseplateAutosize:    "1.0.1",
	BaseplateWeldAdvisor: "1.0.0",
	EnvelopeBuild:        "1.0.0",
}

var parsed = mustParse(solverVersions)

func mustParse(m map[string]string) map[string]*semver.Version {
	out := make(map[string]*semver.Version, len(m))
	for name, v := range m {
		sv, err := semver.StrictNewVersion(v)
		if err != nil {
			panic(fmt.Sprintf("versioning: solver %q has invalid version %q: %v", name, v, err))
		}
		out[name] = sv
	}
	return out
}

// Get returns the semantic version of a solver function.
func Get(name string) (string, error) {
	v, ok := parsed[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSolver, name)
	}
	return v.String(), nil
}

// Pin returns the versions of the named solvers, for embedding into an envelope.
// Unknown names are reported rather than silently skipped.
func Pin(names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, n := range names {
		v, err := Get(n)
		if err != nil {
			return nil, err
		}
		out[n] = v
	}
	return out, nil
}

// MustPin is Pin for solver names known at compile time.
func MustPin(names ...string) map[string]string {
	out, err := Pin(names...)
	if err != nil {
		panic(err)
	}
	return out
}

// All returns every registered solver and its version.
func All() map[string]string {
	out := make(map[string]string, len(parsed))
	for n, v := range parsed {
		out[n] = v.String()
	}
	return out
}

// Names returns the registered solver names, sorted.
func Names() []string {
	out := make([]string, 0, len(parsed))
	for n := range parsed {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Compatible reports whether outputs produced under prev must be reproduced
// under next, i.e. both share a MAJOR version and next is not older.
func Compatible(prev, next string) (bool, error) {
	a, err := semver.StrictNewVersion(prev)
	if err != nil {
		return false, fmt.Errorf("parse %q: %w", prev, err)
	}
	b, err := semver.StrictNewVersion(next)
	if err != nil {
		return false, fmt.Errorf("parse %q: %w", next, err)
	}
	return a.Major() == b.Major() && !b.LessThan(a), nil
}
