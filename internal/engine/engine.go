package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"Pylon/internal/calc/baseplate"
	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/constants"
	"Pylon/internal/calc/envelope"
	"Pylon/internal/calc/foundation"
	"Pylon/internal/calc/loads"
	"Pylon/internal/calc/members"
	"Pylon/internal/calc/optimize"
	"Pylon/internal/calc/versioning"
)

// Engine runs calculations against the current snapshot and wraps every
// result in an envelope. It is safe for concurrent use.
type Engine struct {
	snap     atomic.Pointer[Snapshot]
	catalogs *catalogHistory
	budget   time.Duration
	workers  int
	log      *slog.Logger
}

type Option func(*Engine)

// WithSearchBudget bounds the wall-clock time of each optimization search.
func WithSearchBudget(d time.Duration) Option {
	return func(e *Engine) { e.budget = d }
}

// WithWorkers overrides the pack's evaluation worker count.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func New(snap *Snapshot, opts ...Option) *Engine {
	e := &Engine{
		catalogs: newCatalogHistory(),
		log:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(e)
	}
	_ = e.catalogs.add(snap.Catalog)
	e.snap.Store(snap)
	return e
}

// Current returns the snapshot in use.
func (e *Engine) Current() *Snapshot {
	return e.snap.Load()
}

// Swap installs a new snapshot and returns the previous one. Calls already
// running keep the snapshot they started with. The catalog is remembered for
// WithCatalog unless its name@version is already held; InstallCatalog is the
// checked path for new catalogs.
func (e *Engine) Swap(s *Snapshot) *Snapshot {
	_ = e.catalogs.add(s.Catalog)
	prev := e.snap.Swap(s)
	e.log.Info("engine.snapshot_swapped",
		"pack", s.Pack.Key(), "catalog", s.Catalog.Name()+"@"+s.Catalog.Version())
	return prev
}

// WithPack returns an engine pinned to an exact constants pack from the
// current registry, for replaying historical calculations. It keeps the live
// catalog; chain WithCatalog to pin that too.
func (e *Engine) WithPack(name, version string) (*Engine, error) {
	cur := e.Current()
	p, err := cur.Packs.Lookup(name, version)
	if err != nil {
		return nil, err
	}
	return e.pinned(&Snapshot{Catalog: cur.Catalog, Pack: p, Packs: cur.Packs}, "pack", p.Key()), nil
}

func (e *Engine) pinned(s *Snapshot, attr, ref string) *Engine {
	out := &Engine{catalogs: e.catalogs, budget: e.budget, workers: e.workers, log: e.log.With(attr, ref)}
	out.snap.Store(s)
	return out
}

// Pins returns the versions recorded for an operation, usable for a failure
// envelope when the operation itself errored.
func (e *Engine) Pins(op string) envelope.Pins {
	return e.pinsFor(e.Current(), op)
}

// Failure is the boundary envelope for a failed operation.
func (e *Engine) Failure(op string, err error) envelope.Envelope {
	return envelope.Failure(err, e.Pins(op))
}

// Operation names, as used by the HTTP and CLI layers.
const (
	OpLoads     = "loads"
	OpMembers   = "members"
	OpFooting   = "footing"
	OpBaseplate = "baseplate"
	OpAutosize  = "autosize"
	OpWeld      = "weld"
	OpDesign    = "design"
)

func opSolvers(op string) ([]string, bool) {
	switch op {
	case OpLoads:
		return []string{versioning.LoadsDerive, versioning.EnvelopeBuild}, false
	case OpMembers:
		return []string{versioning.MembersFilter, versioning.EnvelopeBuild}, true
	case OpFooting:
		return []string{versioning.FoundationBurial, versioning.EnvelopeBuild}, false
	case OpBaseplate:
		return []string{versioning.BaseplateCheck, versioning.EnvelopeBuild}, false
	case OpAutosize:
		return []string{versioning.BaseplateAutosize, versioning.BaseplateCheck, versioning.BaseplateWeldAdvisor,
			versioning.OptimizePareto, versioning.EnvelopeBuild}, false
	case OpWeld:
		return []string{versioning.BaseplateWeldAdvisor, versioning.EnvelopeBuild}, false
	case OpDesign:
		return []string{versioning.LoadsDerive, versioning.MembersFilter, versioning.FoundationBurial,
			versioning.BaseplateCheck, versioning.EnvelopeBuild}, true
	}
	return []string{versioning.EnvelopeBuild}, false
}

func (e *Engine) searchOptions(p *constants.Pack) optimize.Options {
	opts := optimize.FromPack(p.Optimize)
	opts.Budget = e.budget
	if e.workers > 0 {
		opts.Workers = e.workers
	}
	return opts
}

// seal builds the envelope for op and logs it. extra solver names are pinned
// on top of the operation's own set.
func (e *Engine) seal(s *Snapshot, op string, result any, assumptions []string, warnings []envelope.Warning, extra ...string) (envelope.Envelope, error) {
	solvers, withCatalog := opSolvers(op)
	pins := envelope.Pins{
		Solvers:   versioning.MustPin(append(solvers, extra...)...),
		Constants: s.versions(withCatalog),
	}
	env, err := envelope.Build(result, assumptions, warnings, pins)
	if err != nil {
		return envelope.Envelope{}, fmt.Errorf("engine: %s: %w", op, err)
	}
	e.log.Debug("engine.call", "op", op, "hash", env.ContentHash, "confidence", env.Confidence)
	return env, nil
}

func (e *Engine) fail(op string, err error) error {
	level := slog.LevelWarn
	if errors.Is(err, calcerr.ErrInvalidInput) {
		level = slog.LevelDebug
	}
	e.log.Log(context.Background(), level, "engine.call_failed", "op", op, "err", err)
	return err
}

func (e *Engine) DeriveLoads(in loads.Input) (envelope.Envelope, error) {
	s := e.Current()
	res, err := loads.Derive(s.Pack, in)
	if err != nil {
		return envelope.Envelope{}, e.fail(OpLoads, err)
	}
	return e.seal(s, OpLoads, res.Loads, res.Assumptions, res.Warnings)
}

func (e *Engine) SelectMembers(ctx context.Context, req members.Request) (envelope.Envelope, error) {
	s := e.Current()
	res, err := members.FilterWith(ctx, s.Catalog, s.Pack, req, e.searchOptions(s.Pack))
	if err != nil {
		return envelope.Envelope{}, e.fail(OpMembers, err)
	}
	return e.seal(s, OpMembers, res.Selection, res.Assumptions, res.Warnings, searchSolvers(res.Selection.Search)...)
}

func (e *Engine) SolveFooting(in foundation.Input) (envelope.Envelope, error) {
	s := e.Current()
	res, err := foundation.SolveFooting(s.Pack, in)
	if err != nil {
		return envelope.Envelope{}, e.fail(OpFooting, err)
	}
	return e.seal(s, OpFooting, res.Footing, res.Assumptions, res.Warnings)
}

func (e *Engine) CheckBaseplate(in baseplate.Input) (envelope.Envelope, error) {
	s := e.Current()
	res, err := baseplate.Check(s.Pack, in)
	if err != nil {
		return envelope.Envelope{}, e.fail(OpBaseplate, err)
	}
	return e.seal(s, OpBaseplate, res.Report, res.Assumptions, res.Warnings)
}

func (e *Engine) AutoSizeBaseplate(ctx context.Context, in baseplate.Input) (envelope.Envelope, error) {
	s := e.Current()
	res, err := baseplate.AutoSizeWith(ctx, s.Pack, in, e.searchOptions(s.Pack))
	if err != nil {
		return envelope.Envelope{}, e.fail(OpAutosize, err)
	}
	var extra []string
	if res.Sizing.Method == string(optimize.Genetic) {
		extra = append(extra, versioning.OptimizeGenetic)
	}
	return e.seal(s, OpAutosize, res.Sizing, res.Assumptions, res.Warnings, extra...)
}

func (e *Engine) RecommendWeld(in baseplate.WeldInput) (envelope.Envelope, error) {
	s := e.Current()
	res, err := baseplate.RecommendWeld(s.Pack, in)
	if err != nil {
		return envelope.Envelope{}, e.fail(OpWeld, err)
	}
	return e.seal(s, OpWeld, res, nil, nil)
}

func searchSolvers(out *optimize.Outcome) []string {
	if out == nil {
		return nil
	}
	names := []string{versioning.OptimizePareto}
	if out.Method == optimize.Genetic {
		names = append(names, versioning.OptimizeGenetic)
	}
	return names
}

// Versions describes what the engine is currently running.
type Versions struct {
	Solvers  map[string]string `json:"solver_versions"`
	Packs    []constants.Ref   `json:"constants_packs"`
	Active   constants.Ref     `json:"active_pack"`
	Catalog  CatalogRef        `json:"catalog"`
	Catalogs []CatalogRef      `json:"catalogs"`
}

type CatalogRef struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	ContentHash string `json:"content_hash"`
	Members     int    `json:"members"`
}

func (e *Engine) Versions() Versions {
	s := e.Current()
	return Versions{
		Solvers:  versioning.All(),
		Packs:    s.Packs.Refs(),
		Active:   s.Pack.Ref(),
		Catalog:  catalogRef(s.Catalog),
		Catalogs: e.catalogs.refs(),
	}
}
