package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"Pylon/internal/calc/baseplate"
	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/envelope"
	"Pylon/internal/calc/foundation"
	"Pylon/internal/calc/loads"
	"Pylon/internal/calc/members"
	"Pylon/internal/calc/units"
	"Pylon/internal/calc/versioning"
)

// FootingSpec is the foundation part of a design request. The moment comes
// from the derived loads.
type FootingSpec struct {
	DiameterFt     float64 `json:"diameter_ft"`
	SoilBearingPsf float64 `json:"soil_bearing_psf"`
}

// ConnectionSpec is the base connection of a design request; its loads come
// from the derived loads of one pole.
type ConnectionSpec struct {
	Plate         baseplate.Plate   `json:"plate"`
	Weld          baseplate.Weld    `json:"weld"`
	Anchors       baseplate.Anchors `json:"anchors"`
	ConcreteFcPsi float64           `json:"concrete_fc_psi,omitempty"`
}

// DesignRequest runs the whole chain: loads, member selection, and optionally
// the footing and the base connection.
type DesignRequest struct {
	Loads       loads.Input         `json:"loads"`
	NumPoles    int                 `json:"num_poles"`
	Material    string              `json:"material"`
	Preferences members.Preferences `json:"preferences"`
	Footing     *FootingSpec        `json:"footing,omitempty"`
	Connection  *ConnectionSpec     `json:"connection,omitempty"`
}

type DesignResult struct {
	Loads      loads.DerivedLoads  `json:"loads"`
	NumPoles   int                 `json:"num_poles"`
	Members    members.Selection   `json:"members"`
	Footing    *foundation.Footing `json:"footing,omitempty"`
	Connection *baseplate.Report   `json:"connection,omitempty"`
}

// Design derives loads once and feeds them forward. Nothing downstream
// changes the derived loads.
func (e *Engine) Design(ctx context.Context, req DesignRequest) (envelope.Envelope, error) {
	s := e.Current()
	res, assumptions, warnings, extra, err := e.design(ctx, s, req)
	if err != nil {
		return envelope.Envelope{}, e.fail(OpDesign, err)
	}
	return e.seal(s, OpDesign, res, assumptions, warnings, extra...)
}

func (e *Engine) design(ctx context.Context, s *Snapshot, req DesignRequest) (DesignResult, []string, []envelope.Warning, []string, error) {
	var (
		out         DesignResult
		assumptions []string
		warnings    []envelope.Warning
	)
	poles := req.NumPoles
	if poles == 0 {
		poles = 1
		assumptions = append(assumptions, "number of poles not given; single pole assumed")
	}
	if poles < 0 {
		v := calcerr.NewValidator("engine.design")
		v.Add("num_poles", "must be at least 1, got %d", poles)
		return out, nil, nil, nil, v.Err()
	}
	out.NumPoles = poles

	lr, err := loads.Derive(s.Pack, req.Loads)
	if err != nil {
		return out, nil, nil, nil, err
	}
	out.Loads = lr.Loads
	assumptions = append(assumptions, lr.Assumptions...)
	warnings = append(warnings, lr.Warnings...)

	n := float64(poles)
	perPole := units.Round(lr.Loads.BendingMomentKipFt / n)
	prefs := req.Preferences
	if prefs.LengthFt == 0 {
		prefs.LengthFt = req.Loads.PoleHeightFt
	}
	if prefs.ShearKip == 0 && prefs.ArmFt == 0 {
		prefs.ShearKip = units.Round(lr.Loads.ShearKip / n)
		prefs.ArmFt = lr.Loads.MomentArmFt
	}
	mr, err := members.FilterWith(ctx, s.Catalog, s.Pack, members.Request{
		DemandMomentKipFt: perPole,
		Material:          req.Material,
		Preferences:       prefs,
	}, e.searchOptions(s.Pack))
	if err != nil {
		return out, nil, nil, nil, err
	}
	out.Members = mr.Selection
	assumptions = append(assumptions, fmt.Sprintf("member demand %.2f kip-ft per pole over %d pole(s)", perPole, poles))
	assumptions = append(assumptions, mr.Assumptions...)
	warnings = append(warnings, mr.Warnings...)
	extra := searchSolvers(mr.Selection.Search)

	axialPerPole := lr.Loads.AxialKip / n
	if rec := mr.Selection.Recommended; rec != nil {
		axialPerPole += rec.TotalWeightLb / 1000
	}

	if req.Footing != nil {
		fr, err := foundation.SolveFooting(s.Pack, foundation.Input{
			DiameterFt:     req.Footing.DiameterFt,
			SoilBearingPsf: req.Footing.SoilBearingPsf,
			MomentKipFt:    lr.Loads.BendingMomentKipFt,
			NumPoles:       poles,
			AxialKip:       units.Round(axialPerPole * n),
		})
		if err != nil {
			return out, nil, nil, nil, err
		}
		out.Footing = &fr.Footing
		assumptions = append(assumptions, fr.Assumptions...)
		warnings = append(warnings, fr.Warnings...)
	}

	if req.Connection != nil {
		c := req.Connection
		br, err := baseplate.Check(s.Pack, baseplate.Input{
			Plate:   c.Plate,
			Weld:    c.Weld,
			Anchors: c.Anchors,
			Loads: baseplate.Loads{
				MomentKipFt: perPole,
				ShearKip:    units.Round(lr.Loads.ShearKip / n),
				AxialKip:    units.Round(axialPerPole),
			},
			ConcreteFcPsi: c.ConcreteFcPsi,
		})
		if err != nil {
			return out, nil, nil, nil, err
		}
		out.Connection = &br.Report
		assumptions = append(assumptions, br.Assumptions...)
		warnings = append(warnings, br.Warnings...)
	}
	return out, assumptions, warnings, extra, nil
}

// Batch runs many design requests in parallel. Results keep input order; a
// failed item becomes a failure envelope instead of aborting the batch.
func (e *Engine) Batch(ctx context.Context, reqs []DesignRequest) ([]envelope.Envelope, error) {
	if len(reqs) == 0 {
		v := calcerr.NewValidator("engine.batch")
		v.Add("items", "at least one design request is required")
		return nil, v.Err()
	}
	s := e.Current()
	out := make([]envelope.Envelope, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	limit := e.searchOptions(s.Pack).Workers
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, req := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, as, ws, extra, err := e.design(gctx, s, req)
			if err != nil {
				e.fail(OpDesign, err)
				out[i] = envelope.Failure(err, e.pinsFor(s, OpDesign))
				return nil
			}
			env, err := e.seal(s, OpDesign, res, as, ws, extra...)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = env
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("engine: batch: %w", err)
	}
	return out, nil
}

func (e *Engine) pinsFor(s *Snapshot, op string) envelope.Pins {
	solvers, withCatalog := opSolvers(op)
	return envelope.Pins{Solvers: versioning.MustPin(solvers...), Constants: s.versions(withCatalog)}
}
