package constants

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"Pylon/internal/calc/calcerr"
)

type Exposure struct {
	Alpha float64 `yaml:"alpha" json:"alpha"`
	ZgFt  float64 `yaml:"zg_ft" json:"zg_ft"`
}

type Wind struct {
	MinSpeedMph      float64             `yaml:"min_speed_mph"`
	Kd               float64             `yaml:"kd"`
	Kzt              float64             `yaml:"kzt"`
	GustFactor       float64             `yaml:"gust_factor"`
	ForceCoefficient float64             `yaml:"force_coefficient"`
	MinKzHeightFt    float64             `yaml:"min_kz_height_ft"`
	DefaultExposure  string              `yaml:"default_exposure"`
	Exposures        map[string]Exposure `yaml:"exposures"`
}

type Limits struct {
	MaxHeightFt    float64 `yaml:"max_height_ft"`
	MaxMomentKipFt float64 `yaml:"max_moment_kipft"`
}

type Members struct {
	SafetyFactor         float64            `yaml:"safety_factor"`
	TieBreakSeed         string             `yaml:"tie_break_seed"`
	DeflectionLimitRatio float64            `yaml:"deflection_limit_ratio"`
	CostPerLb            map[string]float64 `yaml:"cost_per_lb"`
	ModulusKsi           map[string]float64 `yaml:"modulus_ksi"`
}

type Foundation struct {
	OverturningSafetyFactor float64 `yaml:"overturning_safety_factor"`
	LateralBearingRatio     float64 `yaml:"lateral_bearing_ratio"`
	IsolatedPoleFactor      float64 `yaml:"isolated_pole_factor"`
	ConstrainedCoefficient  float64 `yaml:"constrained_coefficient"`
	MinDepthFt              float64 `yaml:"min_depth_ft"`
	MaxDepthFt              float64 `yaml:"max_depth_ft"`
	MaxIterations           int     `yaml:"max_iterations"`
	ToleranceFt             float64 `yaml:"tolerance_ft"`
	ConcreteCostPerCY       float64 `yaml:"concrete_cost_per_cy"`
}

type Baseplate struct {
	PlateFyKsi        float64   `yaml:"plate_fy_ksi"`
	OmegaPlate        float64   `yaml:"omega_plate"`
	ElectrodeFexxKsi  float64   `yaml:"electrode_fexx_ksi"`
	OmegaWeld         float64   `yaml:"omega_weld"`
	AnchorFuKsi       float64   `yaml:"anchor_fu_ksi"`
	OmegaAnchor       float64   `yaml:"omega_anchor"`
	TensionFactor     float64   `yaml:"tension_factor"`
	ShearFactor       float64   `yaml:"shear_factor"`
	ConcreteFcPsi     float64   `yaml:"concrete_fc_psi"`
	BearingFactor     float64   `yaml:"bearing_factor"`
	OmegaBearing      float64   `yaml:"omega_bearing"`
	BreakoutKc        float64   `yaml:"breakout_kc"`
	BreakoutPhi       float64   `yaml:"breakout_phi"`
	ASDConversion     float64   `yaml:"asd_conversion"`
	MinWeldIn         float64   `yaml:"min_weld_in"`
	SteelDensityLbIn3 float64   `yaml:"steel_density_lb_in3"`
	PlateCostPerLb    float64   `yaml:"plate_cost_per_lb"`
	AnchorCostPerLb   float64   `yaml:"anchor_cost_per_lb"`
	ThicknessesIn     []float64 `yaml:"thicknesses_in"`
	AnchorDiametersIn []float64 `yaml:"anchor_diameters_in"`
	EmbedmentsIn      []float64 `yaml:"embedments_in"`
	AnchorCounts      []int     `yaml:"anchor_counts"`
}

type Optimize struct {
	Seed            uint64  `yaml:"seed"`
	Population      int     `yaml:"population"`
	Generations     int     `yaml:"generations"`
	MutationRate    float64 `yaml:"mutation_rate"`
	CrossoverRate   float64 `yaml:"crossover_rate"`
	ExhaustiveLimit int     `yaml:"exhaustive_limit"`
	Workers         int     `yaml:"workers"`
}

// Pack is one versioned bundle of code coefficients. A parsed Pack is never
// mutated; replacing constants means parsing a new Pack.
type Pack struct {
	Name        string     `yaml:"name"`
	Version     string     `yaml:"version"`
	Wind        Wind       `yaml:"wind"`
	Limits      Limits     `yaml:"limits"`
	Members     Members    `yaml:"members"`
	Foundation  Foundation `yaml:"foundation"`
	Baseplate   Baseplate  `yaml:"baseplate"`
	Optimize    Optimize   `yaml:"optimize"`
	ContentHash string     `yaml:"-"`
}

// Ref identifies a pack for audit and replay.
type Ref struct {
	Name        string `json:"pack_name"`
	Version     string `json:"version"`
	ContentHash string `json:"content_hash"`
}

func (p *Pack) Ref() Ref {
	return Ref{Name: p.Name, Version: p.Version, ContentHash: p.ContentHash}
}

// Key is the registry key, name@version.
func (p *Pack) Key() string {
	return p.Name + "@" + p.Version
}

// VersionMap is the {pack: version} form recorded in envelopes.
func (p *Pack) VersionMap() map[string]string {
	return map[string]string{p.Name: p.Version}
}

// ExposureNames returns the configured exposure categories, sorted.
func (p *Pack) ExposureNames() []string {
	out := make([]string, 0, len(p.Wind.Exposures))
	for k := range p.Wind.Exposures {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Parse decodes and validates a pack. The content hash is taken over the raw bytes.
func Parse(data []byte) (*Pack, error) {
	var p Pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &calcerr.Error{Op: "constants.parse", Kind: calcerr.KindInvalidInput, Err: err}
	}
	sum := sha256.Sum256(data)
	p.ContentHash = hex.EncodeToString(sum[:])
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Pack) validate() error {
	v := calcerr.NewValidator("constants.parse")
	if p.Name == "" {
		v.Add("name", "is required")
	}
	if _, err := semver.StrictNewVersion(p.Version); err != nil {
		v.Add("version", "must be a semantic version: %v", err)
	}

	v.Positive("wind.min_speed_mph", p.Wind.MinSpeedMph)
	v.Positive("wind.kd", p.Wind.Kd)
	v.Positive("wind.kzt", p.Wind.Kzt)
	v.Positive("wind.gust_factor", p.Wind.GustFactor)
	v.Positive("wind.force_coefficient", p.Wind.ForceCoefficient)
	v.Positive("wind.min_kz_height_ft", p.Wind.MinKzHeightFt)
	if len(p.Wind.Exposures) == 0 {
		v.Add("wind.exposures", "at least one exposure category is required")
	}
	for _, name := range p.ExposureNames() {
		e := p.Wind.Exposures[name]
		v.Positive(fmt.Sprintf("wind.exposures.%s.alpha", name), e.Alpha)
		v.Positive(fmt.Sprintf("wind.exposures.%s.zg_ft", name), e.ZgFt)
	}
	if _, ok := p.Wind.Exposures[p.Wind.DefaultExposure]; !ok {
		v.Add("wind.default_exposure", "unknown exposure %q", p.Wind.DefaultExposure)
	}

	v.Positive("limits.max_height_ft", p.Limits.MaxHeightFt)
	v.Positive("members.safety_factor", p.Members.SafetyFactor)
	if p.Members.TieBreakSeed == "" {
		v.Add("members.tie_break_seed", "is required")
	}
	v.Positive("members.deflection_limit_ratio", p.Members.DeflectionLimitRatio)

	f := p.Foundation
	v.Positive("foundation.overturning_safety_factor", f.OverturningSafetyFactor)
	v.Positive("foundation.lateral_bearing_ratio", f.LateralBearingRatio)
	v.Positive("foundation.isolated_pole_factor", f.IsolatedPoleFactor)
	v.Positive("foundation.constrained_coefficient", f.ConstrainedCoefficient)
	v.NonNegative("foundation.min_depth_ft", f.MinDepthFt)
	v.Positive("foundation.max_depth_ft", f.MaxDepthFt)
	v.Positive("foundation.tolerance_ft", f.ToleranceFt)
	if f.MaxIterations <= 0 {
		v.Add("foundation.max_iterations", "must be greater than zero")
	}

	b := p.Baseplate
	v.Positive("baseplate.plate_fy_ksi", b.PlateFyKsi)
	v.Positive("baseplate.omega_plate", b.OmegaPlate)
	v.Positive("baseplate.electrode_fexx_ksi", b.ElectrodeFexxKsi)
	v.Positive("baseplate.omega_weld", b.OmegaWeld)
	v.Positive("baseplate.anchor_fu_ksi", b.AnchorFuKsi)
	v.Positive("baseplate.omega_anchor", b.OmegaAnchor)
	v.Positive("baseplate.concrete_fc_psi", b.ConcreteFcPsi)
	v.Positive("baseplate.omega_bearing", b.OmegaBearing)
	v.Positive("baseplate.asd_conversion", b.ASDConversion)
	v.Positive("baseplate.tension_factor", b.TensionFactor)
	v.Positive("baseplate.shear_factor", b.ShearFactor)
	v.Positive("baseplate.bearing_factor", b.BearingFactor)
	v.Positive("baseplate.breakout_kc", b.BreakoutKc)
	v.Positive("baseplate.breakout_phi", b.BreakoutPhi)
	v.Positive("baseplate.min_weld_in", b.MinWeldIn)
	v.Positive("baseplate.steel_density_lb_in3", b.SteelDensityLbIn3)
	v.NonNegative("baseplate.plate_cost_per_lb", b.PlateCostPerLb)
	v.NonNegative("baseplate.anchor_cost_per_lb", b.AnchorCostPerLb)
	if len(b.ThicknessesIn) == 0 || len(b.AnchorDiametersIn) == 0 || len(b.EmbedmentsIn) == 0 || len(b.AnchorCounts) == 0 {
		v.Add("baseplate", "auto-size grids must not be empty")
	}
	for i, t := range b.ThicknessesIn {
		v.Positive(fmt.Sprintf("baseplate.thicknesses_in[%d]", i), t)
	}
	for i, d := range b.AnchorDiametersIn {
		v.Positive(fmt.Sprintf("baseplate.anchor_diameters_in[%d]", i), d)
	}
	for i, d := range b.EmbedmentsIn {
		v.Positive(fmt.Sprintf("baseplate.embedments_in[%d]", i), d)
	}
	for i, n := range b.AnchorCounts {
		if n < 4 || n%2 != 0 {
			v.Add(fmt.Sprintf("baseplate.anchor_counts[%d]", i), "must be an even count of at least 4, got %d", n)
		}
	}

	o := p.Optimize
	if o.Population < 2 {
		v.Add("optimize.population", "must be at least 2")
	}
	if o.Generations <= 0 {
		v.Add("optimize.generations", "must be greater than zero")
	}
	if o.MutationRate < 0 || o.MutationRate > 1 {
		v.Add("optimize.mutation_rate", "must be within [0,1]")
	}
	if o.CrossoverRate < 0 || o.CrossoverRate > 1 {
		v.Add("optimize.crossover_rate", "must be within [0,1]")
	}
	if o.ExhaustiveLimit <= 0 {
		v.Add("optimize.exhaustive_limit", "must be greater than zero")
	}
	if o.Workers <= 0 {
		v.Add("optimize.workers", "must be greater than zero")
	}
	return v.Err()
}
