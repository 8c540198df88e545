package catalog

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"Pylon/internal/calc/calcerr"
)

//go:embed builtin.yaml
var builtin []byte

// Member is one row of the structural catalog. Values are read-only once the
// owning Catalog is built.
type Member struct {
	Family             string  `json:"family" yaml:"family"`
	Designation        string  `json:"designation" yaml:"designation"`
	Material           string  `json:"material" yaml:"material"`
	SectionModulusIn3  float64 `json:"section_modulus_in3" yaml:"s"`
	MomentOfInertiaIn4 float64 `json:"moment_of_inertia_in4" yaml:"i"`
	WeightPerLengthPlf float64 `json:"weight_per_length_plf" yaml:"w"`
	YieldStrengthKsi   float64 `json:"yield_strength_ksi" yaml:"fy"`
}

func (m Member) Key() string {
	return m.Family + "/" + m.Designation
}

// CapacityKipFt is the nominal flexural capacity S·Fy, in kip-ft.
func (m Member) CapacityKipFt() float64 {
	return m.SectionModulusIn3 * m.YieldStrengthKsi / 12.0
}

// Catalog is an immutable, process-wide snapshot of member properties. It is
// safe for concurrent readers; reloading means building a new Catalog.
type Catalog struct {
	name        string
	version     string
	contentHash string
	members     []Member
	index       map[string]int
}

type yamlCatalog struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	Members []Member `yaml:"members"`
}

// New validates and copies members. Iteration order is preserved as given;
// selection never depends on it.
func New(name, version string, members []Member) (*Catalog, error) {
	v := calcerr.NewValidator("catalog.new")
	if name == "" {
		v.Add("name", "is required")
	}
	if version == "" {
		v.Add("version", "is required")
	}
	index := make(map[string]int, len(members))
	for i, m := range members {
		p := fmt.Sprintf("members[%d]", i)
		if m.Family == "" {
			v.Add(p+".family", "is required")
		}
		if m.Designation == "" {
			v.Add(p+".designation", "is required")
		}
		if m.Material == "" {
			v.Add(p+".material", "is required")
		}
		v.Positive(p+".section_modulus_in3", m.SectionModulusIn3)
		v.Positive(p+".moment_of_inertia_in4", m.MomentOfInertiaIn4)
		v.Positive(p+".weight_per_length_plf", m.WeightPerLengthPlf)
		v.Positive(p+".yield_strength_ksi", m.YieldStrengthKsi)
		if prev, dup := index[m.Key()]; dup {
			v.Add(p, "duplicates members[%d] (%s)", prev, m.Key())
			continue
		}
		index[m.Key()] = i
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	own := make([]Member, len(members))
	copy(own, members)
	for i := range own {
		own[i].Material = strings.ToLower(own[i].Material)
	}
	return &Catalog{
		name:        name,
		version:     version,
		contentHash: hashMembers(own),
		members:     own,
		index:       index,
	}, nil
}

// hashMembers fingerprints the member set independent of row order.
func hashMembers(ms []Member) string {
	rows := make([]string, 0, len(ms))
	for _, m := range ms {
		rows = append(rows, fmt.Sprintf("%s|%s|%s|%g|%g|%g|%g", m.Family, m.Designation, m.Material,
			m.SectionModulusIn3, m.MomentOfInertiaIn4, m.WeightPerLengthPlf, m.YieldStrengthKsi))
	}
	sort.Strings(rows)
	sum := sha256.Sum256([]byte(strings.Join(rows, "\n")))
	return hex.EncodeToString(sum[:])
}

// LoadYAML parses a catalog document.
func LoadYAML(data []byte) (*Catalog, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &calcerr.Error{Op: "catalog.load_yaml", Kind: calcerr.KindInvalidInput, Err: err}
	}
	return New(doc.Name, doc.Version, doc.Members)
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return LoadYAML(builtin)
}

func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Name() string        { return c.name }
func (c *Catalog) Version() string     { return c.version }
func (c *Catalog) ContentHash() string { return c.contentHash }
func (c *Catalog) Len() int            { return len(c.members) }

// At returns a copy of the i-th member.
func (c *Catalog) At(i int) Member { return c.members[i] }

// Members returns a copy of all members in catalog order.
func (c *Catalog) Members() []Member {
	out := make([]Member, len(c.members))
	copy(out, c.members)
	return out
}

// Lookup finds a member by family/designation key.
func (c *Catalog) Lookup(key string) (Member, bool) {
	i, ok := c.index[key]
	if !ok {
		return Member{}, false
	}
	return c.members[i], true
}

// Filter returns members of the given material; empty material matches all.
func (c *Catalog) Filter(material string) []Member {
	material = strings.ToLower(strings.TrimSpace(material))
	out := make([]Member, 0, len(c.members))
	for _, m := range c.members {
		if material == "" || m.Material == material {
			out = append(out, m)
		}
	}
	return out
}

// Ref is name@version.
func (c *Catalog) Ref() string { return c.name + "@" + c.version }

// VersionMap is the catalog entry recorded in envelopes. The content hash goes
// in as semver build metadata so two member sets under one name@version never
// share a pin.
func (c *Catalog) VersionMap() map[string]string {
	return map[string]string{c.name: c.version + "+" + c.contentHash[:12]}
}
