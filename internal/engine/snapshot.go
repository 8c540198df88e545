package engine

import (
	"fmt"
	"os"

	"Pylon/internal/calc/catalog"
	"Pylon/internal/calc/constants"
)

// Snapshot is the read-only reference data every call runs against. It is
// never modified; reloading builds a new Snapshot and swaps it in.
type Snapshot struct {
	Catalog *catalog.Catalog
	Pack    *constants.Pack
	Packs   *constants.Registry
}

// Source says where a snapshot's reference data comes from. Empty fields mean
// the embedded defaults.
type Source struct {
	CatalogXLSX    string
	CatalogName    string
	CatalogVersion string
	ConstantsDir   string
	ConstantsPack  string // name@version
}

// Load builds a snapshot from src.
func Load(src Source) (*Snapshot, error) {
	packs, err := constants.Embedded()
	if err != nil {
		return nil, fmt.Errorf("engine: embedded constants: %w", err)
	}
	if src.ConstantsDir != "" {
		if packs, err = packs.WithDir(src.ConstantsDir); err != nil {
			return nil, fmt.Errorf("engine: constants dir: %w", err)
		}
	}

	var pack *constants.Pack
	if src.ConstantsPack != "" {
		pack, err = packs.LookupRef(src.ConstantsPack)
	} else {
		pack, err = packs.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	cat, err := loadCatalog(src)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Catalog: cat, Pack: pack, Packs: packs}, nil
}

func loadCatalog(src Source) (*catalog.Catalog, error) {
	if src.CatalogXLSX == "" {
		c, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("engine: builtin catalog: %w", err)
		}
		return c, nil
	}
	f, err := os.Open(src.CatalogXLSX)
	if err != nil {
		return nil, fmt.Errorf("engine: open catalog: %w", err)
	}
	defer f.Close()

	name, version := src.CatalogName, src.CatalogVersion
	if name == "" {
		name = "xlsx-catalog"
	}
	if version == "" {
		version = "0.0.0"
	}
	c, err := catalog.LoadXLSX(f, name, version)
	if err != nil {
		return nil, fmt.Errorf("engine: catalog %s: %w", src.CatalogXLSX, err)
	}
	return c, nil
}

// versions is the constants_version map: the pack and the catalog it ran with.
func (s *Snapshot) versions(withCatalog bool) map[string]string {
	out := s.Pack.VersionMap()
	if withCatalog {
		for k, v := range s.Catalog.VersionMap() {
			out["catalog:"+k] = v
		}
	}
	return out
}
