package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/catalog"
)

var (
	ErrUnknownCatalog  = errors.New("unknown catalog")
	ErrCatalogConflict = errors.New("catalog version already installed with different members")
)

// catalogHistory remembers every catalog the engine has served, keyed
// name@version, so replays can pin the exact member set.
type catalogHistory struct {
	mu    sync.RWMutex
	byRef map[string]*catalog.Catalog
}

func newCatalogHistory() *catalogHistory {
	return &catalogHistory{byRef: make(map[string]*catalog.Catalog)}
}

// add registers c. A name@version already held with a different content hash
// is a conflict; the same content is a no-op.
func (h *catalogHistory) add(c *catalog.Catalog) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.byRef[c.Ref()]; ok {
		if prev.ContentHash() != c.ContentHash() {
			return &calcerr.Error{
				Op:   "engine.install_catalog",
				Kind: calcerr.KindInvalidInput,
				Fields: []calcerr.FieldError{{Path: "version",
					Message: fmt.Sprintf("%s is taken by content %s", c.Ref(), prev.ContentHash()[:12])}},
				Err: ErrCatalogConflict,
			}
		}
		return nil
	}
	h.byRef[c.Ref()] = c
	return nil
}

func (h *catalogHistory) lookup(name, version string) (*catalog.Catalog, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.byRef[name+"@"+version]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", ErrUnknownCatalog, name, version)
	}
	return c, nil
}

func (h *catalogHistory) refs() []CatalogRef {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]CatalogRef, 0, len(h.byRef))
	for _, c := range h.byRef {
		out = append(out, catalogRef(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// InstallCatalog makes c the live catalog. Reusing a name@version the engine
// has already served with other members is rejected.
func (e *Engine) InstallCatalog(c *catalog.Catalog) error {
	if err := e.catalogs.add(c); err != nil {
		return err
	}
	cur := e.Current()
	e.Swap(&Snapshot{Catalog: c, Pack: cur.Pack, Packs: cur.Packs})
	return nil
}

// WithCatalog returns an engine pinned to a catalog this engine has served,
// for replaying calculations against the exact member set.
func (e *Engine) WithCatalog(name, version string) (*Engine, error) {
	c, err := e.catalogs.lookup(name, version)
	if err != nil {
		return nil, err
	}
	cur := e.Current()
	return e.pinned(&Snapshot{Catalog: c, Pack: cur.Pack, Packs: cur.Packs}, "catalog", c.Ref()), nil
}

func catalogRef(c *catalog.Catalog) CatalogRef {
	return CatalogRef{
		Name:        c.Name(),
		Version:     c.Version(),
		ContentHash: c.ContentHash(),
		Members:     c.Len(),
	}
}
