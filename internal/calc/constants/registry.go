package constants

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed packs/*.yaml
var embedded embed.FS

// DefaultName and DefaultVersion select the pack used when a caller does not pin one.
const (
	DefaultName    = "asce7-16-sign"
	DefaultVersion = "1.0.0"
)

var ErrUnknownPack = errors.New("unknown constants pack")

// Registry is an immutable set of packs keyed name@version.
type Registry struct {
	packs map[string]*Pack
}

// NewRegistry builds a registry from already parsed packs. Duplicate keys with
// different content are rejected.
func NewRegistry(packs ...*Pack) (*Registry, error) {
	r := &Registry{packs: make(map[string]*Pack, len(packs))}
	for _, p := range packs {
		if prev, ok := r.packs[p.Key()]; ok && prev.ContentHash != p.ContentHash {
			return nil, fmt.Errorf("constants pack %s registered twice with different content", p.Key())
		}
		r.packs[p.Key()] = p
	}
	return r, nil
}

// Embedded parses every pack shipped with the binary.
func Embedded() (*Registry, error) {
	entries, err := embedded.ReadDir("packs")
	if err != nil {
		return nil, err
	}
	packs := make([]*Pack, 0, len(entries))
	for _, e := range entries {
		data, err := embedded.ReadFile("packs/" + e.Name())
		if err != nil {
			return nil, err
		}
		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("embedded pack %s: %w", e.Name(), err)
		}
		packs = append(packs, p)
	}
	return NewRegistry(packs...)
}

// WithDir returns a new registry holding r's packs plus every *.yaml pack in dir.
func (r *Registry) WithDir(dir string) (*Registry, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	packs := r.all()
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read constants pack %s: %w", f, err)
		}
		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("constants pack %s: %w", f, err)
		}
		packs = append(packs, p)
	}
	return NewRegistry(packs...)
}

// Lookup returns exactly the pinned pack. There is no fallback to a newer version.
func (r *Registry) Lookup(name, version string) (*Pack, error) {
	p, ok := r.packs[name+"@"+version]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", ErrUnknownPack, name, version)
	}
	return p, nil
}

// LookupRef parses "name@version" and looks it up.
func (r *Registry) LookupRef(ref string) (*Pack, error) {
	name, version, ok := strings.Cut(ref, "@")
	if !ok || name == "" || version == "" {
		return nil, fmt.Errorf("%w: malformed reference %q, want name@version", ErrUnknownPack, ref)
	}
	return r.Lookup(name, version)
}

func (r *Registry) Default() (*Pack, error) {
	return r.Lookup(DefaultName, DefaultVersion)
}

// Refs lists every registered pack, sorted by key.
func (r *Registry) Refs() []Ref {
	all := r.all()
	out := make([]Ref, 0, len(all))
	for _, p := range all {
		out = append(out, p.Ref())
	}
	return out
}

func (r *Registry) all() []*Pack {
	keys := make([]string, 0, len(r.packs))
	for k := range r.packs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Pack, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.packs[k])
	}
	return out
}

// MustDefault loads the embedded default pack and panics on failure. For tests
// and tools that cannot proceed without constants.
func MustDefault() *Pack {
	r, err := Embedded()
	if err != nil {
		panic(err)
	}
	p, err := r.Default()
	if err != nil {
		panic(err)
	}
	return p
}
