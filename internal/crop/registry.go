package crop

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var defaultTable []byte

// table is the on-disk layout of a profile table.
type table struct {
	Default string    `yaml:"default"`
	Crops   []Profile `yaml:"crops"`
}

// Registry is an immutable set of crop profiles. It is safe for concurrent
// reads because nothing mutates it after construction.
type Registry struct {
	profiles []*Profile
	byKey    map[string]*Profile
	def      *Profile
}

// Default returns the registry built from the embedded profile table.
func Default() *Registry {
	r, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("crop: embedded profile table: %v", err))
	}
	return r
}

// Load reads a profile table from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile table: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from YAML table data.
func Parse(data []byte) (*Registry, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse profile table: %w", err)
	}
	return New(t.Default, t.Crops)
}

// New builds a registry from profiles. defaultID names the profile used for
// unknown identifiers; it must be one of the profiles.
func New(defaultID string, profiles []Profile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("profile table is empty")
	}

	r := &Registry{byKey: make(map[string]*Profile)}
	for i := range profiles {
		p := profiles[i]
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byKey[normalize(p.ID)]; dup {
			return nil, fmt.Errorf("duplicate crop %q", p.ID)
		}
		p.Aliases = append([]string(nil), p.Aliases...)
		r.profiles = append(r.profiles, &p)
		r.byKey[normalize(p.ID)] = &p
	}
	// Aliases never shadow a primary id.
	for _, p := range r.profiles {
		for _, a := range p.Aliases {
			if _, taken := r.byKey[normalize(a)]; !taken {
				r.byKey[normalize(a)] = p
			}
		}
	}

	def, ok := r.byKey[normalize(defaultID)]
	if !ok {
		return nil, fmt.Errorf("default crop %q is not in the table", defaultID)
	}
	r.def = def
	return r, nil
}

// Lookup resolves a crop identifier or alias. Unknown identifiers resolve to
// the default profile; the boolean reports whether the id was known.
// The returned profile is a copy.
func (r *Registry) Lookup(id string) (*Profile, bool) {
	if p, ok := r.byKey[normalize(id)]; ok {
		return p.clone(), true
	}
	return r.def.clone(), false
}

// DefaultProfile returns a copy of the fallback profile.
func (r *Registry) DefaultProfile() *Profile {
	return r.def.clone()
}

// Profiles returns copies of all profiles in table order.
func (r *Registry) Profiles() []*Profile {
	out := make([]*Profile, len(r.profiles))
	for i, p := range r.profiles {
		out[i] = p.clone()
	}
	return out
}

// List returns the public crop listing in table order.
func (r *Registry) List() []Info {
	out := make([]Info, len(r.profiles))
	for i, p := range r.profiles {
		out[i] = Info{ID: p.ID, Name: p.Name, Category: p.Category}
	}
	return out
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
