package service

import "github.com/bravia-rpc/bravia-go/pkg/wire"

// MethodDescriptor is one (name, version) pair advertised by an endpoint.
type MethodDescriptor struct {
	Name    string       `json:"name"`
	Version string       `json:"version"`
	Inputs  []wire.Param `json:"inputs,omitempty"`
	Outputs []wire.Param `json:"outputs,omitempty"`
}

// VersionGroup is one element of a getVersions answer.
type VersionGroup []string

// Description is the answer to Describe.
type Description struct {
	Endpoint string             `json:"endpoint"`
	Methods  []MethodDescriptor `json:"methods"`
}

// Catalog maps method names to their advertised versions in discovery order.
// A Catalog is read-only once published by a Protocol.
type Catalog struct {
	byName map[string][]MethodDescriptor
	order  []MethodDescriptor
}

func newCatalog() *Catalog {
	return &Catalog{byName: make(map[string][]MethodDescriptor)}
}

// add records md unless its (name, version) pair is already present.
func (c *Catalog) add(md MethodDescriptor) bool {
	for _, existing := range c.byName[md.Name] {
		if existing.Version == md.Version {
			return false
		}
	}
	c.byName[md.Name] = append(c.byName[md.Name], md)
	c.order = append(c.order, md)
	return true
}

// Len returns the number of (name, version) entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Has reports whether any version of name is advertised.
func (c *Catalog) Has(name string) bool {
	return c != nil && len(c.byName[name]) > 0
}

// Lookup returns the advertised versions of name in discovery order.
func (c *Catalog) Lookup(name string) []MethodDescriptor {
	if c == nil {
		return nil
	}
	entries := c.byName[name]
	if len(entries) == 0 {
		return nil
	}
	return append([]MethodDescriptor(nil), entries...)
}

// Resolve picks the descriptor to call for (name, version): the exact match
// if advertised, otherwise the latest discovered version. ok is false when
// name is not advertised at all; exact is false when a fallback was chosen.
func (c *Catalog) Resolve(name, version string) (md MethodDescriptor, exact, ok bool) {
	if c == nil {
		return MethodDescriptor{}, false, false
	}
	entries := c.byName[name]
	if len(entries) == 0 {
		return MethodDescriptor{}, false, false
	}
	for _, e := range entries {
		if e.Version == version {
			return e, true, true
		}
	}
	return entries[len(entries)-1], false, true
}

// Methods returns every entry in discovery order as a fresh slice.
func (c *Catalog) Methods() []MethodDescriptor {
	if c == nil {
		return []MethodDescriptor{}
	}
	return append(make([]MethodDescriptor, 0, len(c.order)), c.order...)
}

// Filter returns the entries advertised at version, in discovery order.
func (c *Catalog) Filter(version string) []MethodDescriptor {
	out := []MethodDescriptor{}
	if c == nil {
		return out
	}
	for _, md := range c.order {
		if md.Version == version {
			out = append(out, md)
		}
	}
	return out
}

// Versions returns the distinct versions in discovery order.
func (c *Catalog) Versions() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, md := range c.order {
		if !seen[md.Version] {
			seen[md.Version] = true
			out = append(out, md.Version)
		}
	}
	return out
}
