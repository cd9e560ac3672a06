// Package topology defines the asset-type stages and the transitions
// between them. The topology document is read once at startup and is
// immutable for the process lifetime: a candidate asset may only move
// along an edge present here.
package topology

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/convergentic/converge/errors"
)

// AssetType is a named stage of the methodology pipeline
// (e.g., intent, requirements, design, code, tests).
type AssetType struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Schema      string `yaml:"schema,omitempty"` // Content schema reference for candidate assets
}

// Edge is an admissible transition between two asset types.
// A bidirectional edge is a feedback loop (e.g., code↔unit_tests) and
// admits movement in both directions.
type Edge struct {
	Name          string `yaml:"name,omitempty"` // Defaults to "<source>_to_<target>"
	Source        string `yaml:"source"`
	Target        string `yaml:"target"`
	Checklist     string `yaml:"checklist"` // Checklist document for this edge, relative to the checklist dir
	Bidirectional bool   `yaml:"bidirectional,omitempty"`
}

// Topology is the full stage graph. Construct with Load or New; do not
// mutate after construction.
type Topology struct {
	AssetTypes []AssetType `yaml:"asset_types"`
	Edges      []Edge      `yaml:"edges"`

	assetIndex map[string]AssetType
	edgeIndex  map[string]Edge
}

// Load reads and validates a topology document from a YAML file
func Load(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read topology %s", path)
	}
	return Parse(data)
}

// Parse builds a topology from YAML bytes
func Parse(data []byte) (*Topology, error) {
	var topo Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidTopology, err.Error())
	}
	if err := topo.index(); err != nil {
		return nil, err
	}
	return &topo, nil
}

// New builds a topology from already-constructed asset types and edges.
// Used by tests and hosts that assemble topology programmatically.
func New(assetTypes []AssetType, edges []Edge) (*Topology, error) {
	topo := Topology{AssetTypes: assetTypes, Edges: edges}
	if err := topo.index(); err != nil {
		return nil, err
	}
	return &topo, nil
}

// index validates the document and builds lookup tables
func (t *Topology) index() error {
	t.assetIndex = make(map[string]AssetType, len(t.AssetTypes))
	for _, at := range t.AssetTypes {
		if at.Name == "" {
			return errors.Wrap(errors.ErrInvalidTopology, "asset type with empty name")
		}
		if _, dup := t.assetIndex[at.Name]; dup {
			return errors.Wrapf(errors.ErrInvalidTopology, "duplicate asset type %q", at.Name)
		}
		t.assetIndex[at.Name] = at
	}

	t.edgeIndex = make(map[string]Edge, len(t.Edges))
	for i, e := range t.Edges {
		if _, ok := t.assetIndex[e.Source]; !ok {
			return errors.Wrapf(errors.ErrInvalidTopology, "edge %d references unknown source %q", i, e.Source)
		}
		if _, ok := t.assetIndex[e.Target]; !ok {
			return errors.Wrapf(errors.ErrInvalidTopology, "edge %d references unknown target %q", i, e.Target)
		}
		if e.Name == "" {
			e.Name = DefaultEdgeName(e.Source, e.Target)
			t.Edges[i].Name = e.Name
		}
		if _, dup := t.edgeIndex[e.Name]; dup {
			return errors.Wrapf(errors.ErrInvalidTopology, "duplicate edge %q", e.Name)
		}
		t.edgeIndex[e.Name] = e
	}
	return nil
}

// DefaultEdgeName is the canonical edge name when none is configured
func DefaultEdgeName(source, target string) string {
	return fmt.Sprintf("%s_to_%s", source, target)
}

// AssetType looks up an asset type by name
func (t *Topology) AssetType(name string) (AssetType, bool) {
	at, ok := t.assetIndex[name]
	return at, ok
}

// Edge looks up an edge by name
func (t *Topology) Edge(name string) (Edge, bool) {
	e, ok := t.edgeIndex[name]
	return e, ok
}

// Admissible reports whether a candidate may move from source to target.
// Bidirectional edges admit movement against their declared direction.
func (t *Topology) Admissible(source, target string) bool {
	for _, e := range t.Edges {
		if e.Source == source && e.Target == target {
			return true
		}
		if e.Bidirectional && e.Source == target && e.Target == source {
			return true
		}
	}
	return false
}

// EdgeFor returns the edge covering a source→target move, honoring
// bidirectional edges in either direction.
func (t *Topology) EdgeFor(source, target string) (Edge, bool) {
	for _, e := range t.Edges {
		if e.Source == source && e.Target == target {
			return e, true
		}
		if e.Bidirectional && e.Source == target && e.Target == source {
			return e, true
		}
	}
	return Edge{}, false
}
