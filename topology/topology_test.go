package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergentic/converge/errors"
)

const pipelineYAML = `
asset_types:
  - name: intent
  - name: requirements
  - name: code
  - name: unit_tests

edges:
  - source: intent
    target: requirements
    checklist: intent_to_requirements.yaml
  - name: implement
    source: requirements
    target: code
    checklist: requirements_to_code.yaml
  - source: code
    target: unit_tests
    checklist: code_tests.yaml
    bidirectional: true
`

func TestParsePipeline(t *testing.T) {
	topo, err := Parse([]byte(pipelineYAML))
	require.NoError(t, err)

	assert.Len(t, topo.AssetTypes, 4)
	assert.Len(t, topo.Edges, 3)

	// Unnamed edges get the canonical source_to_target name
	edge, ok := topo.Edge("intent_to_requirements")
	require.True(t, ok)
	assert.Equal(t, "intent", edge.Source)

	// Explicit names are kept
	_, ok = topo.Edge("implement")
	assert.True(t, ok)
}

func TestAdmissibleHonorsBidirectional(t *testing.T) {
	topo, err := Parse([]byte(pipelineYAML))
	require.NoError(t, err)

	assert.True(t, topo.Admissible("intent", "requirements"))
	assert.False(t, topo.Admissible("requirements", "intent"), "one-directional edge must not admit the reverse move")

	assert.True(t, topo.Admissible("code", "unit_tests"))
	assert.True(t, topo.Admissible("unit_tests", "code"), "feedback loop admits both directions")

	edge, ok := topo.EdgeFor("unit_tests", "code")
	require.True(t, ok)
	assert.Equal(t, "code_to_unit_tests", edge.Name)
}

func TestParseRejectsUnknownReferences(t *testing.T) {
	_, err := Parse([]byte(`
asset_types:
  - name: intent
edges:
  - source: intent
    target: phantom
    checklist: x.yaml
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTopology))
}

func TestParseRejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte(`
asset_types:
  - name: intent
  - name: intent
edges: []
`))
	require.Error(t, err)

	_, err = Parse([]byte(`
asset_types:
  - name: a
  - name: b
edges:
  - source: a
    target: b
    checklist: x.yaml
  - source: a
    target: b
    checklist: y.yaml
`))
	require.Error(t, err, "two edges collapsing to the same default name must be rejected")
}
