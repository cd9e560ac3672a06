package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergentic/converge/errors"
	"github.com/convergentic/converge/topology"
)

var testEdge = topology.Edge{
	Name:   "design_to_code",
	Source: "design",
	Target: "code",
}

func TestDependencyPolicyBlocksUnconvergedUpstream(t *testing.T) {
	policy := &DependencyPolicy{}

	result := policy.Validate(testEdge, Context{UpstreamConverged: false})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "design", "the message names the unmet dependency")

	result = policy.Validate(testEdge, Context{UpstreamConverged: true})
	assert.True(t, result.Passed)
}

func TestSecurityPolicyRequiresScannerForSensitiveProjects(t *testing.T) {
	policy := &SecurityPolicy{}

	tests := []struct {
		name            string
		confidentiality string
		scanner         bool
		wantPass        bool
	}{
		{"public without scanner", "public", false, true},
		{"internal without scanner", "internal", false, true},
		{"confidential without scanner", "confidential", false, false},
		{"confidential with scanner", "confidential", true, true},
		{"restricted without scanner", "restricted", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := policy.Validate(testEdge, Context{
				UpstreamConverged: true,
				Confidentiality:   tt.confidentiality,
				ScannerEnabled:    tt.scanner,
			})
			assert.Equal(t, tt.wantPass, result.Passed)
		})
	}
}

func TestValidatePreFlightRunsEveryPolicy(t *testing.T) {
	registry := NewRegistry()

	results := registry.ValidatePreFlight(testEdge, Context{
		UpstreamConverged: false,
		Confidentiality:   "restricted",
	})

	require.Len(t, results, 2, "one result per registered policy")
	assert.True(t, Blocked(results))
	assert.Len(t, Messages(results), 2)
}

func TestValidatePreFlightAllPass(t *testing.T) {
	registry := NewRegistry()

	results := registry.ValidatePreFlight(testEdge, Context{
		UpstreamConverged: true,
		Confidentiality:   "internal",
	})

	assert.False(t, Blocked(results))
	assert.Empty(t, Messages(results))
}

type alwaysBlockPolicy struct{}

func (p *alwaysBlockPolicy) Name() string { return "change-freeze" }
func (p *alwaysBlockPolicy) Validate(edge topology.Edge, ctx Context) Result {
	return Result{Policy: p.Name(), Passed: false, Message: "release freeze in effect"}
}

func TestRegistryCustomPolicy(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&alwaysBlockPolicy{})

	policy, err := registry.Get("change-freeze")
	require.NoError(t, err)
	assert.Equal(t, "change-freeze", policy.Name())

	results := registry.ValidatePreFlight(testEdge, Context{UpstreamConverged: true, Confidentiality: "public"})
	assert.True(t, Blocked(results), "a single failing policy blocks the invocation")
}

func TestRegistryDuplicatePanicsAndUnknownErrors(t *testing.T) {
	registry := NewRegistry()

	assert.Panics(t, func() { registry.Register(&DependencyPolicy{}) })

	_, err := registry.Get("phantom")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPolicyNotFound))
}
