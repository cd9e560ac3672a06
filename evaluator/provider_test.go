package evaluator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergentic/converge/checklist"
	"github.com/convergentic/converge/errors"
)

func TestRegistrySeedsBuiltins(t *testing.T) {
	registry := NewRegistry()

	assert.Equal(t, []string{"agent", "deterministic", "human"}, registry.Names())
	for _, kind := range []checklist.CheckKind{checklist.KindDeterministic, checklist.KindAgent, checklist.KindHuman} {
		provider, err := registry.New(string(kind), Deps{})
		require.NoError(t, err)
		assert.Equal(t, string(kind), provider.Name())
	}
}

func TestRegistryUnknownNameFailsFast(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.New("oracle", Deps{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProviderNotFound))
}

func TestRegistryDuplicateRegistrationPanics(t *testing.T) {
	registry := NewRegistry()

	assert.Panics(t, func() {
		registry.Register("deterministic", func(deps Deps) Provider {
			return NewHumanProvider()
		})
	})
}

type stubProvider struct{ name string }

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) RunCheck(ctx context.Context, check checklist.ResolvedCheck, asset string, ec EvalContext) CheckResult {
	return CheckResult{Name: check.Name, Outcome: OutcomePass}
}

func TestRegistryCustomProvider(t *testing.T) {
	registry := NewRegistry()
	registry.Register("oracle", func(deps Deps) Provider {
		return &stubProvider{name: "oracle"}
	})

	require.True(t, registry.Has("oracle"))
	provider, err := registry.New("oracle", Deps{})
	require.NoError(t, err)

	result := provider.RunCheck(context.Background(), checklist.ResolvedCheck{Name: "x"}, "", EvalContext{})
	assert.Equal(t, OutcomePass, result.Outcome)
}

func TestHumanProviderAlwaysSkips(t *testing.T) {
	provider := NewHumanProvider()

	result := provider.RunCheck(context.Background(), checklist.ResolvedCheck{
		Name:     "signoff",
		Kind:     checklist.KindHuman,
		Required: true,
	}, "asset", EvalContext{})

	assert.Equal(t, OutcomeSkip, result.Outcome)
	assert.True(t, result.Required, "the original required flag is carried through")
	assert.False(t, result.CountsTowardDelta())
}
