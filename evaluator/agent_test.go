//go:build !windows

package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergentic/converge/checklist"
	"github.com/convergentic/converge/config"
	"github.com/convergentic/converge/supervisor"
)

func agentCheck(name string) checklist.ResolvedCheck {
	return checklist.ResolvedCheck{
		Name:      name,
		Kind:      checklist.KindAgent,
		Criterion: "the candidate addresses every upstream statement",
		Required:  true,
	}
}

func agentDeps(judgeCommand string) Deps {
	cfg := &config.Config{}
	cfg.Judge.Command = judgeCommand
	cfg.Supervisor.WallTimeoutSeconds = 10
	cfg.Supervisor.StallTimeoutSeconds = 0
	return Deps{
		Config:     cfg,
		Supervisor: supervisor.New(supervisor.Options{PollInterval: 25 * time.Millisecond}, nil),
	}
}

func TestAgentUnconfiguredSkips(t *testing.T) {
	provider := NewAgentProvider(agentDeps(""))
	require.False(t, provider.Configured())

	result := provider.RunCheck(context.Background(), agentCheck("coverage"), "asset", EvalContext{})

	assert.Equal(t, OutcomeSkip, result.Outcome)
	assert.Contains(t, result.Message, "no agent judge configured")
	assert.False(t, result.CountsTowardDelta())
}

func TestAgentJSONVerdictPass(t *testing.T) {
	provider := NewAgentProvider(agentDeps(`sh -c 'echo {\"verdict\":\"pass\",\"reason\":\"ok\"}'`))
	require.True(t, provider.Configured())

	result := provider.RunCheck(context.Background(), agentCheck("coverage"), "asset", EvalContext{})

	assert.Equal(t, OutcomePass, result.Outcome)
	assert.Equal(t, "ok", result.Message)
}

func TestAgentNonzeroExitFails(t *testing.T) {
	provider := NewAgentProvider(agentDeps("false"))

	result := provider.RunCheck(context.Background(), agentCheck("coverage"), "asset", EvalContext{})

	assert.Equal(t, OutcomeFail, result.Outcome)
	assert.Equal(t, 1, result.ExitCode)
}

func TestAgentMissingBinaryIsError(t *testing.T) {
	provider := NewAgentProvider(agentDeps("/no/such/judge"))

	result := provider.RunCheck(context.Background(), agentCheck("coverage"), "asset", EvalContext{})

	assert.Equal(t, OutcomeError, result.Outcome)
	assert.Contains(t, result.Message, "start failure")
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		stdout  string
		outcome Outcome
	}{
		{"json pass", `{"verdict":"pass","reason":"ok"}`, OutcomePass},
		{"json fail", `{"verdict":"fail","reason":"missing requirement 3"}`, OutcomeFail},
		{"json skip", `{"verdict":"skip","reason":"not applicable"}`, OutcomeSkip},
		{"json after preamble", "thinking...\nmore thoughts\n{\"verdict\":\"pass\",\"reason\":\"ok\"}", OutcomePass},
		{"bare token pass", "PASS: looks complete", OutcomePass},
		{"bare token fail", "FAIL - requirement 2 unaddressed", OutcomeFail},
		{"both tokens reads as fail", "PASS criteria not met: FAIL", OutcomeFail},
		{"skip beats pass", "SKIPPED: PASS not evaluated here", OutcomeSkip},
		{"nothing recognizable", "I am not sure what to say", OutcomeError},
		{"empty output", "", OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, _ := parseVerdict(tt.stdout)
			assert.Equal(t, tt.outcome, outcome)
		})
	}
}

func TestBuildJudgePromptCarriesCriterionAndAsset(t *testing.T) {
	prompt := buildJudgePrompt(checklist.ResolvedCheck{
		Name:          "coverage",
		Criterion:     "every statement addressed",
		PassCriterion: "no orphan statements",
	}, "the candidate body", EvalContext{Edge: "design_to_code"})

	assert.Contains(t, prompt, "design_to_code")
	assert.Contains(t, prompt, "every statement addressed")
	assert.Contains(t, prompt, "no orphan statements")
	assert.Contains(t, prompt, "the candidate body")
}
