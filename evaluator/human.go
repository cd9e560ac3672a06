package evaluator

import (
	"context"

	"github.com/convergentic/converge/checklist"
)

// HumanProvider resolves human-kind checks to skip in automated mode.
// Human judgment is gathered out of band; an interactive path records the
// approval and feeds it back as a pseudo-check.
type HumanProvider struct{}

// NewHumanProvider creates the provider
func NewHumanProvider() *HumanProvider {
	return &HumanProvider{}
}

// Name returns the provider identifier
func (p *HumanProvider) Name() string {
	return string(checklist.KindHuman)
}

// RunCheck always skips: the engine never blocks an automated iteration on
// a human, and skipped checks never count toward delta.
func (p *HumanProvider) RunCheck(ctx context.Context, check checklist.ResolvedCheck, asset string, ec EvalContext) CheckResult {
	return CheckResult{
		Name:           check.Name,
		Outcome:        OutcomeSkip,
		Required:       check.Required,
		Kind:           check.Kind,
		FunctionalUnit: check.FunctionalUnit,
		Message:        "human review is out of band; approve interactively to record a verdict",
	}
}

// Compile-time interface checks for the built-in providers
var (
	_ Provider = (*DeterministicRunner)(nil)
	_ Provider = (*AgentProvider)(nil)
	_ Provider = (*HumanProvider)(nil)
)
