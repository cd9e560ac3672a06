// Package evaluator defines the pluggable check-evaluation capability: a
// provider runs one resolved check against a candidate asset and returns a
// verdict. Deterministic checks run locally; agent checks go through the
// subprocess supervisor to an external judge; human checks are out of band.
package evaluator

import (
	"github.com/convergentic/converge/checklist"
)

// Outcome is the verdict of running one check
type Outcome string

const (
	OutcomePass  Outcome = "pass"
	OutcomeFail  Outcome = "fail"
	OutcomeSkip  Outcome = "skip"
	OutcomeError Outcome = "error"
)

// CheckResult is the outcome of running one ResolvedCheck. Skipped checks
// never count toward the convergence delta regardless of the required flag.
type CheckResult struct {
	Name           string              `json:"name"`
	Outcome        Outcome             `json:"outcome"`
	Required       bool                `json:"required"`
	Kind           checklist.CheckKind `json:"kind"`
	FunctionalUnit string              `json:"functional_unit,omitempty"`
	Message        string              `json:"message,omitempty"`
	ExitCode       int                 `json:"exit_code,omitempty"` // Populated for deterministic checks
}

// CountsTowardDelta reports whether this result contributes to the
// failed-and-required delta of an evaluation. Only outright failures
// count: skips are exempt by definition, and error outcomes (a judge
// binary missing, for example) surface through the message and the
// evaluator_detail event rather than the delta.
func (r CheckResult) CountsTowardDelta() bool {
	return r.Required && r.Outcome == OutcomeFail
}
