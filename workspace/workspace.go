// Package workspace classifies the overall project state from the feature
// and event projections, and turns that state into the single "what do I
// do next" recommendation surfaced to a caller.
package workspace

import (
	"github.com/convergentic/converge/eventstore"
	"github.com/convergentic/converge/vector"
)

// State is the overall workspace classification
type State string

const (
	StateUninitialised    State = "UNINITIALISED"     // No workspace at all
	StateNeedsConstraints State = "NEEDS_CONSTRAINTS" // Workspace exists, no constraint document
	StateNeedsIntent      State = "NEEDS_INTENT"      // Constraints exist, no intent document
	StateNoFeatures       State = "NO_FEATURES"       // Ready, but nothing to iterate
	StateStuck            State = "STUCK"             // At least one feature is stuck
	StateAllBlocked       State = "ALL_BLOCKED"       // Every feature waits on a spawned child
	StateInProgress       State = "IN_PROGRESS"       // Features are iterating
	StateAllConverged     State = "ALL_CONVERGED"     // Every feature has converged
)

// Input gathers the facts DetectState classifies. Existence flags come from
// the filesystem; features and stuck pairs come from projections.
type Input struct {
	WorkspacePresent   bool
	ConstraintsPresent bool
	IntentPresent      bool
	Features           []*vector.FeatureVector
	StuckPairs         []eventstore.Pair
}

// DetectState is a pure function from projected facts to a workspace state.
//
// Evaluation order is significant: existence checks (workspace →
// constraints → intent) take precedence over feature-derived states, and
// STUCK takes precedence over plain IN_PROGRESS.
func DetectState(in Input) State {
	if !in.WorkspacePresent {
		return StateUninitialised
	}
	if !in.ConstraintsPresent {
		return StateNeedsConstraints
	}
	if !in.IntentPresent {
		return StateNeedsIntent
	}
	if len(in.Features) == 0 {
		return StateNoFeatures
	}
	if len(in.StuckPairs) > 0 {
		return StateStuck
	}

	allBlocked := true
	allConverged := true
	for _, fv := range in.Features {
		if fv.Status != vector.StatusBlocked {
			allBlocked = false
		}
		if fv.Status != vector.StatusConverged {
			allConverged = false
		}
	}
	if allBlocked {
		return StateAllBlocked
	}
	if allConverged {
		return StateAllConverged
	}
	return StateInProgress
}

// Recommend maps a state to the next action a caller should take
func Recommend(state State) string {
	switch state {
	case StateUninitialised:
		return "initialize a workspace: converge init"
	case StateNeedsConstraints:
		return "write the constraint document before iterating"
	case StateNeedsIntent:
		return "capture the project intent before iterating"
	case StateNoFeatures:
		return "create a feature vector to begin iterating"
	case StateStuck:
		return "a feature is stuck: spawn a discovery vector for the blocking question"
	case StateAllBlocked:
		return "all features wait on spawned children: resolve and fold back a discovery vector"
	case StateInProgress:
		return "keep iterating: converge run"
	case StateAllConverged:
		return "all features converged: cut a release"
	default:
		return "unknown state"
	}
}
