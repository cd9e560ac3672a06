package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/convergentic/converge/eventstore"
	"github.com/convergentic/converge/vector"
)

func features(statuses ...string) []*vector.FeatureVector {
	var fvs []*vector.FeatureVector
	for i, status := range statuses {
		fvs = append(fvs, &vector.FeatureVector{Feature: string(rune('a' + i)), Status: status})
	}
	return fvs
}

func TestDetectStatePrecedence(t *testing.T) {
	stuck := []eventstore.Pair{{Feature: "a", Edge: "e"}}

	tests := []struct {
		name string
		in   Input
		want State
	}{
		{
			"no workspace wins over everything",
			Input{WorkspacePresent: false, ConstraintsPresent: true, IntentPresent: true, Features: features(vector.StatusActive)},
			StateUninitialised,
		},
		{
			"constraints before intent",
			Input{WorkspacePresent: true},
			StateNeedsConstraints,
		},
		{
			"intent after constraints",
			Input{WorkspacePresent: true, ConstraintsPresent: true},
			StateNeedsIntent,
		},
		{
			"ready but nothing to iterate",
			Input{WorkspacePresent: true, ConstraintsPresent: true, IntentPresent: true},
			StateNoFeatures,
		},
		{
			"stuck takes precedence over in-progress",
			Input{WorkspacePresent: true, ConstraintsPresent: true, IntentPresent: true,
				Features: features(vector.StatusActive), StuckPairs: stuck},
			StateStuck,
		},
		{
			"all blocked",
			Input{WorkspacePresent: true, ConstraintsPresent: true, IntentPresent: true,
				Features: features(vector.StatusBlocked, vector.StatusBlocked)},
			StateAllBlocked,
		},
		{
			"mixed statuses are in progress",
			Input{WorkspacePresent: true, ConstraintsPresent: true, IntentPresent: true,
				Features: features(vector.StatusBlocked, vector.StatusActive, vector.StatusConverged)},
			StateInProgress,
		},
		{
			"all converged",
			Input{WorkspacePresent: true, ConstraintsPresent: true, IntentPresent: true,
				Features: features(vector.StatusConverged, vector.StatusConverged)},
			StateAllConverged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectState(tt.in))
		})
	}
}

func TestRecommendCoversEveryState(t *testing.T) {
	states := []State{
		StateUninitialised, StateNeedsConstraints, StateNeedsIntent,
		StateNoFeatures, StateStuck, StateAllBlocked, StateInProgress, StateAllConverged,
	}
	for _, state := range states {
		assert.NotEqual(t, "unknown state", Recommend(state), "state %s has no recommendation", state)
	}
}
