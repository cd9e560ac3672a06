// Package eventstore provides the append-only audit log and the pure
// projections derived from it. Events are created once, appended, and never
// mutated or deleted; all engine state is derived by replaying them.
package eventstore

import (
	"time"
)

// Recognized event types. Projections key off these; unknown types are
// tolerated (ignored by projections, never rejected by the store).
const (
	TypeProjectInitialized = "project_initialized"
	TypeEdgeStarted        = "edge_started"
	TypeIterationCompleted = "iteration_completed"
	TypeEdgeConverged      = "edge_converged"
	TypeEvaluatorDetail    = "evaluator_detail"
	TypeFPFailure          = "fp_failure"
	TypeIterationAbandoned = "iteration_abandoned"
	TypeFeatureSpawned     = "feature_spawned"
	TypeFeatureFoldedBack  = "feature_folded_back"
	TypeReleaseCreated     = "release_created"
)

// Event is one immutable audit record: one JSON object per line in the log.
type Event struct {
	EventType string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"` // ISO-8601 UTC
	Project   string                 `json:"project"`
	Feature   string                 `json:"feature,omitempty"`
	Edge      string                 `json:"edge,omitempty"`
	Delta     *int                   `json:"delta,omitempty"`
	Iteration int                    `json:"iteration,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// DeltaValue returns the delta and whether it was present
func (e Event) DeltaValue() (int, bool) {
	if e.Delta == nil {
		return 0, false
	}
	return *e.Delta, true
}

// WithDelta sets the delta field; used by event constructors
func (e Event) WithDelta(delta int) Event {
	e.Delta = &delta
	return e
}

// Appender is the write interface of an event store. The JSONL Store is the
// canonical implementation; alternative bindings (the SQLite mirror here, a
// document database elsewhere) satisfy the same contract: append is the
// only mutation, all-or-nothing per event.
type Appender interface {
	Emit(event Event) (Event, error)
}
