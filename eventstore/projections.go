package eventstore

import (
	"sort"
	"time"
)

// Projections are pure functions over the event list. They never mutate the
// log; derived state can always be rebuilt by replaying it.

// Pair identifies one (feature, edge) unit of iteration
type Pair struct {
	Feature string
	Edge    string
}

// EdgeProgress is the projected state of one edge within a feature trajectory
type EdgeProgress struct {
	Status      string     `json:"status"` // "iterating" or "converged"
	Iteration   int        `json:"iteration"`
	Delta       int        `json:"delta"`
	ConvergedAt *time.Time `json:"converged_at,omitempty"`
}

// FeatureStatus folds events into per-feature trajectories:
// edge_started → iterating, edge_converged → converged, with iteration
// counts and last deltas carried from iteration_completed events.
func FeatureStatus(events []Event) map[string]map[string]EdgeProgress {
	features := make(map[string]map[string]EdgeProgress)

	edgeFor := func(feature string) map[string]EdgeProgress {
		if _, ok := features[feature]; !ok {
			features[feature] = make(map[string]EdgeProgress)
		}
		return features[feature]
	}

	for _, ev := range events {
		if ev.Feature == "" || ev.Edge == "" {
			continue
		}
		switch ev.EventType {
		case TypeEdgeStarted:
			edges := edgeFor(ev.Feature)
			progress := edges[ev.Edge]
			if progress.Status == "" {
				progress.Status = "iterating"
			}
			edges[ev.Edge] = progress
		case TypeIterationCompleted:
			edges := edgeFor(ev.Feature)
			progress := edges[ev.Edge]
			if progress.Status != "converged" {
				progress.Status = "iterating"
			}
			progress.Iteration++
			if delta, ok := ev.DeltaValue(); ok {
				progress.Delta = delta
			}
			edges[ev.Edge] = progress
		case TypeEdgeConverged:
			edges := edgeFor(ev.Feature)
			progress := edges[ev.Edge]
			progress.Status = "converged"
			progress.Delta = 0
			ts := ev.Timestamp
			progress.ConvergedAt = &ts
			edges[ev.Edge] = progress
		}
	}
	return features
}

// StuckPairs reports every (feature, edge) whose last `window` consecutive
// iteration_completed deltas are equal and greater than zero — no progress
// is being made. A convergence event for the pair resets its window, so a
// pair that converged among those iterations is never reported.
func StuckPairs(events []Event, window int) []Pair {
	if window <= 0 {
		window = 3
	}

	deltas := make(map[Pair][]int)
	for _, ev := range events {
		if ev.Feature == "" || ev.Edge == "" {
			continue
		}
		pair := Pair{Feature: ev.Feature, Edge: ev.Edge}
		switch ev.EventType {
		case TypeIterationCompleted:
			delta, ok := ev.DeltaValue()
			if !ok {
				continue
			}
			history := append(deltas[pair], delta)
			if len(history) > window {
				history = history[len(history)-window:]
			}
			deltas[pair] = history
		case TypeEdgeConverged:
			delete(deltas, pair)
		}
	}

	var stuck []Pair
	for pair, history := range deltas {
		if len(history) < window {
			continue
		}
		first := history[0]
		if first <= 0 {
			continue
		}
		same := true
		for _, d := range history[1:] {
			if d != first {
				same = false
				break
			}
		}
		if same {
			stuck = append(stuck, pair)
		}
	}

	sort.Slice(stuck, func(i, j int) bool {
		if stuck[i].Feature != stuck[j].Feature {
			return stuck[i].Feature < stuck[j].Feature
		}
		return stuck[i].Edge < stuck[j].Edge
	})
	return stuck
}

// Abandoned describes an edge_started with no later progress: the crash
// marker surfaced on restart.
type Abandoned struct {
	Pair
	LastSeen time.Time
}

// AbandonedIterations reports every (feature, edge) whose most recent
// edge_started has no later edge_converged or iteration_completed, and no
// iteration_abandoned recorded since — so emitting the abandonment marker
// makes a second projection pass idempotent.
func AbandonedIterations(events []Event) []Abandoned {
	type state struct {
		started   bool
		lastSeen  time.Time
		progress  bool
		abandoned bool
	}

	pairs := make(map[Pair]*state)
	for _, ev := range events {
		if ev.Feature == "" || ev.Edge == "" {
			continue
		}
		pair := Pair{Feature: ev.Feature, Edge: ev.Edge}
		st, ok := pairs[pair]
		if !ok {
			st = &state{}
			pairs[pair] = st
		}
		switch ev.EventType {
		case TypeEdgeStarted:
			st.started = true
			st.lastSeen = ev.Timestamp
			st.progress = false
			st.abandoned = false
		case TypeIterationCompleted, TypeEdgeConverged:
			st.progress = true
		case TypeIterationAbandoned:
			st.abandoned = true
		}
	}

	var abandoned []Abandoned
	for pair, st := range pairs {
		if st.started && !st.progress && !st.abandoned {
			abandoned = append(abandoned, Abandoned{Pair: pair, LastSeen: st.lastSeen})
		}
	}

	sort.Slice(abandoned, func(i, j int) bool {
		if abandoned[i].Feature != abandoned[j].Feature {
			return abandoned[i].Feature < abandoned[j].Feature
		}
		return abandoned[i].Edge < abandoned[j].Edge
	})
	return abandoned
}
