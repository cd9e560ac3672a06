// Package vector stores feature vector documents: the materialized,
// per-feature projection of the event log. A vector is a cache, not a
// source of truth — it is read, mutated, and rewritten on every iteration
// (last-writer-wins) and can always be rebuilt by replaying events.
package vector

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/convergentic/converge/errors"
	"github.com/convergentic/converge/eventstore"
)

// Feature status values
const (
	StatusActive    = "active"
	StatusBlocked   = "blocked"
	StatusConverged = "converged"
)

// TrajectoryEntry is the projected state of one asset-type stage
type TrajectoryEntry struct {
	Status      string     `json:"status"`
	Iteration   int        `json:"iteration"`
	Delta       int        `json:"delta"`
	ConvergedAt *time.Time `json:"converged_at,omitempty"`
	Asset       string     `json:"asset,omitempty"` // Candidate asset location
}

// FeatureVector is the current projected state of one feature
type FeatureVector struct {
	Feature    string                      `json:"feature"`
	Status     string                      `json:"status"`
	Trajectory map[string]*TrajectoryEntry `json:"trajectory"`
	Parent     string                      `json:"parent,omitempty"`     // Back-reference for spawned features (association, not ownership)
	BlockedBy  string                      `json:"blocked_by,omitempty"` // Child feature this one waits on
	Question   string                      `json:"question,omitempty"`   // For discovery vectors: the blocking question
	UpdatedAt  time.Time                   `json:"updated_at"`
}

// Entry returns the trajectory entry for an asset type, creating it if absent
func (fv *FeatureVector) Entry(assetType string) *TrajectoryEntry {
	if fv.Trajectory == nil {
		fv.Trajectory = make(map[string]*TrajectoryEntry)
	}
	entry, ok := fv.Trajectory[assetType]
	if !ok {
		entry = &TrajectoryEntry{Status: "iterating"}
		fv.Trajectory[assetType] = entry
	}
	return entry
}

// Converged reports whether every trajectory entry has converged.
// A feature with no trajectory yet has not converged.
func (fv *FeatureVector) Converged() bool {
	if len(fv.Trajectory) == 0 {
		return false
	}
	for _, entry := range fv.Trajectory {
		if entry.Status != "converged" {
			return false
		}
	}
	return true
}

// Store reads and writes feature vector documents under one directory,
// one JSON document per feature. It serializes writers per feature: the
// engine guarantees at most one iteration in flight per (feature, edge),
// and the store's per-feature lock is the in-process enforcement of that.
type Store struct {
	dir   string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a vector store rooted at dir
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create vectors directory %s", dir)
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// Dir returns the store's root directory
func (s *Store) Dir() string {
	return s.dir
}

// Lock acquires the single-writer lock for a feature and returns the
// unlock function. Hold it across a read-modify-write of the vector.
func (s *Store) Lock(feature string) func() {
	s.mu.Lock()
	lock, ok := s.locks[feature]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[feature] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// path returns the document location for a feature id
func (s *Store) path(feature string) string {
	return filepath.Join(s.dir, feature+".json")
}

// Load reads a feature vector document. Returns ErrNotFound when absent.
func (s *Store) Load(feature string) (*FeatureVector, error) {
	data, err := os.ReadFile(s.path(feature))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("feature vector %q", feature)
		}
		return nil, errors.Wrapf(err, "failed to read feature vector %q", feature)
	}
	var fv FeatureVector
	if err := json.Unmarshal(data, &fv); err != nil {
		return nil, errors.Wrapf(err, "failed to parse feature vector %q", feature)
	}
	return &fv, nil
}

// LoadOrCreate reads a vector or initializes a fresh active one
func (s *Store) LoadOrCreate(feature string) (*FeatureVector, error) {
	fv, err := s.Load(feature)
	if err == nil {
		return fv, nil
	}
	if !errors.IsNotFoundError(err) {
		return nil, err
	}
	return &FeatureVector{
		Feature:    feature,
		Status:     StatusActive,
		Trajectory: make(map[string]*TrajectoryEntry),
	}, nil
}

// Save rewrites a feature vector document in full (last-writer-wins)
func (s *Store) Save(fv *FeatureVector) error {
	fv.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(fv, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to marshal feature vector %q", fv.Feature)
	}
	if err := os.WriteFile(s.path(fv.Feature), append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write feature vector %q", fv.Feature)
	}
	return nil
}

// List returns all feature vectors in the store, sorted by feature id
func (s *Store) List() ([]*FeatureVector, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to list vectors directory %s", s.dir)
	}

	var vectors []*FeatureVector
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		feature := strings.TrimSuffix(entry.Name(), ".json")
		fv, err := s.Load(feature)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, fv)
	}

	sort.Slice(vectors, func(i, j int) bool { return vectors[i].Feature < vectors[j].Feature })
	return vectors, nil
}

// Rebuild replaces a feature's trajectory from the event log projection.
// Used when a vector document is lost or suspect; the log is authoritative.
// assetFor maps an edge name to the trajectory's asset-type key; pass nil
// to key entries by edge name directly.
func (s *Store) Rebuild(feature string, events []eventstore.Event, assetFor func(edge string) string) (*FeatureVector, error) {
	if assetFor == nil {
		assetFor = func(edge string) string { return edge }
	}
	projected := eventstore.FeatureStatus(events)
	edges := projected[feature]

	fv, err := s.LoadOrCreate(feature)
	if err != nil {
		return nil, err
	}

	fv.Trajectory = make(map[string]*TrajectoryEntry, len(edges))
	for edge, progress := range edges {
		fv.Trajectory[assetFor(edge)] = &TrajectoryEntry{
			Status:      progress.Status,
			Iteration:   progress.Iteration,
			Delta:       progress.Delta,
			ConvergedAt: progress.ConvergedAt,
		}
	}
	if fv.Status != StatusBlocked && fv.Converged() {
		fv.Status = StatusConverged
	}

	if err := s.Save(fv); err != nil {
		return nil, err
	}
	return fv, nil
}
