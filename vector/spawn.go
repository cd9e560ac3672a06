package vector

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/convergentic/converge/errors"
	"github.com/convergentic/converge/eventstore"
)

// SpawnRequest captures an open question that blocks convergence of an
// edge. Spawning turns the question into a child discovery feature; the
// parent waits, blocked, until fold-back.
type SpawnRequest struct {
	Question      string                 `json:"question"`
	VectorType    string                 `json:"vector_type"` // e.g. "discovery", "spike"
	ParentFeature string                 `json:"parent_feature"`
	Edge          string                 `json:"edge"` // The edge at which the question arose
	Context       map[string]interface{} `json:"context,omitempty"`
}

// SpawnResult records the created child and the parent's new state
type SpawnResult struct {
	ChildFeature  string `json:"child_feature"`
	ParentBlocked bool   `json:"parent_blocked"`
}

// FoldBackResult records reintegration of a child's resolution
type FoldBackResult struct {
	PayloadPath     string `json:"payload_path"`
	ParentUnblocked bool   `json:"parent_unblocked"`
}

// Manager creates and reintegrates discovery sub-features. The feature
// graph is a forest keyed by feature id with parent back-references; the
// manager never holds a live object graph, only ids resolved through the
// vector store and the event log.
type Manager struct {
	store   *Store
	events  eventstore.Appender
	project string
	logger  *zap.SugaredLogger
}

// NewManager creates a spawn manager
func NewManager(store *Store, events eventstore.Appender, project string, logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{store: store, events: events, project: project, logger: logger}
}

// Spawn creates the child feature vector, marks the parent blocked, and
// emits a feature_spawned event.
func (m *Manager) Spawn(req SpawnRequest) (*SpawnResult, error) {
	if req.ParentFeature == "" {
		return nil, errors.New("spawn request has no parent feature")
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, errors.New("spawn request has no question")
	}
	vectorType := req.VectorType
	if vectorType == "" {
		vectorType = "discovery"
	}

	childID := fmt.Sprintf("%s-%s-%s", req.ParentFeature, vectorType, uuid.NewString()[:8])

	unlock := m.store.Lock(req.ParentFeature)
	defer unlock()

	parent, err := m.store.Load(req.ParentFeature)
	if err != nil {
		return nil, errors.Wrap(err, "spawn: parent feature")
	}

	child := &FeatureVector{
		Feature:    childID,
		Status:     StatusActive,
		Trajectory: make(map[string]*TrajectoryEntry),
		Parent:     req.ParentFeature,
		Question:   req.Question,
	}
	if err := m.store.Save(child); err != nil {
		return nil, errors.Wrap(err, "spawn: child vector")
	}

	parent.Status = StatusBlocked
	parent.BlockedBy = childID
	if err := m.store.Save(parent); err != nil {
		return nil, errors.Wrap(err, "spawn: parent vector")
	}

	_, err = m.events.Emit(eventstore.Event{
		EventType: eventstore.TypeFeatureSpawned,
		Project:   m.project,
		Feature:   req.ParentFeature,
		Edge:      req.Edge,
		Data: map[string]interface{}{
			"child":       childID,
			"vector_type": vectorType,
			"question":    req.Question,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "spawn: emit event")
	}

	m.logger.Infow("Spawned discovery feature",
		"parent", req.ParentFeature,
		"child", childID,
		"edge", req.Edge)

	return &SpawnResult{ChildFeature: childID, ParentBlocked: true}, nil
}

// FoldBack reintegrates a child's resolution into its parent: the payload
// is written next to the parent's vector, the parent is unblocked if this
// child was what blocked it, and an event records the reintegration.
func (m *Manager) FoldBack(childFeature, resolution string) (*FoldBackResult, error) {
	child, err := m.store.Load(childFeature)
	if err != nil {
		return nil, errors.Wrap(err, "fold-back: child feature")
	}
	if child.Parent == "" {
		return nil, errors.Newf("feature %q has no parent to fold back into", childFeature)
	}

	unlock := m.store.Lock(child.Parent)
	defer unlock()

	parent, err := m.store.Load(child.Parent)
	if err != nil {
		return nil, errors.Wrap(err, "fold-back: parent feature")
	}

	payloadDir := filepath.Join(m.store.Dir(), "foldback")
	if err := os.MkdirAll(payloadDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "fold-back: payload directory")
	}
	payloadPath := filepath.Join(payloadDir, childFeature+".md")
	if err := os.WriteFile(payloadPath, []byte(resolution), 0o644); err != nil {
		return nil, errors.Wrap(err, "fold-back: write payload")
	}

	child.Status = StatusConverged
	if err := m.store.Save(child); err != nil {
		return nil, errors.Wrap(err, "fold-back: child vector")
	}

	unblocked := false
	if parent.BlockedBy == childFeature {
		parent.Status = StatusActive
		parent.BlockedBy = ""
		unblocked = true
		if err := m.store.Save(parent); err != nil {
			return nil, errors.Wrap(err, "fold-back: parent vector")
		}
	}

	_, err = m.events.Emit(eventstore.Event{
		EventType: eventstore.TypeFeatureFoldedBack,
		Project:   m.project,
		Feature:   parent.Feature,
		Data: map[string]interface{}{
			"child":    childFeature,
			"payload":  payloadPath,
			"unblocked": unblocked,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "fold-back: emit event")
	}

	m.logger.Infow("Folded back discovery feature",
		"parent", parent.Feature,
		"child", childFeature,
		"unblocked", unblocked)

	return &FoldBackResult{PayloadPath: payloadPath, ParentUnblocked: unblocked}, nil
}
