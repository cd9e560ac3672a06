package vector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergentic/converge/eventstore"
)

// recordingAppender captures emitted events for assertions
type recordingAppender struct {
	events []eventstore.Event
}

func (r *recordingAppender) Emit(event eventstore.Event) (eventstore.Event, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	r.events = append(r.events, event)
	return event, nil
}

func (r *recordingAppender) ofType(eventType string) []eventstore.Event {
	var matched []eventstore.Event
	for _, ev := range r.events {
		if ev.EventType == eventType {
			matched = append(matched, ev)
		}
	}
	return matched
}

func spawnFixture(t *testing.T) (*Store, *recordingAppender, *Manager) {
	t.Helper()
	store := newTestStore(t)
	events := &recordingAppender{}
	manager := NewManager(store, events, "demo", nil)

	require.NoError(t, store.Save(&FeatureVector{Feature: "login", Status: StatusActive}))
	return store, events, manager
}

func TestSpawnCreatesChildAndBlocksParent(t *testing.T) {
	store, events, manager := spawnFixture(t)

	result, err := manager.Spawn(SpawnRequest{
		Question:      "which auth flow fits the latency budget?",
		ParentFeature: "login",
		Edge:          "design_to_code",
	})
	require.NoError(t, err)
	assert.True(t, result.ParentBlocked)
	assert.Contains(t, result.ChildFeature, "login-discovery-")

	parent, err := store.Load("login")
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, parent.Status)
	assert.Equal(t, result.ChildFeature, parent.BlockedBy)

	child, err := store.Load(result.ChildFeature)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, child.Status)
	assert.Equal(t, "login", child.Parent)
	assert.Equal(t, "which auth flow fits the latency budget?", child.Question)

	spawned := events.ofType(eventstore.TypeFeatureSpawned)
	require.Len(t, spawned, 1)
	assert.Equal(t, "login", spawned[0].Feature)
	assert.Equal(t, result.ChildFeature, spawned[0].Data["child"])
}

func TestSpawnValidation(t *testing.T) {
	_, _, manager := spawnFixture(t)

	_, err := manager.Spawn(SpawnRequest{Question: "?"})
	require.Error(t, err, "a spawn needs a parent")

	_, err = manager.Spawn(SpawnRequest{ParentFeature: "login", Question: "   "})
	require.Error(t, err, "a spawn needs a question")
}

func TestFoldBackUnblocksParent(t *testing.T) {
	store, events, manager := spawnFixture(t)

	spawned, err := manager.Spawn(SpawnRequest{
		Question:      "blocked on storage choice",
		ParentFeature: "login",
		Edge:          "design_to_code",
	})
	require.NoError(t, err)

	result, err := manager.FoldBack(spawned.ChildFeature, "use the embedded store")
	require.NoError(t, err)
	assert.True(t, result.ParentUnblocked)
	assert.FileExists(t, result.PayloadPath)

	parent, err := store.Load("login")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, parent.Status)
	assert.Empty(t, parent.BlockedBy)

	child, err := store.Load(spawned.ChildFeature)
	require.NoError(t, err)
	assert.Equal(t, StatusConverged, child.Status)

	folded := events.ofType(eventstore.TypeFeatureFoldedBack)
	require.Len(t, folded, 1)
	assert.Equal(t, "login", folded[0].Feature)
}

func TestFoldBackLeavesParentBlockedByOtherChild(t *testing.T) {
	store, _, manager := spawnFixture(t)

	first, err := manager.Spawn(SpawnRequest{Question: "q1", ParentFeature: "login"})
	require.NoError(t, err)
	second, err := manager.Spawn(SpawnRequest{Question: "q2", ParentFeature: "login"})
	require.NoError(t, err)

	// The parent now waits on the second child; folding back the first
	// resolves it without unblocking the parent.
	result, err := manager.FoldBack(first.ChildFeature, "answer to q1")
	require.NoError(t, err)
	assert.False(t, result.ParentUnblocked)

	parent, err := store.Load("login")
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, parent.Status)
	assert.Equal(t, second.ChildFeature, parent.BlockedBy)
}

func TestFoldBackRequiresParent(t *testing.T) {
	store, _, manager := spawnFixture(t)
	require.NoError(t, store.Save(&FeatureVector{Feature: "orphan", Status: StatusActive}))

	_, err := manager.FoldBack("orphan", "payload")
	require.Error(t, err)
}
