package eventstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "events.jsonl"), nil)
	require.NoError(t, err)
	return store
}

func TestEmitAppendsOneLinePerEvent(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.Emit(Event{
			EventType: TypeIterationCompleted,
			Project:   "demo",
			Feature:   "login",
			Edge:      "design_to_code",
			Iteration: i + 1,
		}.WithDelta(3 - i))
		require.NoError(t, err)
	}

	events, err := store.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 3)

	for i, ev := range events {
		assert.Equal(t, TypeIterationCompleted, ev.EventType)
		assert.Equal(t, i+1, ev.Iteration)
		delta, ok := ev.DeltaValue()
		require.True(t, ok)
		assert.Equal(t, 3-i, delta)
	}
}

func TestEmitRequiresEventType(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Emit(Event{Project: "demo"})
	require.Error(t, err)
}

func TestEmitTimestampsAreNonDecreasing(t *testing.T) {
	store := openTestStore(t)

	first, err := store.Emit(Event{EventType: TypeEdgeStarted, Project: "demo"})
	require.NoError(t, err)

	// An event stamped in the past is clamped to the last appended timestamp
	backdated, err := store.Emit(Event{
		EventType: TypeIterationCompleted,
		Project:   "demo",
		Timestamp: first.Timestamp.Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, backdated.Timestamp.Before(first.Timestamp))

	events, err := store.ReadAll()
	require.NoError(t, err)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp),
			"event %d is stamped before its predecessor", i)
	}
}

func TestNonDecreasingInvariantSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	store, err := Open(path, nil)
	require.NoError(t, err)
	future := time.Now().UTC().Add(time.Hour)
	_, err = store.Emit(Event{EventType: TypeEdgeStarted, Project: "demo", Timestamp: future})
	require.NoError(t, err)

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	ev, err := reopened.Emit(Event{EventType: TypeIterationCompleted, Project: "demo"})
	require.NoError(t, err)
	assert.False(t, ev.Timestamp.Before(future), "clamp must carry across restarts")
}

func TestReadAllSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	store, err := Open(path, nil)
	require.NoError(t, err)

	_, err = store.Emit(Event{EventType: TypeEdgeStarted, Project: "demo"})
	require.NoError(t, err)

	// Simulate a crash mid-append: a partial trailing line
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"event_type":"iteration_comp`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err := store.ReadAll()
	require.NoError(t, err)
	assert.Len(t, events, 1, "the partial line is skipped, not fatal")
}

func TestReadAllMissingLogIsEmpty(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "never-written.jsonl"), nil)
	require.NoError(t, err)

	events, err := store.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, events)
}

// appendRecorder is a test Appender that remembers everything emitted
type appendRecorder struct {
	events []Event
	fail   bool
}

func (r *appendRecorder) Emit(event Event) (Event, error) {
	if r.fail {
		return Event{}, assert.AnError
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	r.events = append(r.events, event)
	return event, nil
}

func TestTeeMirrorFailureDoesNotPropagate(t *testing.T) {
	primary := &appendRecorder{}
	mirror := &appendRecorder{fail: true}
	tee := &Tee{Primary: primary, Mirror: mirror}

	_, err := tee.Emit(Event{EventType: TypeEdgeStarted, Project: "demo"})
	require.NoError(t, err, "the JSONL log is authoritative; mirror trouble is logged, not raised")
	assert.Len(t, primary.events, 1)
}

func TestTeeMirrorsTheEventAsWritten(t *testing.T) {
	primary := &appendRecorder{}
	mirror := &appendRecorder{}
	tee := &Tee{Primary: primary, Mirror: mirror}

	_, err := tee.Emit(Event{EventType: TypeEdgeConverged, Project: "demo", Feature: "login"})
	require.NoError(t, err)
	require.Len(t, mirror.events, 1)
	assert.Equal(t, primary.events[0], mirror.events[0])
}
