package eventstore

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteEmitInsertsOneRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLiteStore(db)

	mock.ExpectExec("INSERT INTO events").
		WithArgs(
			TypeIterationCompleted,
			sqlmock.AnyArg(), // timestamp
			"demo",
			"login",
			"design_to_code",
			int64(2),
			int64(3),
			sqlmock.AnyArg(), // data json
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err = store.Emit(Event{
		EventType: TypeIterationCompleted,
		Project:   "demo",
		Feature:   "login",
		Edge:      "design_to_code",
		Iteration: 3,
		Data:      map[string]interface{}{"checks": 4},
	}.WithDelta(2))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteEmitRequiresEventType(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLiteStore(db).Emit(Event{Project: "demo"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteEmitFillsTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(1, 1))

	written, err := NewSQLiteStore(db).Emit(Event{EventType: TypeEdgeStarted, Project: "demo"})
	require.NoError(t, err)
	assert.False(t, written.Timestamp.IsZero())
	assert.WithinDuration(t, time.Now().UTC(), written.Timestamp, time.Minute)
}

func TestSQLiteCountByType(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"event_type", "count"}).
		AddRow(TypeIterationCompleted, 7).
		AddRow(TypeEdgeConverged, 2)
	mock.ExpectQuery("SELECT event_type, COUNT").WillReturnRows(rows)

	counts, err := NewSQLiteStore(db).CountByType()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		TypeIterationCompleted: 7,
		TypeEdgeConverged:      2,
	}, counts)
}

func TestSQLiteLastIterationsForPairChronological(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Rows come back newest first; the API returns chronological order
	rows := sqlmock.NewRows([]string{"delta"}).AddRow(1).AddRow(2).AddRow(3)
	mock.ExpectQuery("SELECT delta FROM events").
		WithArgs(TypeIterationCompleted, "login", "design_to_code", 3).
		WillReturnRows(rows)

	deltas, err := NewSQLiteStore(db).LastIterationsForPair("login", "design_to_code", 3)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1}, deltas)
}
