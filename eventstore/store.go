package eventstore

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/convergentic/converge/errors"
)

// Store is the JSONL event log: one JSON object per line, UTF-8,
// newline-delimited. One Store owns its log file; concurrent emitters in
// the same process are serialized by an internal mutex, and each append is
// a single write so lines are never interleaved.
type Store struct {
	path   string
	mu     sync.Mutex
	lastTS time.Time
	logger *zap.SugaredLogger
}

// Open creates a store over the given log path, creating parent directories
// as needed. The timestamp of the last existing event is loaded so the
// non-decreasing invariant holds across process restarts.
func Open(path string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create event log directory %s", dir)
		}
	}

	s := &Store{path: path, logger: logger}
	last, err := s.readLastTimestamp()
	if err != nil {
		return nil, err
	}
	s.lastTS = last
	return s, nil
}

// Path returns the log file location
func (s *Store) Path() string {
	return s.path
}

// Emit appends one event to the log and returns it as written. A zero
// timestamp is filled with the current UTC time; a timestamp earlier than
// the last appended event is clamped to it, so timestamps within one store
// are always non-decreasing. The append is all-or-nothing per line.
func (s *Store) Emit(event Event) (Event, error) {
	if event.EventType == "" {
		return Event{}, errors.New("event_type is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	} else {
		event.Timestamp = event.Timestamp.UTC()
	}
	if event.Timestamp.Before(s.lastTS) {
		event.Timestamp = s.lastTS
	}

	line, err := json.Marshal(event)
	if err != nil {
		return Event{}, errors.Wrap(err, "failed to marshal event")
	}
	line = append(line, '\n')

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Event{}, errors.Wrapf(err, "failed to open event log %s", s.path)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return Event{}, errors.Wrap(err, "failed to append event")
	}

	s.lastTS = event.Timestamp
	return event, nil
}

// ReadAll replays the full log in append order. Unparseable lines (for
// example a partial final line after a crash) are skipped with a warning
// rather than failing the replay; unknown event types pass through
// untouched for projections to ignore.
func (s *Store) ReadAll() ([]Event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to open event log %s", s.path)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			s.logger.Warnw("Skipping unparseable event log line",
				"path", s.path, "line", lineNo, "error", err)
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read event log %s", s.path)
	}
	return events, nil
}

// readLastTimestamp scans the log for the timestamp of the final valid event
func (s *Store) readLastTimestamp() (time.Time, error) {
	events, err := s.ReadAll()
	if err != nil {
		return time.Time{}, err
	}
	if len(events) == 0 {
		return time.Time{}, nil
	}
	return events[len(events)-1].Timestamp, nil
}

// Tee fans an emit out to a primary store and a best-effort mirror. The
// primary (JSONL) is the source of truth: a mirror failure is logged, never
// propagated.
type Tee struct {
	Primary Appender
	Mirror  Appender
	Logger  *zap.SugaredLogger
}

// Emit appends to the primary, then mirrors the event as written
func (t *Tee) Emit(event Event) (Event, error) {
	written, err := t.Primary.Emit(event)
	if err != nil {
		return Event{}, err
	}
	if t.Mirror != nil {
		if _, err := t.Mirror.Emit(written); err != nil && t.Logger != nil {
			t.Logger.Warnw("Event mirror append failed", "event_type", written.EventType, "error", err)
		}
	}
	return written, nil
}
