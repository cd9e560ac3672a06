// Package supervisor runs external judge processes in full isolation so a
// hung judge never blocks the engine indefinitely.
//
// Each invocation starts the child as the leader of its own process group,
// optionally sanitizes the environment of nesting-guard variables, and runs
// a watchdog goroutine alongside the blocking wait. The watchdog enforces
// two independent bounds: a wall-clock timeout on total run time, and a
// stall timeout that fires when no output activity is observed for the
// configured window — distinguishing "slow but working" from "hung".
package supervisor

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Spec describes one isolated invocation
type Spec struct {
	Argv         []string      // Command and arguments; Argv[0] is the executable
	WallTimeout  time.Duration // Total run-time bound; must be > 0
	StallTimeout time.Duration // No-output bound; 0 disables stall detection
	SanitizeEnv  bool          // Strip nesting-guard variables before start
	Dir          string        // Working directory; empty inherits the caller's
	Stdin        string        // Content piped to the child's stdin, empty for none
}

// Result is the outcome of one isolated invocation. Callers must not
// conflate "exited 0" with "completed before any timeout fired": check the
// flags, not just ExitCode.
type Result struct {
	Stdout      string        `json:"stdout"`
	Stderr      string        `json:"stderr"`
	ExitCode    int           `json:"exit_code"`
	TimedOut    bool          `json:"timed_out"`    // Wall-clock timeout fired
	StallKilled bool          `json:"stall_killed"` // Stall timeout fired
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"` // Classification string, empty on clean success
	PID         int           `json:"pid,omitempty"`
}

// Succeeded reports a clean exit: code zero and no timeout fired
func (r Result) Succeeded() bool {
	return r.ExitCode == 0 && !r.TimedOut && !r.StallKilled && r.Error == ""
}

// Options configures a Supervisor
type Options struct {
	PollInterval time.Duration // Watchdog tick (default 250ms)
	KillGrace    time.Duration // SIGTERM to SIGKILL window (default 5s)
}

// Supervisor runs judge processes under watchdog supervision
type Supervisor struct {
	opts   Options
	logger *zap.SugaredLogger
}

// New creates a supervisor. A nil logger is replaced with a no-op logger.
func New(opts Options, logger *zap.SugaredLogger) *Supervisor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Supervisor{opts: opts, logger: logger}
}

// activityBuffer captures a child stream and records the time of the last
// write so the watchdog can compare each poll tick against the last
// observed output timestamp.
type activityBuffer struct {
	mu           sync.Mutex
	buf          bytes.Buffer
	lastActivity *atomic.Int64 // Unix nanos, shared across stdout and stderr
}

func (w *activityBuffer) Write(p []byte) (int, error) {
	w.lastActivity.Store(time.Now().UnixNano())
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *activityBuffer) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

// RunIsolated executes the spec under supervision and blocks until the
// child exits or is killed. The returned Result is always populated; errors
// launching the child are classified in Result.Error with ExitCode -1, not
// returned as Go errors.
func (s *Supervisor) RunIsolated(ctx context.Context, spec Spec) Result {
	start := time.Now()
	result := Result{ExitCode: -1}

	if len(spec.Argv) == 0 {
		result.Error = "start failure: empty argv"
		return result
	}
	if spec.WallTimeout <= 0 {
		result.Error = "start failure: wall timeout must be positive"
		return result
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	if spec.Stdin != "" {
		cmd.Stdin = bytes.NewReader([]byte(spec.Stdin))
	}

	env := os.Environ()
	if spec.SanitizeEnv {
		env = CleanEnv(env)
	}
	cmd.Env = env

	// Child becomes its own process-group/session leader so the whole tree
	// can be killed atomically.
	setProcessGroup(cmd)

	var lastActivity atomic.Int64
	lastActivity.Store(start.UnixNano())
	stdout := &activityBuffer{lastActivity: &lastActivity}
	stderr := &activityBuffer{lastActivity: &lastActivity}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		result.Error = "start failure: " + err.Error()
		result.Duration = time.Since(start)
		return result
	}
	result.PID = cmd.Process.Pid

	// Watchdog state: each flag is written exactly once, by the watchdog.
	var timedOut, stallKilled, cancelled atomic.Bool
	done := make(chan struct{})
	watchdogDone := make(chan struct{})

	go s.watchdog(ctx, watchdogParams{
		pid:          cmd.Process.Pid,
		start:        start,
		wallTimeout:  spec.WallTimeout,
		stallTimeout: spec.StallTimeout,
		lastActivity: &lastActivity,
		timedOut:     &timedOut,
		stallKilled:  &stallKilled,
		cancelled:    &cancelled,
		done:         done,
		finished:     watchdogDone,
		fallback:     cmd.Process,
	})

	waitErr := cmd.Wait()
	close(done)

	// Join the watchdog with a bounded wait so it never outlives the call.
	select {
	case <-watchdogDone:
	case <-time.After(s.opts.PollInterval * 4):
		s.logger.Warnw("Watchdog did not exit promptly", "pid", result.PID)
	}

	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	result.TimedOut = timedOut.Load()
	result.StallKilled = stallKilled.Load()

	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case result.TimedOut:
		result.Error = "wall timeout after " + spec.WallTimeout.String()
	case result.StallKilled:
		result.Error = "stall timeout after " + spec.StallTimeout.String() + " without output"
	case cancelled.Load():
		result.Error = "cancelled: " + context.Cause(ctx).Error()
	case waitErr != nil:
		result.Error = waitErr.Error()
	}

	s.logger.Debugw("Isolated process finished",
		"pid", result.PID,
		"exit_code", result.ExitCode,
		"timed_out", result.TimedOut,
		"stall_killed", result.StallKilled,
		"duration", result.Duration)

	return result
}

// watchdogParams carries the shared state between RunIsolated and its watchdog
type watchdogParams struct {
	pid          int
	start        time.Time
	wallTimeout  time.Duration
	stallTimeout time.Duration
	lastActivity *atomic.Int64
	timedOut     *atomic.Bool
	stallKilled  *atomic.Bool
	cancelled    *atomic.Bool
	done         chan struct{}
	finished     chan struct{}
	fallback     *os.Process
}

// watchdog polls at a fixed interval and is the only party permitted to
// issue the kill sequence. Each tick is a fresh comparison of elapsed wall
// time against the wall timeout and of now minus the last observed output
// timestamp against the stall timeout; there is no resettable clock that
// could silently defeat stall detection.
func (s *Supervisor) watchdog(ctx context.Context, p watchdogParams) {
	defer close(p.finished)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			p.cancelled.Store(true)
			s.killTree(p.pid, p.fallback)
			return
		case now := <-ticker.C:
			if now.Sub(p.start) >= p.wallTimeout {
				p.timedOut.Store(true)
				s.logger.Warnw("Wall timeout exceeded, killing process group",
					"pid", p.pid, "timeout", p.wallTimeout)
				s.killTree(p.pid, p.fallback)
				return
			}
			if p.stallTimeout > 0 {
				last := time.Unix(0, p.lastActivity.Load())
				if now.Sub(last) >= p.stallTimeout {
					p.stallKilled.Store(true)
					s.logger.Warnw("Stall timeout exceeded, killing process group",
						"pid", p.pid, "stall_timeout", p.stallTimeout, "last_output", last)
					s.killTree(p.pid, p.fallback)
					return
				}
			}
		}
	}
}
