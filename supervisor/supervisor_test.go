//go:build !windows

package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSupervisor() *Supervisor {
	return New(Options{
		PollInterval: 25 * time.Millisecond,
		KillGrace:    250 * time.Millisecond,
	}, nil)
}

func TestRunIsolatedCleanExit(t *testing.T) {
	result := testSupervisor().RunIsolated(context.Background(), Spec{
		Argv:        []string{"echo", "hello"},
		WallTimeout: 5 * time.Second,
	})

	require.True(t, result.Succeeded(), "error: %s", result.Error)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "hello")
	assert.False(t, result.TimedOut)
	assert.False(t, result.StallKilled)
	assert.NotZero(t, result.PID)
}

func TestRunIsolatedNonzeroExit(t *testing.T) {
	result := testSupervisor().RunIsolated(context.Background(), Spec{
		Argv:        []string{"false"},
		WallTimeout: 5 * time.Second,
	})

	assert.False(t, result.Succeeded())
	assert.Equal(t, 1, result.ExitCode)
	assert.False(t, result.TimedOut)
}

func TestRunIsolatedWallTimeout(t *testing.T) {
	wall := 300 * time.Millisecond
	start := time.Now()

	result := testSupervisor().RunIsolated(context.Background(), Spec{
		Argv:        []string{"sleep", "30"},
		WallTimeout: wall,
	})

	elapsed := time.Since(start)
	assert.True(t, result.TimedOut, "expected wall timeout, error: %s", result.Error)
	assert.False(t, result.Succeeded())
	assert.Contains(t, result.Error, "wall timeout")

	// Bounded return: timeout + kill grace + a few poll ticks, with slack
	// for process teardown on a loaded machine.
	assert.Less(t, elapsed, wall+250*time.Millisecond+2*time.Second,
		"RunIsolated must return promptly after the timeout fires")
}

func TestRunIsolatedStallTimeout(t *testing.T) {
	// The child prints once, then sleeps far past the stall window while
	// staying well inside the wall timeout.
	result := testSupervisor().RunIsolated(context.Background(), Spec{
		Argv:         []string{"sh", "-c", "echo working; sleep 30"},
		WallTimeout:  30 * time.Second,
		StallTimeout: 400 * time.Millisecond,
	})

	assert.True(t, result.StallKilled, "expected stall kill, error: %s", result.Error)
	assert.False(t, result.TimedOut, "stall kill is distinct from wall timeout")
	assert.Contains(t, result.Error, "stall timeout")
	assert.Contains(t, result.Stdout, "working")
}

func TestRunIsolatedStallDisabled(t *testing.T) {
	result := testSupervisor().RunIsolated(context.Background(), Spec{
		Argv:         []string{"sh", "-c", "sleep 0.3; echo done"},
		WallTimeout:  10 * time.Second,
		StallTimeout: 0,
	})

	require.True(t, result.Succeeded(), "error: %s", result.Error)
	assert.Contains(t, result.Stdout, "done")
}

func TestRunIsolatedStartFailure(t *testing.T) {
	result := testSupervisor().RunIsolated(context.Background(), Spec{
		Argv:        []string{"/nonexistent/judge-binary"},
		WallTimeout: 5 * time.Second,
	})

	assert.Equal(t, -1, result.ExitCode)
	assert.Contains(t, result.Error, "start failure")
	assert.False(t, result.TimedOut)
}

func TestRunIsolatedSpecValidation(t *testing.T) {
	result := testSupervisor().RunIsolated(context.Background(), Spec{WallTimeout: time.Second})
	assert.Contains(t, result.Error, "empty argv")

	result = testSupervisor().RunIsolated(context.Background(), Spec{Argv: []string{"true"}})
	assert.Contains(t, result.Error, "wall timeout")
}

func TestRunIsolatedStdin(t *testing.T) {
	result := testSupervisor().RunIsolated(context.Background(), Spec{
		Argv:        []string{"cat"},
		WallTimeout: 5 * time.Second,
		Stdin:       "judge this artifact",
	})

	require.True(t, result.Succeeded(), "error: %s", result.Error)
	assert.Equal(t, "judge this artifact", result.Stdout)
}

func TestRunIsolatedSanitizesEnvironment(t *testing.T) {
	t.Setenv("CLAUDECODE", "1")

	result := testSupervisor().RunIsolated(context.Background(), Spec{
		Argv:        []string{"sh", "-c", "echo guard=${CLAUDECODE:-unset}"},
		WallTimeout: 5 * time.Second,
		SanitizeEnv: true,
	})

	require.True(t, result.Succeeded(), "error: %s", result.Error)
	assert.Contains(t, result.Stdout, "guard=unset")
}

func TestRunIsolatedKillsProcessGroup(t *testing.T) {
	// The shell spawns a grandchild; killing the process group must take
	// both down rather than orphaning the sleep.
	start := time.Now()
	result := testSupervisor().RunIsolated(context.Background(), Spec{
		Argv:        []string{"sh", "-c", "sleep 30 & wait"},
		WallTimeout: 300 * time.Millisecond,
	})

	assert.True(t, result.TimedOut)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunIsolatedContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	result := testSupervisor().RunIsolated(ctx, Spec{
		Argv:        []string{"sleep", "30"},
		WallTimeout: 30 * time.Second,
	})

	assert.False(t, result.Succeeded())
	assert.Contains(t, result.Error, "cancelled")
}
