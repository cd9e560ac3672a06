//go:build !windows

package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergentic/converge/checklist"
	"github.com/convergentic/converge/config"
)

func deterministicCheck(name, command string) checklist.ResolvedCheck {
	return checklist.ResolvedCheck{
		Name:     name,
		Kind:     checklist.KindDeterministic,
		Command:  command,
		Required: true,
	}
}

func TestDeterministicEchoPasses(t *testing.T) {
	runner := NewDeterministicRunner(Deps{})

	result := runner.RunCheck(context.Background(),
		deterministicCheck("echo_test", "echo hello"), "", EvalContext{})

	assert.Equal(t, OutcomePass, result.Outcome)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Message, "hello")
	assert.False(t, result.CountsTowardDelta())
}

func TestDeterministicFalseFails(t *testing.T) {
	runner := NewDeterministicRunner(Deps{})

	result := runner.RunCheck(context.Background(),
		deterministicCheck("bad_check", "false"), "", EvalContext{})

	assert.Equal(t, OutcomeFail, result.Outcome)
	assert.Equal(t, 1, result.ExitCode)
	assert.True(t, result.CountsTowardDelta())
}

func TestDeterministicMissingBinaryIsError(t *testing.T) {
	runner := NewDeterministicRunner(Deps{})

	result := runner.RunCheck(context.Background(),
		deterministicCheck("ghost", "/no/such/binary --flag"), "", EvalContext{})

	assert.Equal(t, OutcomeError, result.Outcome)
	assert.Equal(t, -1, result.ExitCode)
	// Error outcomes surface through messages and events, never the delta
	assert.False(t, result.CountsTowardDelta())
}

func TestDeterministicTimeoutFails(t *testing.T) {
	cfg := &config.Config{}
	cfg.Judge.DeterministicTimeoutSeconds = 1
	runner := NewDeterministicRunner(Deps{Config: cfg})
	require.Equal(t, time.Second, runner.timeout)

	start := time.Now()
	result := runner.RunCheck(context.Background(),
		deterministicCheck("slow", "sleep 30"), "", EvalContext{})

	assert.Equal(t, OutcomeFail, result.Outcome)
	assert.Equal(t, -1, result.ExitCode)
	assert.Contains(t, result.Message, "timed out")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestDeterministicCommandlessSkips(t *testing.T) {
	runner := NewDeterministicRunner(Deps{})

	check := checklist.ResolvedCheck{
		Name:       "inert",
		Kind:       checklist.KindDeterministic,
		Command:    "",
		Required:   true,
		Unresolved: []string{"paths.artifact"},
	}
	result := runner.RunCheck(context.Background(), check, "", EvalContext{})

	assert.Equal(t, OutcomeSkip, result.Outcome)
	assert.Contains(t, result.Message, "paths.artifact")
	assert.False(t, result.CountsTowardDelta(), "skips never count toward delta, required or not")
}

func TestDeterministicUnparseableCommandIsError(t *testing.T) {
	runner := NewDeterministicRunner(Deps{})

	result := runner.RunCheck(context.Background(),
		deterministicCheck("broken", `echo "unterminated`), "", EvalContext{})

	assert.Equal(t, OutcomeError, result.Outcome)
}
