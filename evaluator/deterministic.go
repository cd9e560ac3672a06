package evaluator

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/convergentic/converge/checklist"
)

// maxCapturedOutput bounds how much command output is folded into a
// CheckResult message. The full output lives in the command's own logs.
const maxCapturedOutput = 4096

// DeterministicRunner executes a check's command as a local subprocess and
// maps exit code 0 to pass, nonzero to fail. It is meant for fast local
// commands (linters, test runners); long-running agent judges go through
// the supervisor instead.
type DeterministicRunner struct {
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewDeterministicRunner builds the runner from engine configuration
func NewDeterministicRunner(deps Deps) *DeterministicRunner {
	timeout := 120 * time.Second
	if deps.Config != nil && deps.Config.Judge.DeterministicTimeoutSeconds > 0 {
		timeout = time.Duration(deps.Config.Judge.DeterministicTimeoutSeconds) * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &DeterministicRunner{timeout: timeout, logger: logger}
}

// Name returns the provider identifier
func (d *DeterministicRunner) Name() string {
	return string(checklist.KindDeterministic)
}

// RunCheck executes the check's command with a bounded lifetime
func (d *DeterministicRunner) RunCheck(ctx context.Context, check checklist.ResolvedCheck, asset string, ec EvalContext) CheckResult {
	result := CheckResult{
		Name:           check.Name,
		Required:       check.Required,
		Kind:           check.Kind,
		FunctionalUnit: check.FunctionalUnit,
	}

	command := strings.TrimSpace(check.Command)
	if command == "" {
		// A commandless deterministic check is inert: nothing to run.
		// Resolution already rejects this unless variables are unresolved
		// or the source is traceability.
		result.Outcome = OutcomeSkip
		result.Message = "no command to run"
		if check.HasUnresolved() {
			result.Message = fmt.Sprintf("no command to run (unresolved: %s)", strings.Join(check.Unresolved, ", "))
		}
		return result
	}

	argv, err := shellquote.Split(command)
	if err != nil {
		result.Outcome = OutcomeError
		result.Message = fmt.Sprintf("unparseable command %q: %v", command, err)
		return result
	}

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = ec.Dir
	output, err := cmd.CombinedOutput()
	result.Message = truncate(string(output), maxCapturedOutput)

	if runCtx.Err() == context.DeadlineExceeded {
		result.Outcome = OutcomeFail
		result.ExitCode = -1
		result.Message = fmt.Sprintf("command timed out after %s: %s", d.timeout, result.Message)
		return result
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.Outcome = OutcomeFail
			result.ExitCode = exitErr.ExitCode()
			if result.Message == "" {
				result.Message = exitErr.String()
			}
			return result
		}
		// Could not launch at all (binary missing, permission)
		result.Outcome = OutcomeError
		result.ExitCode = -1
		result.Message = fmt.Sprintf("failed to start command: %v", err)
		return result
	}

	result.Outcome = OutcomePass
	result.ExitCode = 0
	return result
}

// truncate bounds s to n bytes, marking the cut
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (truncated)"
}
