package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/convergentic/converge/checklist"
	"github.com/convergentic/converge/supervisor"
)

// AgentProvider delegates agent-kind checks to an external judge CLI
// through the subprocess supervisor. When no judge command is configured,
// agent checks resolve to skip with an explanatory message — they never
// fail an iteration on provider absence.
type AgentProvider struct {
	judgeArgv    []string
	sup          *supervisor.Supervisor
	limiter      *rate.Limiter
	wallTimeout  time.Duration
	stallTimeout time.Duration
	sanitizeEnv  bool
	logger       *zap.SugaredLogger
}

// NewAgentProvider builds the provider from engine configuration. An
// unparseable or empty judge command leaves the provider unconfigured,
// which surfaces as skip verdicts rather than errors.
func NewAgentProvider(deps Deps) *AgentProvider {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	p := &AgentProvider{
		sup:          deps.Supervisor,
		wallTimeout:  300 * time.Second,
		stallTimeout: 60 * time.Second,
		sanitizeEnv:  true,
		logger:       logger,
	}

	if deps.Config != nil {
		sup := deps.Config.Supervisor
		if sup.WallTimeoutSeconds > 0 {
			p.wallTimeout = time.Duration(sup.WallTimeoutSeconds) * time.Second
		}
		p.stallTimeout = time.Duration(sup.StallTimeoutSeconds) * time.Second
		p.sanitizeEnv = sup.SanitizeEnv

		judge := deps.Config.Judge
		if cmd := strings.TrimSpace(judge.Command); cmd != "" {
			argv, err := shellquote.Split(cmd)
			if err != nil {
				logger.Warnw("Judge command is unparseable, agent checks will skip",
					"command", cmd, "error", err)
			} else {
				p.judgeArgv = argv
			}
		}
		if judge.RatePerMinute > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(float64(judge.RatePerMinute)/60.0), 1)
		}
	}

	return p
}

// Name returns the provider identifier
func (p *AgentProvider) Name() string {
	return string(checklist.KindAgent)
}

// Configured reports whether a judge command is available
func (p *AgentProvider) Configured() bool {
	return len(p.judgeArgv) > 0 && p.sup != nil
}

// RunCheck asks the judge for a verdict on one check
func (p *AgentProvider) RunCheck(ctx context.Context, check checklist.ResolvedCheck, asset string, ec EvalContext) CheckResult {
	result := CheckResult{
		Name:           check.Name,
		Required:       check.Required,
		Kind:           check.Kind,
		FunctionalUnit: check.FunctionalUnit,
	}

	if !p.Configured() {
		result.Outcome = OutcomeSkip
		result.Message = "no agent judge configured; set judge.command to enable agent checks"
		return result
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			result.Outcome = OutcomeError
			result.Message = fmt.Sprintf("judge rate limiter interrupted: %v", err)
			return result
		}
	}

	spec := supervisor.Spec{
		Argv:         p.judgeArgv,
		WallTimeout:  p.wallTimeout,
		StallTimeout: p.stallTimeout,
		SanitizeEnv:  p.sanitizeEnv,
		Dir:          ec.Dir,
		Stdin:        buildJudgePrompt(check, asset, ec),
	}

	run := p.sup.RunIsolated(ctx, spec)

	switch {
	case run.TimedOut, run.StallKilled:
		// Bounded-lifetime kills count as failures for required checks
		result.Outcome = OutcomeFail
		result.ExitCode = run.ExitCode
		result.Message = "judge killed: " + run.Error
	case strings.HasPrefix(run.Error, "start failure"):
		result.Outcome = OutcomeError
		result.ExitCode = run.ExitCode
		result.Message = run.Error
	case run.ExitCode != 0:
		result.Outcome = OutcomeFail
		result.ExitCode = run.ExitCode
		result.Message = fmt.Sprintf("judge exited %d: %s", run.ExitCode, firstLines(run.Stderr, 5))
	default:
		verdict, message := parseVerdict(run.Stdout)
		result.Outcome = verdict
		result.ExitCode = 0
		result.Message = message
	}

	p.logger.Debugw("Agent check evaluated",
		"check", check.Name,
		"outcome", result.Outcome,
		"duration", run.Duration)
	return result
}

// buildJudgePrompt composes the judge's stdin: the criterion to apply, the
// pass criterion when present, and the candidate asset content.
func buildJudgePrompt(check checklist.ResolvedCheck, asset string, ec EvalContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are evaluating the checklist item %q on edge %q.\n", check.Name, ec.Edge)
	fmt.Fprintf(&b, "Criterion: %s\n", check.Criterion)
	if check.PassCriterion != "" {
		fmt.Fprintf(&b, "Pass criterion: %s\n", check.PassCriterion)
	}
	b.WriteString("Respond with a single JSON object: {\"verdict\": \"pass\"|\"fail\"|\"skip\", \"reason\": \"...\"}\n")
	b.WriteString("\n--- CANDIDATE ASSET ---\n")
	b.WriteString(asset)
	return b.String()
}

// judgeVerdict is the JSON shape a judge is asked to reply with
type judgeVerdict struct {
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
}

// parseVerdict extracts a verdict from judge stdout. It first looks for a
// JSON verdict object on any line, then falls back to scanning for a bare
// PASS/FAIL/SKIP token. Output with no recognizable verdict is an error
// outcome: an unreadable judge must not be mistaken for a pass.
func parseVerdict(stdout string) (Outcome, string) {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var v judgeVerdict
		if err := json.Unmarshal([]byte(line), &v); err == nil && v.Verdict != "" {
			switch strings.ToLower(v.Verdict) {
			case "pass":
				return OutcomePass, v.Reason
			case "fail":
				return OutcomeFail, v.Reason
			case "skip":
				return OutcomeSkip, v.Reason
			}
		}
	}

	// FAIL is checked first so output mentioning both tokens ("PASS
	// criteria not met: FAIL") reads as the conservative verdict.
	upper := strings.ToUpper(stdout)
	switch {
	case strings.Contains(upper, "FAIL"):
		return OutcomeFail, firstLines(stdout, 3)
	case strings.Contains(upper, "SKIP"):
		return OutcomeSkip, firstLines(stdout, 3)
	case strings.Contains(upper, "PASS"):
		return OutcomePass, firstLines(stdout, 3)
	}
	return OutcomeError, "judge produced no recognizable verdict: " + firstLines(stdout, 3)
}

// firstLines returns at most n lines of s, trimmed
func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
