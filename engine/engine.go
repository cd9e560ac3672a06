// Package engine implements the convergence loop: resolve an edge's
// checklist against the constraint document, evaluate every check through
// its provider, compute the delta, and fold the outcome into the event log
// and the feature vector. States per (feature, edge) are implicit in the
// trajectory history: not started → iterating → converged, with a blocked
// absorbing state reached via spawn.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/convergentic/converge/checklist"
	"github.com/convergentic/converge/config"
	"github.com/convergentic/converge/errors"
	"github.com/convergentic/converge/evaluator"
	"github.com/convergentic/converge/eventstore"
	"github.com/convergentic/converge/guardrail"
	"github.com/convergentic/converge/supervisor"
	"github.com/convergentic/converge/topology"
	"github.com/convergentic/converge/vector"
)

// Status is the tri-state outcome of one edge iteration. A guardrail block
// is distinct from "ran and failed": no checks execute for a blocked
// invocation.
type Status string

const (
	StatusBlocked   Status = "blocked"
	StatusIterating Status = "iterating"
	StatusConverged Status = "converged"
)

// BlockedDelta is the sentinel written to the event record for a
// guardrail-blocked iteration. It exists for log compatibility only; the
// API surface carries the explicit Status instead.
const BlockedDelta = -1

// EvaluationResult is the aggregate of one iteration over one edge
type EvaluationResult struct {
	Feature     string                   `json:"feature"`
	Edge        string                   `json:"edge"`
	Iteration   int                      `json:"iteration"`
	Status      Status                   `json:"status"`
	Checks      []evaluator.CheckResult  `json:"checks"`
	Delta       int                      `json:"delta"`
	Converged   bool                     `json:"converged"`
	Escalations []string                 `json:"escalations,omitempty"`
	Guardrails  []guardrail.Result       `json:"guardrails,omitempty"`
	Spawn       *vector.SpawnRequest     `json:"spawn,omitempty"`
}

// History is the read side of the event log, used for stuck detection
type History interface {
	ReadAll() ([]eventstore.Event, error)
}

// Engine drives candidate assets along topology edges until their
// checklists converge. It processes at most one iteration per (feature,
// edge) at a time; the vector store's per-feature lock enforces that
// in-process.
type Engine struct {
	cfgMu       sync.RWMutex
	cfg         *config.Config
	topo        *topology.Topology
	constraints checklist.Constraints
	registry    *evaluator.Registry
	guardrails  *guardrail.Registry
	events      eventstore.Appender
	history     History
	vectors     *vector.Store
	logger      *zap.SugaredLogger

	provMu    sync.Mutex
	providers map[checklist.CheckKind]evaluator.Provider
	deps      evaluator.Deps
}

// New assembles an engine. The provider and guardrail registries must be
// fully populated before construction; registering afterwards has no effect
// on an existing engine's provider cache.
func New(cfg *config.Config, topo *topology.Topology, constraints checklist.Constraints,
	registry *evaluator.Registry, guardrails *guardrail.Registry,
	events eventstore.Appender, history History, vectors *vector.Store,
	logger *zap.SugaredLogger) *Engine {

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		cfg:         cfg,
		topo:        topo,
		constraints: constraints,
		registry:    registry,
		guardrails:  guardrails,
		events:      events,
		history:     history,
		vectors:     vectors,
		logger:      logger,
		providers:   make(map[checklist.CheckKind]evaluator.Provider),
		deps: evaluator.Deps{
			Config: cfg,
			Supervisor: supervisor.New(supervisor.Options{
				PollInterval: time.Duration(cfg.Supervisor.PollIntervalMS) * time.Millisecond,
				KillGrace:    time.Duration(cfg.Supervisor.KillGraceSeconds) * time.Second,
			}, logger),
			Logger: logger,
		},
	}
}

// ApplyConfig swaps the engine's configuration. A running iteration keeps
// the snapshot it started with; the new values take effect on the next
// iteration boundary. Supervisor and provider timeouts are fixed at
// construction and are not affected.
func (e *Engine) ApplyConfig(cfg *config.Config) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	e.cfg = cfg
}

func (e *Engine) config() *config.Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// providerFor returns the cached provider for a check kind, constructing it
// on first use. An unregistered kind is a configuration error raised
// immediately. The cache has its own lock: the per-feature vector lock
// permits iterations on different features to run concurrently, and both
// may hit first dispatch for the same kind.
func (e *Engine) providerFor(kind checklist.CheckKind) (evaluator.Provider, error) {
	e.provMu.Lock()
	defer e.provMu.Unlock()
	if p, ok := e.providers[kind]; ok {
		return p, nil
	}
	p, err := e.registry.New(string(kind), e.deps)
	if err != nil {
		return nil, err
	}
	e.providers[kind] = p
	return p, nil
}

// IterateEdge runs one iteration of an edge for a feature: guardrail gate,
// checklist resolution, per-check evaluation, delta computation, event
// emission, and feature vector update.
//
// Delta is the count of checks with outcome fail and required true; the
// edge has converged when delta is zero. Skipped checks never contribute,
// regardless of their required flag. One iteration_completed event is
// emitted always, plus an edge_converged event when converged.
func (e *Engine) IterateEdge(ctx context.Context, edge topology.Edge, feature, asset string, iteration int) (*EvaluationResult, error) {
	unlock := e.vectors.Lock(feature)
	defer unlock()

	cfg := e.config()
	fv, err := e.vectors.LoadOrCreate(feature)
	if err != nil {
		return nil, err
	}

	result := &EvaluationResult{
		Feature:   feature,
		Edge:      edge.Name,
		Iteration: iteration,
		Status:    StatusIterating,
	}

	if iteration == 1 {
		if _, err := e.events.Emit(eventstore.Event{
			EventType: eventstore.TypeEdgeStarted,
			Project:   cfg.Project.ID,
			Feature:   feature,
			Edge:      edge.Name,
			Iteration: iteration,
		}); err != nil {
			return nil, err
		}
	}

	gctx := guardrail.Context{
		Feature:           feature,
		UpstreamConverged: e.upstreamConverged(fv, edge),
		Confidentiality:   cfg.Security.Confidentiality,
		ScannerEnabled:    cfg.Security.ScannerEnabled,
	}
	result.Guardrails = e.guardrails.ValidatePreFlight(edge, gctx)
	if guardrail.Blocked(result.Guardrails) {
		result.Status = StatusBlocked
		messages := guardrail.Messages(result.Guardrails)
		e.logger.Warnw("Edge blocked by guardrail",
			"feature", feature, "edge", edge.Name, "reasons", messages)

		// Zero-check iteration with the sentinel delta, so log readers can
		// tell "blocked by policy" from "ran and failed".
		if _, err := e.events.Emit(eventstore.Event{
			EventType: eventstore.TypeIterationCompleted,
			Project:   cfg.Project.ID,
			Feature:   feature,
			Edge:      edge.Name,
			Iteration: iteration,
			Data:      map[string]interface{}{"guardrails": messages},
		}.WithDelta(BlockedDelta)); err != nil {
			return nil, err
		}
		return result, nil
	}

	doc, err := checklist.LoadDocument(filepath.Join(cfg.Paths.ChecklistDir, edge.Checklist))
	if err != nil {
		return nil, err
	}
	resolved, err := checklist.Resolve(doc, e.constraints)
	if err != nil {
		return nil, err
	}

	ec := evaluator.EvalContext{Feature: feature, Edge: edge.Name}
	for _, check := range resolved {
		provider, err := e.providerFor(check.Kind)
		if err != nil {
			return nil, errors.Wrapf(err, "check %q", check.Name)
		}
		res := provider.RunCheck(ctx, check, asset, ec)
		result.Checks = append(result.Checks, res)

		if res.Outcome != evaluator.OutcomePass {
			if _, err := e.events.Emit(eventstore.Event{
				EventType: eventstore.TypeEvaluatorDetail,
				Project:   cfg.Project.ID,
				Feature:   feature,
				Edge:      edge.Name,
				Iteration: iteration,
				Data: map[string]interface{}{
					"check":     res.Name,
					"outcome":   string(res.Outcome),
					"kind":      string(res.Kind),
					"required":  res.Required,
					"message":   res.Message,
					"exit_code": res.ExitCode,
				},
			}); err != nil {
				return nil, err
			}
		}
		if res.Kind == checklist.KindAgent && res.Required && res.Outcome == evaluator.OutcomeFail {
			if _, err := e.events.Emit(eventstore.Event{
				EventType: eventstore.TypeFPFailure,
				Project:   cfg.Project.ID,
				Feature:   feature,
				Edge:      edge.Name,
				Iteration: iteration,
				Data: map[string]interface{}{
					"check":           res.Name,
					"functional_unit": res.FunctionalUnit,
					"message":         res.Message,
				},
			}); err != nil {
				return nil, err
			}
		}
	}

	for _, res := range result.Checks {
		if res.CountsTowardDelta() {
			result.Delta++
		}
	}
	result.Converged = result.Delta == 0
	if result.Converged {
		result.Status = StatusConverged
	}
	result.Escalations = escalations(result.Checks)

	if _, err := e.events.Emit(eventstore.Event{
		EventType: eventstore.TypeIterationCompleted,
		Project:   cfg.Project.ID,
		Feature:   feature,
		Edge:      edge.Name,
		Iteration: iteration,
		Data:      iterationData(result),
	}.WithDelta(result.Delta)); err != nil {
		return nil, err
	}

	entry := fv.Entry(edge.Target)
	entry.Status = string(StatusIterating)
	entry.Iteration = iteration
	entry.Delta = result.Delta
	if asset != "" {
		entry.Asset = asset
	}

	if result.Converged {
		converged, err := e.events.Emit(eventstore.Event{
			EventType: eventstore.TypeEdgeConverged,
			Project:   cfg.Project.ID,
			Feature:   feature,
			Edge:      edge.Name,
			Iteration: iteration,
		}.WithDelta(0))
		if err != nil {
			return nil, err
		}
		entry.Status = string(StatusConverged)
		ts := converged.Timestamp
		entry.ConvergedAt = &ts
	}

	if fv.Status != vector.StatusBlocked && fv.Converged() {
		fv.Status = vector.StatusConverged
	}
	if err := e.vectors.Save(fv); err != nil {
		return nil, err
	}

	e.logger.Infow("Iteration completed",
		"feature", feature,
		"edge", edge.Name,
		"iteration", iteration,
		"delta", result.Delta,
		"converged", result.Converged)

	return result, nil
}

// NextIteration derives the next iteration number for a (feature, edge)
// pair from the event log, so numbering stays monotonic across processes
// and across interleaved iterate and run invocations.
func (e *Engine) NextIteration(feature, edge string) (int, error) {
	events, err := e.history.ReadAll()
	if err != nil {
		return 0, err
	}
	return eventstore.FeatureStatus(events)[feature][edge].Iteration + 1, nil
}

// RunEdge iterates an edge up to the configured maximum, stopping early on
// convergence or a guardrail block, and returns every per-iteration record
// for audit. Iteration numbers continue from the pair's logged history.
// When the loop ends without convergence and the stuck projection flags the
// pair, the final record carries a SpawnRequest for the blocking question.
func (e *Engine) RunEdge(ctx context.Context, edge topology.Edge, feature, asset string) ([]*EvaluationResult, error) {
	max := e.config().Engine.MaxIterations
	if max <= 0 {
		max = 5
	}
	start, err := e.NextIteration(feature, edge.Name)
	if err != nil {
		return nil, err
	}

	var records []*EvaluationResult
	for n := 0; n < max; n++ {
		result, err := e.IterateEdge(ctx, edge, feature, asset, start+n)
		if err != nil {
			return records, err
		}
		records = append(records, result)
		if result.Converged || result.Status == StatusBlocked {
			return records, nil
		}
	}

	last := records[len(records)-1]
	stuck, err := e.Stuck(feature, edge.Name)
	if err != nil {
		return records, err
	}
	if stuck {
		last.Spawn = e.spawnRequestFor(feature, edge.Name, last)
		e.logger.Warnw("Edge is stuck",
			"feature", feature, "edge", edge.Name, "delta", last.Delta)
	}
	return records, nil
}

// Stuck reports whether the last stuck-window iteration_completed deltas
// for the pair are equal and positive.
func (e *Engine) Stuck(feature, edge string) (bool, error) {
	events, err := e.history.ReadAll()
	if err != nil {
		return false, err
	}
	for _, pair := range eventstore.StuckPairs(events, e.config().Engine.StuckWindow) {
		if pair.Feature == feature && pair.Edge == edge {
			return true, nil
		}
	}
	return false, nil
}

// spawnRequestFor distills the blocking question from the last iteration's
// failing required checks.
func (e *Engine) spawnRequestFor(feature, edge string, last *EvaluationResult) *vector.SpawnRequest {
	var failing []string
	for _, res := range last.Checks {
		if res.CountsTowardDelta() {
			failing = append(failing, res.Name)
		}
	}
	question := fmt.Sprintf("edge %q has made no progress for %d iterations; what is blocking: %s?",
		edge, e.config().Engine.StuckWindow, strings.Join(failing, ", "))
	return &vector.SpawnRequest{
		Question:      question,
		VectorType:    "discovery",
		ParentFeature: feature,
		Edge:          edge,
		Context:       map[string]interface{}{"failing_checks": failing, "delta": last.Delta},
	}
}

// upstreamConverged reports whether the edge's source asset is stable: a
// root asset (no inbound edge in the topology) is stable by definition,
// anything else must have a converged trajectory entry.
func (e *Engine) upstreamConverged(fv *vector.FeatureVector, edge topology.Edge) bool {
	inbound := false
	for _, other := range e.topo.Edges {
		if other.Target == edge.Source {
			inbound = true
			break
		}
	}
	if !inbound {
		return true
	}
	entry, ok := fv.Trajectory[edge.Source]
	return ok && entry.Status == string(StatusConverged)
}

// iterationData is the free-form payload recorded on iteration_completed
func iterationData(result *EvaluationResult) map[string]interface{} {
	data := map[string]interface{}{
		"checks": len(result.Checks),
	}
	if len(result.Escalations) > 0 {
		data["escalations"] = result.Escalations
	}
	return data
}
