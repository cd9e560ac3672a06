package evaluator

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/convergentic/converge/checklist"
	"github.com/convergentic/converge/config"
	"github.com/convergentic/converge/errors"
	"github.com/convergentic/converge/supervisor"
)

// EvalContext carries per-iteration context into a provider
type EvalContext struct {
	Feature string
	Edge    string
	Dir     string // Working directory for commands; empty inherits the engine's
}

// Provider is the evaluation capability: run one check, return a verdict.
// Implementations must absorb expected conditions (command failure, judge
// timeout, missing judge) into the CheckResult; they never return Go errors.
type Provider interface {
	// RunCheck evaluates one resolved check against the candidate asset
	RunCheck(ctx context.Context, check checklist.ResolvedCheck, asset string, ec EvalContext) CheckResult

	// Name returns the provider identifier used for registration and routing
	Name() string
}

// Deps is what a provider constructor may draw on
type Deps struct {
	Config     *config.Config
	Supervisor *supervisor.Supervisor
	Logger     *zap.SugaredLogger
}

// Constructor builds a provider from its dependencies
type Constructor func(deps Deps) Provider

// Registry maps provider names to constructors. It is seeded with the
// built-in providers and open to runtime registration of custom ones.
// Thread-safe for concurrent registration and lookup.
type Registry struct {
	constructors map[string]Constructor
	mu           sync.RWMutex
}

// NewRegistry creates a registry seeded with the built-in providers:
// deterministic, agent, and human, keyed by their check kind.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register(string(checklist.KindDeterministic), func(deps Deps) Provider {
		return NewDeterministicRunner(deps)
	})
	r.Register(string(checklist.KindAgent), func(deps Deps) Provider {
		return NewAgentProvider(deps)
	})
	r.Register(string(checklist.KindHuman), func(deps Deps) Provider {
		return NewHumanProvider()
	})
	return r
}

// Register binds a name to a constructor. Panics on duplicate registration,
// matching the fail-fast posture for configuration errors.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[name]; exists {
		panic("provider already registered for name: " + name)
	}
	r.constructors[name] = ctor
}

// New constructs the provider registered under name. Looking up an
// unregistered name is a configuration error raised immediately — never
// silently defaulted, never retried.
func (r *Registry) New(name string, deps Deps) (Provider, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errors.ErrProviderNotFound, "provider %q", name)
	}
	return ctor(deps), nil
}

// Has reports whether a constructor is registered for name
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[name]
	return ok
}

// Names returns all registered provider names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
