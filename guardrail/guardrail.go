// Package guardrail gates an edge iteration before any checklist item
// runs. Policies are data-driven and extensible: hosts register additional
// policies by name before engine construction. A single failing policy
// blocks the whole invocation.
package guardrail

import (
	"fmt"
	"sort"
	"sync"

	"github.com/convergentic/converge/config"
	"github.com/convergentic/converge/errors"
	"github.com/convergentic/converge/topology"
)

// Context carries the facts policies evaluate against
type Context struct {
	Feature           string
	UpstreamConverged bool   // Whether the edge's source asset has converged
	Confidentiality   string // Project classification level
	ScannerEnabled    bool   // Whether a security scanner runs on this project
	Extra             map[string]interface{}
}

// Result is one policy's verdict
type Result struct {
	Policy  string `json:"policy"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Policy is the pre-flight gate capability
type Policy interface {
	// Name returns the policy identifier used for registration
	Name() string

	// Validate checks one edge invocation against this policy
	Validate(edge topology.Edge, ctx Context) Result
}

// Registry maps policy names to implementations. Seeded with the built-in
// dependency and security policies; open to runtime registration.
type Registry struct {
	policies map[string]Policy
	order    []string
	mu       sync.RWMutex
}

// NewRegistry creates a registry seeded with the built-in policies
func NewRegistry() *Registry {
	r := &Registry{policies: make(map[string]Policy)}
	r.Register(&DependencyPolicy{})
	r.Register(&SecurityPolicy{})
	return r
}

// Register binds a policy under its name. Panics on duplicates, matching
// the fail-fast posture for configuration errors.
func (r *Registry) Register(policy Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := policy.Name()
	if _, exists := r.policies[name]; exists {
		panic("guardrail policy already registered for name: " + name)
	}
	r.policies[name] = policy
	r.order = append(r.order, name)
}

// Get returns the policy registered under name
func (r *Registry) Get(name string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	policy, ok := r.policies[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrPolicyNotFound, "policy %q", name)
	}
	return policy, nil
}

// Names returns all registered policy names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// ValidatePreFlight runs every registered policy against the edge, in
// registration order, and returns all results. Callers block the iteration
// if any result failed.
func (r *Registry) ValidatePreFlight(edge topology.Edge, ctx Context) []Result {
	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.RUnlock()

	results := make([]Result, 0, len(names))
	for _, name := range names {
		r.mu.RLock()
		policy := r.policies[name]
		r.mu.RUnlock()
		results = append(results, policy.Validate(edge, ctx))
	}
	return results
}

// Blocked reports whether any result failed
func Blocked(results []Result) bool {
	for _, res := range results {
		if !res.Passed {
			return true
		}
	}
	return false
}

// Messages collects the messages of failing results
func Messages(results []Result) []string {
	var msgs []string
	for _, res := range results {
		if !res.Passed {
			msgs = append(msgs, res.Message)
		}
	}
	return msgs
}

// DependencyPolicy blocks an edge whose upstream asset is not yet stable
type DependencyPolicy struct{}

// Name returns the policy identifier
func (p *DependencyPolicy) Name() string { return "dependency" }

// Validate requires the edge's source asset to have converged
func (p *DependencyPolicy) Validate(edge topology.Edge, ctx Context) Result {
	if !ctx.UpstreamConverged {
		return Result{
			Policy: p.Name(),
			Passed: false,
			Message: fmt.Sprintf("upstream asset %q has not converged; converge it before iterating %q",
				edge.Source, edge.Name),
		}
	}
	return Result{Policy: p.Name(), Passed: true}
}

// SecurityPolicy blocks sensitive projects from iterating without a
// security scanner enabled
type SecurityPolicy struct{}

// Name returns the policy identifier
func (p *SecurityPolicy) Name() string { return "security" }

// Validate requires a scanner for confidential and restricted projects
func (p *SecurityPolicy) Validate(edge topology.Edge, ctx Context) Result {
	if config.SensitiveConfidentialityLevels[ctx.Confidentiality] && !ctx.ScannerEnabled {
		return Result{
			Policy: p.Name(),
			Passed: false,
			Message: fmt.Sprintf("project confidentiality %q requires a security scanner before edge %q may run",
				ctx.Confidentiality, edge.Name),
		}
	}
	return Result{Policy: p.Name(), Passed: true}
}

// Compile-time interface checks for the built-in policies
var (
	_ Policy = (*DependencyPolicy)(nil)
	_ Policy = (*SecurityPolicy)(nil)
)
