package checklist

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/convergentic/converge/errors"
)

// CheckKind classifies who can satisfy a check
type CheckKind string

const (
	// KindDeterministic checks run a local command and map its exit code
	KindDeterministic CheckKind = "deterministic"
	// KindAgent checks are judged by an external LLM CLI
	KindAgent CheckKind = "agent"
	// KindHuman checks require out-of-band human judgment
	KindHuman CheckKind = "human"
)

// Valid reports whether the kind is one of the recognized categories
func (k CheckKind) Valid() bool {
	switch k {
	case KindDeterministic, KindAgent, KindHuman:
		return true
	default:
		return false
	}
}

// SourceTraceability marks checks that are deterministic in intent but
// agent-evaluated: they are exempt from the non-empty-command invariant.
const SourceTraceability = "traceability"

// RawCheck is one checklist item as configured, before variable
// substitution. Command, pass criterion, and the required flag may contain
// $dotted.path references into the constraint document.
type RawCheck struct {
	Name           string      `yaml:"name"`
	Type           CheckKind   `yaml:"type"`
	FunctionalUnit string      `yaml:"functional_unit,omitempty"`
	Criterion      string      `yaml:"criterion,omitempty"`
	Source         string      `yaml:"source,omitempty"`
	Required       interface{} `yaml:"required"` // bool or "$dotted.path"
	Command        string      `yaml:"command,omitempty"`
	PassCriterion  string      `yaml:"pass_criterion,omitempty"`
}

// Document is one edge's checklist configuration
type Document struct {
	Checklist []RawCheck `yaml:"checklist"`
}

// LoadDocument reads an edge checklist document from a YAML file
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read checklist %s", path)
	}
	return ParseDocument(data)
}

// ParseDocument builds a checklist document from YAML bytes and validates
// the fields that must be well-formed before resolution.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidChecklist, err.Error())
	}
	for i, check := range doc.Checklist {
		if check.Name == "" {
			return nil, errors.Wrapf(errors.ErrInvalidChecklist, "check %d has no name", i)
		}
		if !check.Type.Valid() {
			return nil, errors.Wrapf(errors.ErrInvalidChecklist, "check %q has unknown type %q", check.Name, check.Type)
		}
	}
	return &doc, nil
}

// ResolvedCheck is one checklist item after variable substitution,
// ready for dispatch to an evaluator provider.
type ResolvedCheck struct {
	Name           string    `json:"name"`
	Kind           CheckKind `json:"kind"`
	FunctionalUnit string    `json:"functional_unit,omitempty"`
	Criterion      string    `json:"criterion,omitempty"`
	Source         string    `json:"source,omitempty"`
	Command        string    `json:"command,omitempty"`
	PassCriterion  string    `json:"pass_criterion,omitempty"`
	Required       bool      `json:"required"`
	// Unresolved lists the dotted paths that had no value in the
	// constraint document. The literal $path token is preserved in the
	// text fields above.
	Unresolved []string `json:"unresolved,omitempty"`
}

// HasUnresolved reports whether any variable reference failed to resolve
func (rc ResolvedCheck) HasUnresolved() bool {
	return len(rc.Unresolved) > 0
}
