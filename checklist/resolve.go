package checklist

import (
	"regexp"
	"strings"

	"github.com/convergentic/converge/errors"
)

// varPattern matches $dotted.path variable references. Path segments are
// identifier characters; the dot separates levels of the constraint tree.
var varPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)`)

// Resolve substitutes constraint values into every check of a document and
// returns the executable checks in document order.
//
// Resolution is total: a missing key yields an "unresolved" entry and the
// literal $path token is preserved, never an error. The only error cases
// are structural — a deterministic check that resolved completely but has
// no command to run (unless its source is traceability, which is
// agent-evaluated despite being deterministic in intent).
func Resolve(doc *Document, constraints Constraints) ([]ResolvedCheck, error) {
	resolved := make([]ResolvedCheck, 0, len(doc.Checklist))
	for _, raw := range doc.Checklist {
		rc, err := resolveCheck(raw, constraints)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, rc)
	}
	return resolved, nil
}

// resolveCheck resolves a single raw check
func resolveCheck(raw RawCheck, constraints Constraints) (ResolvedCheck, error) {
	rc := ResolvedCheck{
		Name:           raw.Name,
		Kind:           raw.Type,
		FunctionalUnit: raw.FunctionalUnit,
		Source:         raw.Source,
	}

	rc.Criterion = substitute(raw.Criterion, constraints, &rc.Unresolved)
	rc.Command = substitute(raw.Command, constraints, &rc.Unresolved)
	rc.PassCriterion = substitute(raw.PassCriterion, constraints, &rc.Unresolved)
	rc.Required = resolveRequired(raw.Required, constraints, &rc.Unresolved)

	if rc.Kind == KindDeterministic && !rc.HasUnresolved() &&
		strings.TrimSpace(rc.Command) == "" && rc.Source != SourceTraceability {
		return ResolvedCheck{}, errors.Wrapf(errors.ErrInvalidChecklist,
			"deterministic check %q resolved with no command", rc.Name)
	}

	return rc, nil
}

// substitute replaces every $dotted.path token in text with its constraint
// value. Each token is replaced independently; a token whose path is absent
// from the tree is left literal and its path is appended to unresolved.
func substitute(text string, constraints Constraints, unresolved *[]string) string {
	if text == "" {
		return text
	}
	return varPattern.ReplaceAllStringFunc(text, func(token string) string {
		path := token[1:] // trim leading $
		value, ok := constraints.Lookup(strings.Split(path, "."))
		if !ok {
			*unresolved = appendUnique(*unresolved, path)
			return token
		}
		return stringify(value)
	})
}

// resolveRequired interprets the raw required field, which may be a literal
// boolean or a $dotted.path reference. An unresolved or uncoercible
// reference defaults to required: silently optional checks would weaken
// the convergence guarantee.
func resolveRequired(raw interface{}, constraints Constraints, unresolved *[]string) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case bool:
		return v
	case string:
		if m := varPattern.FindStringSubmatch(v); m != nil && m[0] == strings.TrimSpace(v) {
			value, ok := constraints.Lookup(strings.Split(m[1], "."))
			if !ok {
				*unresolved = appendUnique(*unresolved, m[1])
				return true
			}
			if b, ok := coerceBool(value); ok {
				return b
			}
			return true
		}
		if b, ok := coerceBool(v); ok {
			return b
		}
		return true
	default:
		if b, ok := coerceBool(raw); ok {
			return b
		}
		return true
	}
}

// appendUnique appends path if not already recorded
func appendUnique(list []string, path string) []string {
	for _, p := range list {
		if p == path {
			return list
		}
	}
	return append(list, path)
}
