// Package checklist resolves edge checklist documents against a project
// constraint document, turning $dotted.path variable references into
// concrete, executable checks.
package checklist

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/convergentic/converge/errors"
)

// Constraints is the project constraint document: a nested key/value tree
// that checklist variables resolve against.
type Constraints map[string]interface{}

// LoadConstraints reads a constraint document from a YAML file.
// A missing file is not an error; it yields an empty tree so every
// variable reference resolves to "unresolved" rather than failing.
func LoadConstraints(path string) (Constraints, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Constraints{}, nil
		}
		return nil, errors.Wrapf(err, "failed to read constraints %s", path)
	}
	return ParseConstraints(data)
}

// ParseConstraints builds a constraint tree from YAML bytes
func ParseConstraints(data []byte) (Constraints, error) {
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, errors.Wrap(err, "failed to parse constraints")
	}
	if tree == nil {
		tree = map[string]interface{}{}
	}
	return Constraints(tree), nil
}

// Lookup walks a dotted path through the constraint tree.
// A missing key at any level returns (nil, false) — "unresolved" is a
// first-class state here, not an error, since some checks are optional.
func (c Constraints) Lookup(path []string) (interface{}, bool) {
	var current interface{} = map[string]interface{}(c)
	for _, key := range path {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// stringify renders a constraint value for substitution into check text.
// Numbers and booleans become their literal form; null becomes absent
// (the empty string).
func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		// YAML integers may surface as float64 depending on the decoder path
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// coerceBool interprets a resolved constraint value as a boolean, for
// required flags that are themselves variable references.
func coerceBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, false
		}
		return b, true
	case int:
		return v != 0, true
	case float64:
		return v != 0, true
	default:
		return false, false
	}
}
