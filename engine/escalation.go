package engine

import (
	"fmt"

	"github.com/convergentic/converge/checklist"
	"github.com/convergentic/converge/evaluator"
)

// Canonical check categories. F_D is deterministic, F_P is probabilistic
// (agent-judged), F_H is human.
const (
	CategoryDeterministic = "F_D"
	CategoryProbabilistic = "F_P"
	CategoryHuman         = "F_H"
)

// CategoryOf maps a check kind to its canonical category
func CategoryOf(kind checklist.CheckKind) string {
	switch kind {
	case checklist.KindDeterministic:
		return CategoryDeterministic
	case checklist.KindAgent:
		return CategoryProbabilistic
	case checklist.KindHuman:
		return CategoryHuman
	default:
		return ""
	}
}

// unitCategories is the fixed table from functional unit to the category
// expected to satisfy it. A check whose kind drifts from its unit's
// recorded category is escalated for audit rather than silently counted
// as an ordinary failure.
var unitCategories = map[string]string{
	"emit":     CategoryDeterministic,
	"verify":   CategoryDeterministic,
	"evaluate": CategoryProbabilistic,
	"judge":    CategoryProbabilistic,
	"decide":   CategoryHuman,
	"approve":  CategoryHuman,
}

// UnitCategory returns the canonical category recorded for a functional
// unit, if the unit is in the table.
func UnitCategory(unit string) (string, bool) {
	cat, ok := unitCategories[unit]
	return cat, ok
}

// escalations collects category-drift notices for one iteration's results.
// A notice is appended when a required check failed and its kind's category
// differs from the category recorded for its functional unit, using the
// η_<source>→<target> notation (source is the unit's canonical category,
// target is the category that actually evaluated it).
func escalations(results []evaluator.CheckResult) []string {
	var notes []string
	for _, res := range results {
		if !res.Required || res.Outcome != evaluator.OutcomeFail {
			continue
		}
		canonical, ok := UnitCategory(res.FunctionalUnit)
		if !ok {
			continue
		}
		actual := CategoryOf(res.Kind)
		if actual == "" || actual == canonical {
			continue
		}
		notes = append(notes, fmt.Sprintf("η_%s→%s: check %q (unit %q)",
			canonical, actual, res.Name, res.FunctionalUnit))
	}
	return notes
}
