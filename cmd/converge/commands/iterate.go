package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/convergentic/converge/engine"
	"github.com/convergentic/converge/errors"
	"github.com/convergentic/converge/evaluator"
)

var (
	iterateFeature string
	iterateAsset   string
	iterateJSON    bool
)

// IterateCmd runs exactly one iteration of an edge
var IterateCmd = &cobra.Command{
	Use:   "iterate <edge>",
	Short: "Run one iteration of an edge for a feature",
	Long: `Resolve the edge's checklist against the constraint document, evaluate
every check, and record the outcome. One iteration_completed event is
appended always; an edge_converged event additionally when the delta
reaches zero.

Examples:
  converge iterate design_to_code --feature login
  converge iterate design_to_code --feature login --asset src/login.go`,
	Args: cobra.ExactArgs(1),
	RunE: runIterate,
}

func init() {
	IterateCmd.Flags().StringVarP(&iterateFeature, "feature", "f", "", "Feature the iteration belongs to (required)")
	IterateCmd.Flags().StringVarP(&iterateAsset, "asset", "a", "", "Candidate asset location, recorded on the trajectory")
	IterateCmd.Flags().BoolVar(&iterateJSON, "json", false, "Print the evaluation result as JSON")
	IterateCmd.MarkFlagRequired("feature")
}

func runIterate(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	edge, err := rt.edgeByName(args[0])
	if err != nil {
		return err
	}

	iteration, err := rt.eng.NextIteration(iterateFeature, edge.Name)
	if err != nil {
		return err
	}

	result, err := rt.eng.IterateEdge(cmd.Context(), edge, iterateFeature, iterateAsset, iteration)
	if err != nil {
		return err
	}

	if iterateJSON {
		return printJSON(result)
	}
	printEvaluation(result)
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal result")
	}
	fmt.Println(string(data))
	return nil
}

// printEvaluation renders one iteration's outcome
func printEvaluation(result *engine.EvaluationResult) {
	switch result.Status {
	case engine.StatusBlocked:
		pterm.Error.Printfln("%s/%s blocked by guardrail", result.Feature, result.Edge)
		for _, gr := range result.Guardrails {
			if !gr.Passed {
				pterm.Println("  " + gr.Message)
			}
		}
		return
	case engine.StatusConverged:
		pterm.Success.Printfln("%s/%s converged at iteration %d", result.Feature, result.Edge, result.Iteration)
	default:
		pterm.Warning.Printfln("%s/%s iteration %d: delta %d", result.Feature, result.Edge, result.Iteration, result.Delta)
	}

	for _, check := range result.Checks {
		line := fmt.Sprintf("%-14s %s", "["+string(check.Outcome)+"]", check.Name)
		switch check.Outcome {
		case evaluator.OutcomePass:
			pterm.Println("  " + pterm.Green(line))
		case evaluator.OutcomeFail:
			pterm.Println("  " + pterm.Red(line))
		default:
			pterm.Println("  " + pterm.Gray(line))
		}
	}
	for _, note := range result.Escalations {
		pterm.Warning.Printfln("escalation %s", note)
	}
}
