package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/convergentic/converge/cmd/converge/commands"
	"github.com/convergentic/converge/logger"
)

var jsonLogs bool

var rootCmd = &cobra.Command{
	Use:   "converge",
	Short: "Converge - methodology convergence engine",
	Long: `Converge drives candidate artifacts through a graph of refinement
edges until every edge's quality checklist passes.

Available commands:
  init     - Initialize a converge workspace
  config   - Show and query configuration
  iterate  - Run one iteration of an edge for a feature
  run      - Iterate an edge until convergence or the iteration cap
  status   - Show workspace state, features, and the next recommended step
  events   - Inspect the append-only event log
  recover  - Mark iterations abandoned by a crashed process
  spawn    - Spawn a discovery feature for a blocking question
  foldback - Fold a resolved discovery feature back into its parent
  release  - Record a release of the converged feature set
  version  - Show version information and check the judge CLI

Examples:
  converge init                                 # Set up .converge/ in this project
  converge run design_to_code --feature login   # Iterate an edge to convergence
  converge status                               # Where things stand, what to do next
  converge events --type iteration_completed    # Audit the iteration history`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON instead of console output")

	rootCmd.AddCommand(commands.InitCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.IterateCmd)
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.EventsCmd)
	rootCmd.AddCommand(commands.RecoverCmd)
	rootCmd.AddCommand(commands.SpawnCmd)
	rootCmd.AddCommand(commands.FoldbackCmd)
	rootCmd.AddCommand(commands.ReleaseCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
