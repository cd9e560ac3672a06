package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/convergentic/converge/config"
	"github.com/convergentic/converge/logger"
	"github.com/convergentic/converge/vector"
)

var (
	runFeature      string
	runAsset        string
	runSpawnOnStuck bool
)

// RunCmd iterates an edge until convergence or the configured cap
var RunCmd = &cobra.Command{
	Use:   "run <edge>",
	Short: "Iterate an edge until convergence or the iteration cap",
	Long: `Repeatedly iterate an edge, stopping early on convergence or a guardrail
block. When the loop ends without progress (the last stuck-window deltas
are equal and positive), the blocking question can be spawned as a
discovery feature with --spawn.

Examples:
  converge run design_to_code --feature login
  converge run design_to_code --feature login --spawn`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	RunCmd.Flags().StringVarP(&runFeature, "feature", "f", "", "Feature to iterate (required)")
	RunCmd.Flags().StringVarP(&runAsset, "asset", "a", "", "Candidate asset location, recorded on the trajectory")
	RunCmd.Flags().BoolVar(&runSpawnOnStuck, "spawn", false, "Spawn a discovery feature when the edge is stuck")
	RunCmd.MarkFlagRequired("feature")
}

func runRun(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	edge, err := rt.edgeByName(args[0])
	if err != nil {
		return err
	}

	// Config edits made while the loop runs land on the next iteration
	// boundary; a running iteration keeps the snapshot it started with.
	if configPath := config.FindProjectConfig(); configPath != "" {
		watcher, err := config.NewWatcher(configPath)
		if err != nil {
			logger.Warnw("Config watching disabled", "path", configPath, "error", err)
		} else {
			defer watcher.Close()
			watcher.OnReload(func(newCfg *config.Config) error {
				rt.eng.ApplyConfig(newCfg)
				return nil
			})
			watcher.Start()
		}
	}

	records, err := rt.eng.RunEdge(cmd.Context(), edge, runFeature, runAsset)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	for _, record := range records {
		printEvaluation(record)
	}

	last := records[len(records)-1]
	if last.Spawn == nil {
		return nil
	}

	pterm.Warning.Printfln("Edge %s is stuck: %s", edge.Name, last.Spawn.Question)
	if !runSpawnOnStuck {
		pterm.Info.Println("Re-run with --spawn to create a discovery feature for this question")
		return nil
	}

	manager := vector.NewManager(rt.vectors, rt.events, rt.cfg.Project.ID, logger.Logger)
	spawned, err := manager.Spawn(*last.Spawn)
	if err != nil {
		return err
	}
	pterm.Success.Printfln("Spawned discovery feature %s; parent %s is blocked until fold-back",
		spawned.ChildFeature, runFeature)
	return nil
}
