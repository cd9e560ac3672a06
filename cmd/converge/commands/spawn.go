package commands

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/convergentic/converge/errors"
	"github.com/convergentic/converge/logger"
	"github.com/convergentic/converge/vector"
)

var (
	spawnParent     string
	spawnEdge       string
	spawnVectorType string
)

// SpawnCmd creates a discovery feature for a blocking question
var SpawnCmd = &cobra.Command{
	Use:   "spawn <question>",
	Short: "Spawn a discovery feature for a blocking question",
	Long: `Create a child feature vector capturing a question that blocks the
parent's convergence. The parent is marked blocked until the child is
folded back.

Example:
  converge spawn "which auth library fits the latency budget?" --parent login --edge design_to_code`,
	Args: cobra.ExactArgs(1),
	RunE: runSpawn,
}

var foldbackResolution string

// FoldbackCmd reintegrates a resolved discovery feature into its parent
var FoldbackCmd = &cobra.Command{
	Use:   "foldback <child-feature>",
	Short: "Fold a resolved discovery feature back into its parent",
	Long: `Write the child's resolution payload next to the parent's vector, mark
the child converged, and unblock the parent if this child was what blocked
it.

Example:
  converge foldback login-discovery-3fa81c2e --resolution answer.md`,
	Args: cobra.ExactArgs(1),
	RunE: runFoldback,
}

func init() {
	SpawnCmd.Flags().StringVar(&spawnParent, "parent", "", "Parent feature the question blocks (required)")
	SpawnCmd.Flags().StringVar(&spawnEdge, "edge", "", "Edge at which the question arose")
	SpawnCmd.Flags().StringVar(&spawnVectorType, "type", "discovery", "Vector type of the child feature")
	SpawnCmd.MarkFlagRequired("parent")

	FoldbackCmd.Flags().StringVar(&foldbackResolution, "resolution", "", "File holding the resolution payload (required)")
	FoldbackCmd.MarkFlagRequired("resolution")
}

func runSpawn(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	manager := vector.NewManager(rt.vectors, rt.events, rt.cfg.Project.ID, logger.Logger)
	result, err := manager.Spawn(vector.SpawnRequest{
		Question:      args[0],
		VectorType:    spawnVectorType,
		ParentFeature: spawnParent,
		Edge:          spawnEdge,
	})
	if err != nil {
		return err
	}

	pterm.Success.Printfln("Spawned %s", result.ChildFeature)
	if result.ParentBlocked {
		pterm.Info.Printfln("Parent %s is blocked until fold-back", spawnParent)
	}
	return nil
}

func runFoldback(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	payload, err := os.ReadFile(foldbackResolution)
	if err != nil {
		return errors.Wrapf(err, "failed to read resolution %s", foldbackResolution)
	}

	manager := vector.NewManager(rt.vectors, rt.events, rt.cfg.Project.ID, logger.Logger)
	result, err := manager.FoldBack(args[0], string(payload))
	if err != nil {
		return err
	}

	pterm.Success.Printfln("Folded back %s (payload at %s)", args[0], result.PayloadPath)
	if result.ParentUnblocked {
		pterm.Info.Println("Parent is unblocked")
	}
	return nil
}
