package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/convergentic/converge/eventstore"
	"github.com/convergentic/converge/vector"
	"github.com/convergentic/converge/workspace"
)

// StatusCmd shows workspace state, features, and the next recommended step
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workspace state, features, and the next recommended step",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	events, err := rt.store.ReadAll()
	if err != nil {
		return err
	}
	features, err := rt.vectors.List()
	if err != nil {
		return err
	}
	stuck := eventstore.StuckPairs(events, rt.cfg.Engine.StuckWindow)

	state := workspace.DetectState(workspace.Input{
		WorkspacePresent:   fileExists(rt.cfg.Paths.Topology),
		ConstraintsPresent: fileExists(rt.cfg.Paths.Constraints),
		IntentPresent:      fileExists(rt.cfg.Paths.Intent),
		Features:           features,
		StuckPairs:         stuck,
	})

	pterm.DefaultHeader.WithFullWidth().Printfln("converge — %s", rt.cfg.Project.ID)
	pterm.Println()
	pterm.Printfln("State: %s", stateLabel(state))
	pterm.Println()

	if len(features) > 0 {
		rows := pterm.TableData{{"Feature", "Status", "Edges converged", "Blocked by"}}
		for _, fv := range features {
			converged := 0
			for _, entry := range fv.Trajectory {
				if entry.Status == "converged" {
					converged++
				}
			}
			rows = append(rows, []string{
				fv.Feature,
				featureLabel(fv.Status),
				fmt.Sprintf("%d/%d", converged, len(fv.Trajectory)),
				fv.BlockedBy,
			})
		}
		pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		pterm.Println()
	}

	for _, pair := range stuck {
		pterm.Warning.Printfln("stuck: %s/%s (no progress for %d iterations)",
			pair.Feature, pair.Edge, rt.cfg.Engine.StuckWindow)
	}
	if abandoned := eventstore.AbandonedIterations(events); len(abandoned) > 0 {
		for _, ab := range abandoned {
			pterm.Warning.Printfln("abandoned: %s/%s (started %s, no progress recorded)",
				ab.Feature, ab.Edge, ab.LastSeen.Format("2006-01-02 15:04:05"))
		}
		pterm.Info.Println("Run 'converge recover' to mark these iterations abandoned")
	}

	pterm.Println()
	pterm.Info.Println(workspace.Recommend(state))
	return nil
}

func stateLabel(state workspace.State) string {
	switch state {
	case workspace.StateAllConverged:
		return pterm.Green(string(state))
	case workspace.StateStuck, workspace.StateAllBlocked:
		return pterm.Red(string(state))
	default:
		return pterm.Yellow(string(state))
	}
}

func featureLabel(status string) string {
	switch status {
	case vector.StatusConverged:
		return pterm.Green(status)
	case vector.StatusBlocked:
		return pterm.Red(status)
	default:
		return pterm.Yellow(status)
	}
}
