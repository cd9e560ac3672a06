package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/convergentic/converge/eventstore"
)

var recoverDryRun bool

// RecoverCmd marks iterations abandoned by a crashed process
var RecoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Mark iterations abandoned by a crashed process",
	Long: `Scan the event log for edges that were started but never recorded any
progress — the signature of a process that died mid-iteration — and append
an iteration_abandoned event for each. The projection is idempotent: a
second run reports nothing new. Resumption is left to the caller.`,
	RunE: runRecover,
}

func init() {
	RecoverCmd.Flags().BoolVar(&recoverDryRun, "dry-run", false, "Report abandoned iterations without recording them")
}

func runRecover(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	events, err := rt.store.ReadAll()
	if err != nil {
		return err
	}

	abandoned := eventstore.AbandonedIterations(events)
	if len(abandoned) == 0 {
		pterm.Success.Println("No abandoned iterations found")
		return nil
	}

	for _, ab := range abandoned {
		if recoverDryRun {
			pterm.Info.Printfln("would mark %s/%s abandoned (started %s)",
				ab.Feature, ab.Edge, ab.LastSeen.Format("2006-01-02 15:04:05"))
			continue
		}
		if _, err := rt.events.Emit(eventstore.Event{
			EventType: eventstore.TypeIterationAbandoned,
			Project:   rt.cfg.Project.ID,
			Feature:   ab.Feature,
			Edge:      ab.Edge,
			Data: map[string]interface{}{
				"last_seen": ab.LastSeen.UTC().Format(time.RFC3339),
			},
		}); err != nil {
			return err
		}
		pterm.Warning.Printfln("marked %s/%s abandoned", ab.Feature, ab.Edge)
	}

	if !recoverDryRun {
		pterm.Success.Printfln("Recorded %d abandoned iteration(s)", len(abandoned))
	}
	return nil
}
