package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/convergentic/converge/errors"
	"github.com/convergentic/converge/eventstore"
)

var (
	eventsType    string
	eventsFeature string
	eventsTail    int
)

// EventsCmd inspects the append-only event log
var EventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the append-only event log",
	Long: `Replay the JSONL event log in append order, one JSON object per line.

Examples:
  converge events                              # Full log
  converge events --type iteration_completed   # Only iteration records
  converge events --feature login --tail 20    # Last 20 events for a feature`,
	RunE: runEvents,
}

func init() {
	EventsCmd.Flags().StringVar(&eventsType, "type", "", "Only events of this type")
	EventsCmd.Flags().StringVar(&eventsFeature, "feature", "", "Only events for this feature")
	EventsCmd.Flags().IntVar(&eventsTail, "tail", 0, "Only the last N matching events (0 = all)")
}

func runEvents(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	events, err := rt.store.ReadAll()
	if err != nil {
		return err
	}

	var matched []eventstore.Event
	for _, ev := range events {
		if eventsType != "" && ev.EventType != eventsType {
			continue
		}
		if eventsFeature != "" && ev.Feature != eventsFeature {
			continue
		}
		matched = append(matched, ev)
	}
	if eventsTail > 0 && len(matched) > eventsTail {
		matched = matched[len(matched)-eventsTail:]
	}

	for _, ev := range matched {
		line, err := json.Marshal(ev)
		if err != nil {
			return errors.Wrap(err, "failed to marshal event")
		}
		fmt.Println(string(line))
	}
	return nil
}
