package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/convergentic/converge/errors"
	"github.com/convergentic/converge/eventstore"
	"github.com/convergentic/converge/vector"
)

var releaseAllowPartial bool

// ReleaseCmd records a release of the converged feature set
var ReleaseCmd = &cobra.Command{
	Use:   "release <version>",
	Short: "Record a release of the converged feature set",
	Long: `Append a release_created event naming the release version and the
features it covers. By default every feature must be converged; use
--allow-partial to release with blocked or in-flight features excluded.

Example:
  converge release v1.2.0`,
	Args: cobra.ExactArgs(1),
	RunE: runRelease,
}

func init() {
	ReleaseCmd.Flags().BoolVar(&releaseAllowPartial, "allow-partial", false,
		"Release the converged subset even if other features are still in flight")
}

func runRelease(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	features, err := rt.vectors.List()
	if err != nil {
		return err
	}
	if len(features) == 0 {
		return errors.New("nothing to release: no feature vectors found")
	}

	var converged, pending []string
	for _, fv := range features {
		if fv.Status == vector.StatusConverged {
			converged = append(converged, fv.Feature)
		} else {
			pending = append(pending, fv.Feature)
		}
	}
	if len(pending) > 0 && !releaseAllowPartial {
		return errors.Newf("features not converged: %v (use --allow-partial to release without them)", pending)
	}
	if len(converged) == 0 {
		return errors.New("nothing to release: no feature has converged")
	}

	if _, err := rt.events.Emit(eventstore.Event{
		EventType: eventstore.TypeReleaseCreated,
		Project:   rt.cfg.Project.ID,
		Data: map[string]interface{}{
			"version":  args[0],
			"features": converged,
		},
	}); err != nil {
		return err
	}

	pterm.Success.Printfln("Recorded release %s covering %d feature(s)", args[0], len(converged))
	for _, skipped := range pending {
		pterm.Warning.Printfln("excluded (not converged): %s", skipped)
	}
	return nil
}
