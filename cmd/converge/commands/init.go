package commands

import (
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/convergentic/converge/config"
	"github.com/convergentic/converge/errors"
	"github.com/convergentic/converge/eventstore"
	"github.com/convergentic/converge/logger"
)

// starterTopology is a minimal but runnable pipeline: enough structure to
// iterate immediately, meant to be edited.
const starterTopology = `asset_types:
  - name: intent
    description: What the project is trying to achieve
  - name: requirements
    description: Testable statements derived from intent
  - name: design
    description: Structural decisions satisfying the requirements
  - name: code
    description: The implementation

edges:
  - source: intent
    target: requirements
    checklist: intent_to_requirements.yaml
  - source: requirements
    target: design
    checklist: requirements_to_design.yaml
  - source: design
    target: code
    checklist: design_to_code.yaml
`

// starterChecklist demonstrates the three check kinds and a $var reference
const starterChecklist = `checklist:
  - name: artifact_exists
    type: deterministic
    functional_unit: verify
    criterion: the candidate artifact is present
    command: test -s $paths.artifact
    required: true
  - name: covers_upstream
    type: agent
    functional_unit: evaluate
    criterion: every upstream statement is addressed by the candidate
    required: true
  - name: stakeholder_signoff
    type: human
    functional_unit: approve
    criterion: a stakeholder has reviewed the candidate
    required: false
`

// InitCmd initializes a converge workspace in the current directory
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a converge workspace",
	Long: `Create the .converge/ workspace layout, a default converge.toml, and a
starter topology with one checklist per edge. Existing files are never
overwritten.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if fileExists(config.ConfigFileName) {
		pterm.Info.Printfln("Keeping existing %s", config.ConfigFileName)
	} else {
		if err := config.WriteDefault(config.ConfigFileName); err != nil {
			return err
		}
		pterm.Success.Printfln("Wrote %s", config.ConfigFileName)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	for _, dir := range []string{cfg.Paths.VectorsDir, cfg.Paths.ChecklistDir, filepath.Dir(cfg.Paths.EventLog)} {
		if err := os.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}

	if err := writeIfAbsent(cfg.Paths.Topology, starterTopology); err != nil {
		return err
	}
	for _, name := range []string{"intent_to_requirements.yaml", "requirements_to_design.yaml", "design_to_code.yaml"} {
		if err := writeIfAbsent(filepath.Join(cfg.Paths.ChecklistDir, name), starterChecklist); err != nil {
			return err
		}
	}
	if err := writeIfAbsent(cfg.Paths.Constraints, "# Constraint document: values for $dotted.path checklist references\n"); err != nil {
		return err
	}

	store, err := eventstore.Open(cfg.Paths.EventLog, logger.Logger)
	if err != nil {
		return err
	}
	if _, err := store.Emit(eventstore.Event{
		EventType: eventstore.TypeProjectInitialized,
		Project:   cfg.Project.ID,
	}); err != nil {
		return err
	}

	pterm.Success.Printfln("Workspace initialized for project %q", cfg.Project.ID)
	pterm.Info.Println("Next: write the intent document, then 'converge status'")
	return nil
}

// writeIfAbsent creates a file with content unless it already exists
func writeIfAbsent(path, content string) error {
	if fileExists(path) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), config.DefaultDirPermissions); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	pterm.Success.Printfln("Wrote %s", path)
	return nil
}
