package commands

import (
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/kballard/go-shellquote"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/convergentic/converge/config"
	"github.com/convergentic/converge/errors"
	"github.com/convergentic/converge/version"
)

var checkJudge bool

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show converge version information",
	Long:  `Display version, build time, commit hash, and platform information for the converge binary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		info := version.Get()

		if jsonOutput {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return errors.Wrap(err, "failed to format version as JSON")
			}
			fmt.Println(string(output))
		} else {
			fmt.Println(info.String())
			fmt.Printf("Platform: %s\n", info.Platform)
			fmt.Printf("Go: %s\n", info.GoVersion)
		}

		if checkJudge {
			return runJudgeCheck()
		}
		return nil
	},
}

func init() {
	VersionCmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
	VersionCmd.Flags().BoolVar(&checkJudge, "check-judge", false, "Verify the configured judge CLI meets the minimum version")
}

// runJudgeCheck invokes the configured judge with --version and enforces
// the semver floor from judge.min_version.
func runJudgeCheck() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Judge.Command == "" {
		pterm.Warning.Println("No judge configured (judge.command is empty); agent checks will be skipped")
		return nil
	}

	argv, err := shellquote.Split(cfg.Judge.Command)
	if err != nil {
		return errors.Wrapf(err, "judge command %q", cfg.Judge.Command)
	}

	out, err := exec.Command(argv[0], "--version").CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "judge %q did not report a version", argv[0])
	}

	if err := version.CheckJudgeVersion(string(out), cfg.Judge.MinVersion); err != nil {
		return err
	}
	if cfg.Judge.MinVersion == "" {
		pterm.Success.Printfln("Judge %s responded (no minimum version configured)", argv[0])
	} else {
		pterm.Success.Printfln("Judge %s meets minimum version %s", argv[0], cfg.Judge.MinVersion)
	}
	return nil
}
