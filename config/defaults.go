package config

import (
	"os"

	"github.com/spf13/viper"
)

// Default file permissions for created directories
const DefaultDirPermissions = 0o755

// ConfigFileName is the project configuration file searched for by Load
const ConfigFileName = "converge.toml"

// SetDefaults establishes default values on a Viper instance.
// Every key has a default so a bare workspace can iterate without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project.id", defaultProjectID())

	v.SetDefault("engine.max_iterations", 5)
	v.SetDefault("engine.stuck_window", 3)

	v.SetDefault("supervisor.wall_timeout_seconds", 300)
	v.SetDefault("supervisor.stall_timeout_seconds", 60)
	v.SetDefault("supervisor.poll_interval_ms", 250)
	v.SetDefault("supervisor.kill_grace_seconds", 5)
	v.SetDefault("supervisor.sanitize_env", true)

	v.SetDefault("judge.command", "")
	v.SetDefault("judge.rate_per_minute", 0)
	v.SetDefault("judge.min_version", "")
	v.SetDefault("judge.deterministic_timeout_seconds", 120)

	v.SetDefault("security.confidentiality", "internal")
	v.SetDefault("security.scanner_enabled", false)

	v.SetDefault("paths.event_log", ".converge/events.jsonl")
	v.SetDefault("paths.vectors_dir", ".converge/vectors")
	v.SetDefault("paths.constraints", ".converge/constraints.yaml")
	v.SetDefault("paths.intent", ".converge/intent.md")
	v.SetDefault("paths.topology", ".converge/topology.yaml")
	v.SetDefault("paths.checklist_dir", ".converge/checklists")
	v.SetDefault("paths.event_mirror", "")
}

// defaultProjectID derives a project id from the working directory name
func defaultProjectID() string {
	wd, err := os.Getwd()
	if err != nil {
		return "project"
	}
	base := wd
	for i := len(wd) - 1; i >= 0; i-- {
		if wd[i] == '/' || wd[i] == '\\' {
			base = wd[i+1:]
			break
		}
	}
	if base == "" {
		return "project"
	}
	return base
}
