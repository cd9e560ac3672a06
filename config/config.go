// Package config loads and persists the converge engine configuration.
//
// Configuration is resolved from (lowest to highest precedence): defaults,
// a project-local converge.toml found by walking up from the working
// directory, then CONVERGE_* environment variables. Components never read
// configuration ambiently; the loaded *Config is passed to constructors.
package config

// Config represents the converge engine configuration
type Config struct {
	Project    ProjectConfig    `mapstructure:"project" toml:"project"`
	Engine     EngineConfig     `mapstructure:"engine" toml:"engine"`
	Supervisor SupervisorConfig `mapstructure:"supervisor" toml:"supervisor"`
	Judge      JudgeConfig      `mapstructure:"judge" toml:"judge"`
	Security   SecurityConfig   `mapstructure:"security" toml:"security"`
	Paths      PathsConfig      `mapstructure:"paths" toml:"paths"`
}

// ProjectConfig identifies the project the engine operates on
type ProjectConfig struct {
	ID string `mapstructure:"id" toml:"id"` // Recorded on every emitted event
}

// EngineConfig configures the convergence iteration loop
type EngineConfig struct {
	MaxIterations int `mapstructure:"max_iterations" toml:"max_iterations"` // Upper bound for RunEdge (default: 5)
	StuckWindow   int `mapstructure:"stuck_window" toml:"stuck_window"`     // Equal-delta run length that flags an edge as stuck (default: 3)
}

// SupervisorConfig configures isolated judge subprocess execution
type SupervisorConfig struct {
	WallTimeoutSeconds  int  `mapstructure:"wall_timeout_seconds" toml:"wall_timeout_seconds"`   // Total run-time bound (default: 300)
	StallTimeoutSeconds int  `mapstructure:"stall_timeout_seconds" toml:"stall_timeout_seconds"` // No-output bound, 0 disables (default: 60)
	PollIntervalMS      int  `mapstructure:"poll_interval_ms" toml:"poll_interval_ms"`           // Watchdog tick (default: 250)
	KillGraceSeconds    int  `mapstructure:"kill_grace_seconds" toml:"kill_grace_seconds"`       // SIGTERM to SIGKILL window (default: 5)
	SanitizeEnv         bool `mapstructure:"sanitize_env" toml:"sanitize_env"`                   // Strip nesting-guard variables (default: true)
}

// JudgeConfig configures the external agent judge CLI
type JudgeConfig struct {
	Command                     string `mapstructure:"command" toml:"command"`                                             // Judge invocation template, empty disables agent checks
	RatePerMinute               int    `mapstructure:"rate_per_minute" toml:"rate_per_minute"`                             // Judge invocation rate limit, 0 = unlimited
	MinVersion                  string `mapstructure:"min_version" toml:"min_version"`                                     // Semver floor for the judge CLI, empty skips the gate
	DeterministicTimeoutSeconds int    `mapstructure:"deterministic_timeout_seconds" toml:"deterministic_timeout_seconds"` // Timeout for local deterministic commands (default: 120)
}

// SecurityConfig configures the security guardrail inputs
type SecurityConfig struct {
	Confidentiality string `mapstructure:"confidentiality" toml:"confidentiality"` // "public", "internal", "confidential", "restricted"
	ScannerEnabled  bool   `mapstructure:"scanner_enabled" toml:"scanner_enabled"`
}

// PathsConfig locates the workspace documents the engine reads and writes
type PathsConfig struct {
	EventLog     string `mapstructure:"event_log" toml:"event_log"`         // JSONL audit log
	VectorsDir   string `mapstructure:"vectors_dir" toml:"vectors_dir"`     // Feature vector documents
	Constraints  string `mapstructure:"constraints" toml:"constraints"`     // Constraint document (YAML)
	Intent       string `mapstructure:"intent" toml:"intent"`               // Project intent document
	Topology     string `mapstructure:"topology" toml:"topology"`           // Asset-type/edge topology (YAML)
	ChecklistDir string `mapstructure:"checklist_dir" toml:"checklist_dir"` // One checklist document per edge
	EventMirror  string `mapstructure:"event_mirror" toml:"event_mirror"`   // Optional SQLite mirror of the event log, empty disables
}

// SensitiveConfidentialityLevels are the classifications that require a
// security scanner before code-bearing edges may run.
var SensitiveConfidentialityLevels = map[string]bool{
	"confidential": true,
	"restricted":   true,
}
