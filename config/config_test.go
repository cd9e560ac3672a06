package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Engine.MaxIterations)
	assert.Equal(t, 3, cfg.Engine.StuckWindow)
	assert.Equal(t, 300, cfg.Supervisor.WallTimeoutSeconds)
	assert.Equal(t, 60, cfg.Supervisor.StallTimeoutSeconds)
	assert.True(t, cfg.Supervisor.SanitizeEnv)
	assert.Equal(t, 120, cfg.Judge.DeterministicTimeoutSeconds)
	assert.Equal(t, ".converge/events.jsonl", cfg.Paths.EventLog)
	assert.NotEmpty(t, cfg.Project.ID)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("CONVERGE_ENGINE_MAX_ITERATIONS", "9")
	t.Setenv("CONVERGE_JUDGE_COMMAND", "my-judge --json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Engine.MaxIterations)
	assert.Equal(t, "my-judge --json", cfg.Judge.Command)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "converge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[project]
id = "atlas"

[engine]
max_iterations = 8

[judge]
command = "claude -p"
min_version = "1.0.0"
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "atlas", cfg.Project.ID)
	assert.Equal(t, 8, cfg.Engine.MaxIterations)
	assert.Equal(t, "claude -p", cfg.Judge.Command)

	// Keys the file omits keep their defaults
	assert.Equal(t, 3, cfg.Engine.StuckWindow)
	assert.True(t, cfg.Supervisor.SanitizeEnv)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "converge.toml")

	cfg, err := Load()
	require.NoError(t, err)
	cfg.Project.ID = "roundtrip"
	cfg.Engine.MaxIterations = 7

	require.NoError(t, Save(cfg, path, nil))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", loaded.Project.ID)
	assert.Equal(t, 7, loaded.Engine.MaxIterations)
}

func TestWriteDefaultRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "converge.toml")

	require.NoError(t, WriteDefault(path))
	require.Error(t, WriteDefault(path), "an existing config is never overwritten")
}

func TestSensitiveConfidentialityLevels(t *testing.T) {
	assert.True(t, SensitiveConfidentialityLevels["confidential"])
	assert.True(t, SensitiveConfidentialityLevels["restricted"])
	assert.False(t, SensitiveConfidentialityLevels["internal"])
	assert.False(t, SensitiveConfidentialityLevels["public"])
}
