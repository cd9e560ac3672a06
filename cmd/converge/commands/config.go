package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/convergentic/converge/config"
	"github.com/convergentic/converge/errors"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and query converge configuration",
	Long: `Display the effective converge configuration.

Configuration sources (in order of precedence):
1. Environment variables (CONVERGE_* prefix)
2. Project config (converge.toml, found by walking up from the working directory)
3. Default values

Examples:
  converge config show                 # Show effective configuration
  converge config show --format json   # Show configuration as JSON
  converge config get engine.max_iterations`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get one configuration value by dotted key",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configGetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Print(string(data))
	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Print(string(data))
	default:
		return errors.Newf("unknown format %q (want toml, json, or yaml)", configFormat)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Round-trip through TOML so dotted keys address the same tree the
	// config file uses.
	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	var tree map[string]interface{}
	if err := toml.Unmarshal(data, &tree); err != nil {
		return errors.Wrap(err, "failed to rebuild config tree")
	}

	value, ok := lookupDotted(tree, args[0])
	if !ok {
		return errors.Newf("no configuration value at %q", args[0])
	}
	fmt.Println(value)
	return nil
}

// lookupDotted walks a dotted path through nested JSON maps
func lookupDotted(tree map[string]interface{}, key string) (interface{}, bool) {
	node := interface{}(tree)
	start := 0
	for start <= len(key) {
		end := start
		for end < len(key) && key[end] != '.' {
			end++
		}
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil, false
		}
		node, ok = m[key[start:end]]
		if !ok {
			return nil, false
		}
		if end == len(key) {
			return node, true
		}
		start = end + 1
	}
	return nil, false
}
