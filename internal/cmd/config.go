package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/xrloop/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify xrloop configuration",
	Long: `View or modify xrloop configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  xrloop config set tracking.avatar_scale 1.25
  xrloop config set render.blend_mode additive
  xrloop config set loop.max_frame_failures 5

Keys under tracking, render.immersive and loop take effect in a running
"xrloop run" without a restart; the rest apply at the next start.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/xrloop/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// settableKeys maps every key accepted by "config set" to its value kind.
var settableKeys = map[string]string{
	"runtime.required_extension": "string",
	"session.form_factor":        "string",
	"session.view_configuration": "string",
	"session.primary_space":      "string",
	"session.swapchain_format":   "string",
	"session.sample_count":       "int",
	"render.near_clip":           "float",
	"render.far_clip":            "float",
	"render.blend_mode":          "string",
	"render.immersive":           "bool",
	"tracking.offset_x":          "float",
	"tracking.offset_y":          "float",
	"tracking.offset_z":          "float",
	"tracking.avatar_scale":      "float",
	"tracking.yaw_turn_degrees":  "float",
	"loop.retry_delay_ms":        "int",
	"loop.idle_hz":               "int",
	"loop.max_frame_failures":    "int",
	"monitor.refresh_ms":         "int",
	"monitor.event_buffer":       "int",
	"logging.enabled":            "bool",
	"logging.level":              "string",
	"logging.dir":                "string",
	"logging.max_size_mb":        "int",
	"logging.max_backups":        "int",
	"logging.compress":           "bool",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(out, "Configuration is invalid, showing defaults:\n%v\n\n", err)
		cfg = config.Default()
	}

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "# Config file: (none - using defaults)\n")
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return enc.Close()
}

// parseSetting converts value to the kind registered for key.
func parseSetting(key, value string) (any, error) {
	kind, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'xrloop config set --help' to see examples", key)
	}

	switch kind {
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		return n, nil
	case "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected number", key)
		}
		return f, nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(args[0])
	typedValue, err := parseSetting(key, args[1])
	if err != nil {
		return err
	}

	previous := viper.Get(key)
	viper.Set(key, typedValue)
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	// Ensure config directory exists
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = config.ConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

// defaultConfigFile is written by "config init".
const defaultConfigFile = `# xrloop configuration

# How the application presents itself to the runtime
runtime:
  application_name: xrloop
  application_version: 1
  engine_name: xrloop
  engine_version: 1
  # Initialization fails for good when the runtime does not advertise this
  required_extension: XR_KHR_opengl_enable
  # Glob patterns; every advertised match is enabled, e.g. "XR_EXT_*_controller"
  optional_extensions: []

session:
  # hmd or handheld
  form_factor: hmd
  # stereo or mono
  view_configuration: stereo
  # Reference space poses are expressed in: stage or local
  primary_space: stage
  # srgb8_alpha8 or rgba8; the runtime's first format is used when neither is offered
  swapchain_format: srgb8_alpha8
  sample_count: 1

render:
  near_clip: 0.05
  far_clip: 256
  # opaque, additive or alpha_blend
  blend_mode: opaque
  # false submits cleared images instead of rendering the scene
  immersive: true

# Mapping from tracking space to the host's world (applied live on save)
tracking:
  offset_x: 0
  offset_y: 0
  offset_z: 0
  avatar_scale: 1.0
  yaw_turn_degrees: 0

loop:
  # Wait before retrying a failed bring-up
  retry_delay_ms: 2000
  # Tick rate while no session is running
  idle_hz: 10
  # Consecutive frame failures tolerated before the session is rebuilt
  max_frame_failures: 3

monitor:
  refresh_ms: 250
  event_buffer: 256

logging:
  enabled: true
  # debug, info, warn or error
  level: info
  # Empty uses ~/.local/state/xrloop
  dir: ""
  max_size_mb: 10
  max_backups: 3
  compress: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'xrloop config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigFile), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize xrloop's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", configFile)
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: XRLOOP_* (e.g., XRLOOP_TRACKING_AVATAR_SCALE)")
	return nil
}
