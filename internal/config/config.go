package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the complete xrloop configuration
type Config struct {
	Runtime  RuntimeConfig  `mapstructure:"runtime" yaml:"runtime"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Render   RenderConfig   `mapstructure:"render" yaml:"render"`
	Tracking TrackingConfig `mapstructure:"tracking" yaml:"tracking"`
	Loop     LoopConfig     `mapstructure:"loop" yaml:"loop"`
	Monitor  MonitorConfig  `mapstructure:"monitor" yaml:"monitor"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// RuntimeConfig describes the application to the runtime and the extensions
// it negotiates.
type RuntimeConfig struct {
	ApplicationName    string `mapstructure:"application_name" yaml:"application_name"`
	ApplicationVersion int    `mapstructure:"application_version" yaml:"application_version"`
	EngineName         string `mapstructure:"engine_name" yaml:"engine_name"`
	EngineVersion      int    `mapstructure:"engine_version" yaml:"engine_version"`
	// RequiredExtension must be advertised or initialization fails for good.
	RequiredExtension string `mapstructure:"required_extension" yaml:"required_extension"`
	// OptionalExtensions are glob patterns; every advertised match is enabled.
	OptionalExtensions []string `mapstructure:"optional_extensions" yaml:"optional_extensions"`
}

// SessionConfig controls session and swapchain creation.
type SessionConfig struct {
	// FormFactor is "hmd" or "handheld".
	FormFactor string `mapstructure:"form_factor" yaml:"form_factor"`
	// ViewConfiguration is "stereo" or "mono".
	ViewConfiguration string `mapstructure:"view_configuration" yaml:"view_configuration"`
	// PrimarySpace is the reference space poses are expressed in: "stage" or "local".
	PrimarySpace string `mapstructure:"primary_space" yaml:"primary_space"`
	// SwapchainFormat is "srgb8_alpha8" or "rgba8". Falls back to the
	// runtime's first format when not offered.
	SwapchainFormat string `mapstructure:"swapchain_format" yaml:"swapchain_format"`
	SampleCount     int    `mapstructure:"sample_count" yaml:"sample_count"`
}

// RenderConfig controls projection and composition.
type RenderConfig struct {
	NearClip float64 `mapstructure:"near_clip" yaml:"near_clip"`
	FarClip  float64 `mapstructure:"far_clip" yaml:"far_clip"`
	// BlendMode is "opaque", "additive" or "alpha_blend".
	BlendMode string `mapstructure:"blend_mode" yaml:"blend_mode"`
	// Immersive selects full stereo rendering. When false every frame
	// submits cleared images.
	Immersive bool `mapstructure:"immersive" yaml:"immersive"`
}

// TrackingConfig holds the live-tunable mapping from device space to
// game space. Changes are applied on config reload without a restart.
type TrackingConfig struct {
	OffsetX        float64 `mapstructure:"offset_x" yaml:"offset_x"`
	OffsetY        float64 `mapstructure:"offset_y" yaml:"offset_y"`
	OffsetZ        float64 `mapstructure:"offset_z" yaml:"offset_z"`
	AvatarScale    float64 `mapstructure:"avatar_scale" yaml:"avatar_scale"`
	YawTurnDegrees float64 `mapstructure:"yaw_turn_degrees" yaml:"yaw_turn_degrees"`
}

// LoopConfig controls retry pacing and failure tolerance.
type LoopConfig struct {
	// RetryDelayMs is the wait before re-attempting a recoverable init failure.
	RetryDelayMs int `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
	// IdleHz is the tick rate while no session is running.
	IdleHz int `mapstructure:"idle_hz" yaml:"idle_hz"`
	// MaxFrameFailures is the number of consecutive frame-fatal errors
	// after which the session is torn down. 0 tears down on the first.
	MaxFrameFailures int `mapstructure:"max_frame_failures" yaml:"max_frame_failures"`
}

// MonitorConfig controls the terminal monitor.
type MonitorConfig struct {
	RefreshMs   int `mapstructure:"refresh_ms" yaml:"refresh_ms"`
	EventBuffer int `mapstructure:"event_buffer" yaml:"event_buffer"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is "debug", "info", "warn" or "error".
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the log directory. Empty means StateDir().
	Dir        string `mapstructure:"dir" yaml:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			ApplicationName:    "xrloop",
			ApplicationVersion: 1,
			EngineName:         "xrloop",
			EngineVersion:      1,
			RequiredExtension:  "XR_KHR_opengl_enable",
			OptionalExtensions: []string{},
		},
		Session: SessionConfig{
			FormFactor:        "hmd",
			ViewConfiguration: "stereo",
			PrimarySpace:      "stage",
			SwapchainFormat:   "srgb8_alpha8",
			SampleCount:       1,
		},
		Render: RenderConfig{
			NearClip:  0.05,
			FarClip:   256,
			BlendMode: "opaque",
			Immersive: true,
		},
		Tracking: TrackingConfig{
			AvatarScale: 1.0,
		},
		Loop: LoopConfig{
			RetryDelayMs:     2000,
			IdleHz:           10,
			MaxFrameFailures: 3,
		},
		Monitor: MonitorConfig{
			RefreshMs:   250,
			EventBuffer: 256,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// RetryDelay returns the init retry delay as a time.Duration
func (c *LoopConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// IdleInterval returns the tick period while idle.
func (c *LoopConfig) IdleInterval() time.Duration {
	if c.IdleHz <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(c.IdleHz)
}

// RefreshInterval returns the monitor redraw period.
func (c *MonitorConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshMs) * time.Millisecond
}

// ResolveDir returns the configured log directory or the default state dir.
func (c *LoggingConfig) ResolveDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return StateDir()
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Runtime defaults
	viper.SetDefault("runtime.application_name", defaults.Runtime.ApplicationName)
	viper.SetDefault("runtime.application_version", defaults.Runtime.ApplicationVersion)
	viper.SetDefault("runtime.engine_name", defaults.Runtime.EngineName)
	viper.SetDefault("runtime.engine_version", defaults.Runtime.EngineVersion)
	viper.SetDefault("runtime.required_extension", defaults.Runtime.RequiredExtension)
	viper.SetDefault("runtime.optional_extensions", defaults.Runtime.OptionalExtensions)

	// Session defaults
	viper.SetDefault("session.form_factor", defaults.Session.FormFactor)
	viper.SetDefault("session.view_configuration", defaults.Session.ViewConfiguration)
	viper.SetDefault("session.primary_space", defaults.Session.PrimarySpace)
	viper.SetDefault("session.swapchain_format", defaults.Session.SwapchainFormat)
	viper.SetDefault("session.sample_count", defaults.Session.SampleCount)

	// Render defaults
	viper.SetDefault("render.near_clip", defaults.Render.NearClip)
	viper.SetDefault("render.far_clip", defaults.Render.FarClip)
	viper.SetDefault("render.blend_mode", defaults.Render.BlendMode)
	viper.SetDefault("render.immersive", defaults.Render.Immersive)

	// Tracking defaults
	viper.SetDefault("tracking.offset_x", defaults.Tracking.OffsetX)
	viper.SetDefault("tracking.offset_y", defaults.Tracking.OffsetY)
	viper.SetDefault("tracking.offset_z", defaults.Tracking.OffsetZ)
	viper.SetDefault("tracking.avatar_scale", defaults.Tracking.AvatarScale)
	viper.SetDefault("tracking.yaw_turn_degrees", defaults.Tracking.YawTurnDegrees)

	// Loop defaults
	viper.SetDefault("loop.retry_delay_ms", defaults.Loop.RetryDelayMs)
	viper.SetDefault("loop.idle_hz", defaults.Loop.IdleHz)
	viper.SetDefault("loop.max_frame_failures", defaults.Loop.MaxFrameFailures)

	// Monitor defaults
	viper.SetDefault("monitor.refresh_ms", defaults.Monitor.RefreshMs)
	viper.SetDefault("monitor.event_buffer", defaults.Monitor.EventBuffer)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded one is invalid.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Watch re-loads the configuration whenever the config file is written and
// hands the result to onChange. Invalid reloads go to onError and the
// previous settings stay in effect. Watch requires a config file to have
// been read by viper.
func Watch(onChange func(*Config, fsnotify.Event), onError func(error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg, e)
	})
	viper.WatchConfig()
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "xrloop")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".xrloop"
	}
	return filepath.Join(home, ".config", "xrloop")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StateDir returns the default directory for logs.
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "xrloop")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".xrloop", "state")
	}
	return filepath.Join(home, ".local", "state", "xrloop")
}
