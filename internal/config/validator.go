package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "render.near_clip")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// extensionNameRegex matches registered extension names such as XR_KHR_opengl_enable.
var extensionNameRegex = regexp.MustCompile(`^XR_[A-Z0-9]+_[A-Za-z0-9_]+$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidFormFactors returns the accepted session.form_factor values.
func ValidFormFactors() []string {
	return []string{"hmd", "handheld"}
}

// ValidViewConfigurations returns the accepted session.view_configuration values.
func ValidViewConfigurations() []string {
	return []string{"stereo", "mono"}
}

// ValidPrimarySpaces returns the accepted session.primary_space values.
func ValidPrimarySpaces() []string {
	return []string{"stage", "local"}
}

// ValidSwapchainFormats returns the accepted session.swapchain_format values.
func ValidSwapchainFormats() []string {
	return []string{"srgb8_alpha8", "rgba8"}
}

// ValidBlendModes returns the accepted render.blend_mode values.
func ValidBlendModes() []string {
	return []string{"opaque", "additive", "alpha_blend"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateRuntime()...)
	errors = append(errors, c.validateSession()...)
	errors = append(errors, c.validateRender()...)
	errors = append(errors, c.validateTracking()...)
	errors = append(errors, c.validateLoop()...)
	errors = append(errors, c.validateMonitor()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func oneOf(field, value string, valid []string) []ValidationError {
	if slices.Contains(valid, value) {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(valid, ", ")),
	}}
}

func (c *Config) validateRuntime() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Runtime.ApplicationName) == "" {
		errors = append(errors, ValidationError{
			Field:   "runtime.application_name",
			Value:   c.Runtime.ApplicationName,
			Message: "must not be empty",
		})
	}
	// The runtime truncates names to 127 bytes plus terminator.
	if len(c.Runtime.ApplicationName) > 127 {
		errors = append(errors, ValidationError{
			Field:   "runtime.application_name",
			Value:   c.Runtime.ApplicationName,
			Message: "must be at most 127 bytes",
		})
	}
	if len(c.Runtime.EngineName) > 127 {
		errors = append(errors, ValidationError{
			Field:   "runtime.engine_name",
			Value:   c.Runtime.EngineName,
			Message: "must be at most 127 bytes",
		})
	}
	if c.Runtime.ApplicationVersion < 0 {
		errors = append(errors, ValidationError{
			Field:   "runtime.application_version",
			Value:   c.Runtime.ApplicationVersion,
			Message: "must be non-negative",
		})
	}
	if c.Runtime.EngineVersion < 0 {
		errors = append(errors, ValidationError{
			Field:   "runtime.engine_version",
			Value:   c.Runtime.EngineVersion,
			Message: "must be non-negative",
		})
	}
	if !extensionNameRegex.MatchString(c.Runtime.RequiredExtension) {
		errors = append(errors, ValidationError{
			Field:   "runtime.required_extension",
			Value:   c.Runtime.RequiredExtension,
			Message: "must be an extension name like XR_KHR_opengl_enable",
		})
	}
	for i, pattern := range c.Runtime.OptionalExtensions {
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("runtime.optional_extensions[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	return errors
}

func (c *Config) validateSession() []ValidationError {
	var errors []ValidationError

	errors = append(errors, oneOf("session.form_factor", c.Session.FormFactor, ValidFormFactors())...)
	errors = append(errors, oneOf("session.view_configuration", c.Session.ViewConfiguration, ValidViewConfigurations())...)
	errors = append(errors, oneOf("session.primary_space", c.Session.PrimarySpace, ValidPrimarySpaces())...)
	errors = append(errors, oneOf("session.swapchain_format", c.Session.SwapchainFormat, ValidSwapchainFormats())...)

	switch c.Session.SampleCount {
	case 1, 2, 4, 8:
	default:
		errors = append(errors, ValidationError{
			Field:   "session.sample_count",
			Value:   c.Session.SampleCount,
			Message: "must be 1, 2, 4 or 8",
		})
	}

	return errors
}

func (c *Config) validateRender() []ValidationError {
	var errors []ValidationError

	if c.Render.NearClip <= 0 {
		errors = append(errors, ValidationError{
			Field:   "render.near_clip",
			Value:   c.Render.NearClip,
			Message: "must be positive",
		})
	}
	if c.Render.FarClip <= c.Render.NearClip {
		errors = append(errors, ValidationError{
			Field:   "render.far_clip",
			Value:   c.Render.FarClip,
			Message: "must be greater than render.near_clip",
		})
	}
	errors = append(errors, oneOf("render.blend_mode", c.Render.BlendMode, ValidBlendModes())...)

	return errors
}

func (c *Config) validateTracking() []ValidationError {
	var errors []ValidationError

	if c.Tracking.AvatarScale <= 0 {
		errors = append(errors, ValidationError{
			Field:   "tracking.avatar_scale",
			Value:   c.Tracking.AvatarScale,
			Message: "must be positive",
		})
	}
	if c.Tracking.YawTurnDegrees < -360 || c.Tracking.YawTurnDegrees > 360 {
		errors = append(errors, ValidationError{
			Field:   "tracking.yaw_turn_degrees",
			Value:   c.Tracking.YawTurnDegrees,
			Message: "must be between -360 and 360",
		})
	}

	return errors
}

func (c *Config) validateLoop() []ValidationError {
	var errors []ValidationError

	if c.Loop.RetryDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "loop.retry_delay_ms",
			Value:   c.Loop.RetryDelayMs,
			Message: "must be non-negative",
		})
	}
	if c.Loop.IdleHz <= 0 || c.Loop.IdleHz > 1000 {
		errors = append(errors, ValidationError{
			Field:   "loop.idle_hz",
			Value:   c.Loop.IdleHz,
			Message: "must be between 1 and 1000",
		})
	}
	if c.Loop.MaxFrameFailures < 0 {
		errors = append(errors, ValidationError{
			Field:   "loop.max_frame_failures",
			Value:   c.Loop.MaxFrameFailures,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateMonitor() []ValidationError {
	var errors []ValidationError

	if c.Monitor.RefreshMs < 16 {
		errors = append(errors, ValidationError{
			Field:   "monitor.refresh_ms",
			Value:   c.Monitor.RefreshMs,
			Message: "must be at least 16",
		})
	}
	if c.Monitor.EventBuffer <= 0 {
		errors = append(errors, ValidationError{
			Field:   "monitor.event_buffer",
			Value:   c.Monitor.EventBuffer,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
