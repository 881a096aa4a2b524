package driver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Iron-Ham/xrloop/internal/config"
	"github.com/Iron-Ham/xrloop/internal/frame"
	"github.com/Iron-Ham/xrloop/internal/instance"
	"github.com/Iron-Ham/xrloop/internal/session"
	"github.com/Iron-Ham/xrloop/internal/xr"
)

// InstanceOptions maps the runtime section onto instance descriptor fields.
func InstanceOptions(cfg *config.Config) instance.Options {
	return instance.Options{
		ApplicationName:    cfg.Runtime.ApplicationName,
		ApplicationVersion: uint32(cfg.Runtime.ApplicationVersion),
		EngineName:         cfg.Runtime.EngineName,
		EngineVersion:      uint32(cfg.Runtime.EngineVersion),
	}
}

// SessionOptions maps the session section onto bring-up options. The
// configured swapchain format is preferred; the other supported format is
// kept as a fallback.
func SessionOptions(cfg *config.Config) session.Options {
	opts := session.DefaultOptions()

	if cfg.Session.FormFactor == "handheld" {
		opts.FormFactor = xr.FormFactorHandheldDisplay
	}
	if cfg.Session.ViewConfiguration == "mono" {
		opts.ViewConfiguration = xr.ViewConfigurationPrimaryMono
	}
	if cfg.Session.PrimarySpace == "local" {
		opts.PrimarySpace = xr.ReferenceSpaceLocal
	}
	if cfg.Session.SwapchainFormat == "rgba8" {
		opts.Formats = []int64{session.FormatRGBA8, session.FormatSRGB8Alpha8}
	}
	if cfg.Session.SampleCount > 0 {
		opts.SampleCount = uint32(cfg.Session.SampleCount)
	}
	return opts
}

// BlendMode maps render.blend_mode.
func BlendMode(name string) xr.EnvironmentBlendMode {
	switch name {
	case "additive":
		return xr.EnvironmentBlendModeAdditive
	case "alpha_blend":
		return xr.EnvironmentBlendModeAlphaBlend
	default:
		return xr.EnvironmentBlendModeOpaque
	}
}

// Tracking maps the tracking section, converting the yaw turn to radians.
func Tracking(cfg config.TrackingConfig) frame.Tracking {
	return frame.Tracking{
		Offset:  mgl64.Vec3{cfg.OffsetX, cfg.OffsetY, cfg.OffsetZ},
		Scale:   cfg.AvatarScale,
		YawTurn: cfg.YawTurnDegrees * math.Pi / 180,
	}
}
