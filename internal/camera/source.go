// Package camera provides local video sources for the capture pipeline.
package camera

import (
	"fmt"
	"image"

	"github.com/enhancecam/enhancecam/internal/config"
)

// Source is the capability interface for a live video source. The capture
// loop reads frames until the source reports inactive; test doubles can
// simulate camera frames deterministically.
type Source interface {
	// Frame grabs the current frame from the source
	Frame() (image.Image, error)

	// Active reports whether the source is still delivering frames.
	// The capture loop exits quietly once this returns false.
	Active() bool

	// Close releases the source; idempotent
	Close() error
}

// Open creates the source named by the capture configuration
func Open(cfg config.CaptureConfig) (Source, error) {
	switch cfg.Source {
	case "x11", "":
		region := image.Rect(cfg.RegionX, cfg.RegionY,
			cfg.RegionX+cfg.RegionWidth, cfg.RegionY+cfg.RegionHeight)
		return NewX11Source(region)
	case "test":
		return NewTestPattern(cfg.Width, cfg.Height), nil
	default:
		return nil, fmt.Errorf("unknown capture source %q", cfg.Source)
	}
}
