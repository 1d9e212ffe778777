package render

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/enhancecam/enhancecam/internal/stats"
)

// Controller composites frames onto the surface: it stretches the source to
// the surface's current dimensions and overlays the mode indicator and the
// live fps/latency figures.
type Controller struct {
	surface *Surface
	statsFn func() stats.ProcessingStats
}

// NewController creates a controller drawing onto the given surface.
// statsFn supplies the latest published stats for the overlay; it may be nil.
func NewController(surface *Surface, statsFn func() stats.ProcessingStats) *Controller {
	return &Controller{
		surface: surface,
		statsFn: statsFn,
	}
}

// DrawOriginal draws the raw camera frame, labeled so the viewer can tell it
// apart from the enhanced stream. Used while compare mode is held.
func (c *Controller) DrawOriginal(src image.Image) error {
	return c.draw(src, "ORIGINAL")
}

// DrawEnhanced draws a remotely enhanced frame
func (c *Controller) DrawEnhanced(src image.Image) error {
	return c.draw(src, "ENHANCED")
}

func (c *Controller) draw(src image.Image, label string) error {
	bounds := c.surface.Bounds()
	dst := image.NewRGBA(bounds)

	// Stretch/fit to the surface dimensions, never crop
	xdraw.ApproxBiLinear.Scale(dst, bounds, src, src.Bounds(), xdraw.Src, nil)

	drawLabel(dst, label, 8, 8)
	if c.statsFn != nil {
		if s := c.statsFn(); s.FPS > 0 {
			line := fmt.Sprintf("%.1f fps | %.0f ms | frame %d",
				s.FPS, s.ProcessingTimeMs, s.FrameCount)
			drawLabel(dst, line, 8, bounds.Dy()-24)
		}
	}

	return c.surface.Draw(dst)
}
