package camera

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/enhancecam/enhancecam/internal/logger"
)

// X11Source grabs a screen region from the X server as the live video source
type X11Source struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo
	region image.Rectangle

	mu     sync.Mutex
	closed bool
}

// NewX11Source connects to the X server and prepares to grab the given
// region of the root window. An empty region selects the full screen.
func NewX11Source(region image.Rectangle) (*X11Source, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	if region.Empty() {
		region = image.Rect(0, 0, int(screen.WidthInPixels), int(screen.HeightInPixels))
	}

	logger.WithComponent("camera").Info().
		Str("region", region.String()).
		Msg("X11 source opened")

	return &X11Source{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
		region: region,
	}, nil
}

// Frame grabs the current content of the configured screen region
func (s *X11Source) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("source closed")
	}

	reply, err := xproto.GetImage(
		s.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(s.root),
		int16(s.region.Min.X), int16(s.region.Min.Y),
		uint16(s.region.Dx()), uint16(s.region.Dy()),
		0xffffffff,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	return s.convertImageData(reply.Data, s.region.Dx(), s.region.Dy()), nil
}

// Active reports whether the source can still deliver frames
func (s *X11Source) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Close disconnects from the X server; idempotent
func (s *X11Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.conn.Close()
	return nil
}

// convertImageData converts X11 ZPixmap data to RGBA
func (s *X11Source) convertImageData(data []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	depth := int(s.screen.RootDepth)

	if depth == 24 || depth == 32 {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := (y*width + x) * 4
				if i+3 < len(data) {
					// BGRA to RGBA
					img.Set(x, y, color.RGBA{
						R: data[i+2],
						G: data[i+1],
						B: data[i],
						A: 255,
					})
				}
			}
		}
	}

	return img
}
