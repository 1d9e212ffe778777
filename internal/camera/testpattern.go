package camera

import (
	"image"
	"image/color"
	"sync"
)

// TestPattern is a synthetic source producing a moving gradient. It stands in
// for a real camera in demos and tests.
type TestPattern struct {
	width  int
	height int

	mu     sync.Mutex
	tick   int
	closed bool
}

// NewTestPattern creates a synthetic source at the given resolution
func NewTestPattern(width, height int) *TestPattern {
	return &TestPattern{width: width, height: height}
}

// Frame renders the next gradient frame
func (p *TestPattern) Frame() (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	shift := p.tick % 256
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x + shift) % 256),
				G: uint8((y + shift) % 256),
				B: uint8(shift),
				A: 255,
			})
		}
	}
	p.tick++
	return img, nil
}

// Active reports whether the pattern is still producing frames
func (p *TestPattern) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

// Close stops the pattern; idempotent
func (p *TestPattern) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
