package render

import (
	"bufio"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/enhancecam/enhancecam/internal/stats"
)

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestControllerStretchesToSurfaceDimensions(t *testing.T) {
	surface := NewSurface(64, 48)
	ctrl := NewController(surface, nil)

	// Source smaller than the surface: must be stretched, not cropped
	src := solidFrame(16, 16, color.RGBA{200, 10, 10, 255})
	if err := ctrl.DrawEnhanced(src); err != nil {
		t.Fatalf("DrawEnhanced failed: %v", err)
	}

	cur := surface.Current()
	if cur == nil {
		t.Fatal("surface has no current frame after draw")
	}
	if got := cur.Bounds(); got.Dx() != 64 || got.Dy() != 48 {
		t.Fatalf("frame not at surface dimensions: %v", got)
	}

	// A pixel away from the overlay labels carries the source color
	r, g, b, _ := cur.At(60, 40).RGBA()
	if r>>8 < 150 || g>>8 > 60 || b>>8 > 60 {
		t.Errorf("stretched frame lost source color: r=%d g=%d b=%d", r>>8, g>>8, b>>8)
	}
}

func TestDrawOriginalOverlaysLabel(t *testing.T) {
	surface := NewSurface(64, 48)
	ctrl := NewController(surface, nil)

	src := solidFrame(64, 48, color.RGBA{0, 200, 0, 255})
	if err := ctrl.DrawOriginal(src); err != nil {
		t.Fatalf("DrawOriginal failed: %v", err)
	}

	// The label background darkens pixels in the top-left corner
	cur := surface.Current()
	r, g, _, _ := cur.At(10, 12).RGBA()
	if g>>8 > 170 && r>>8 < 30 {
		t.Error("expected label overlay to modify the top-left corner")
	}
}

func TestStatsOverlayDrawnWhenPublished(t *testing.T) {
	surface := NewSurface(64, 48)
	published := stats.ProcessingStats{FPS: 8.3, ProcessingTimeMs: 50, FrameCount: 10}
	ctrl := NewController(surface, func() stats.ProcessingStats { return published })

	src := solidFrame(64, 48, color.RGBA{0, 0, 200, 255})
	if err := ctrl.DrawEnhanced(src); err != nil {
		t.Fatalf("DrawEnhanced failed: %v", err)
	}

	// The stats line modifies pixels near the bottom-left corner, either by
	// the translucent background or by a glyph
	cur := surface.Current()
	if got := cur.RGBAAt(10, 28); got == (color.RGBA{0, 0, 200, 255}) {
		t.Error("expected stats overlay to modify the bottom-left corner")
	}
}

func TestLastDrawWinsOnSharedSurface(t *testing.T) {
	surface := NewSurface(8, 8)

	red := solidFrame(8, 8, color.RGBA{255, 0, 0, 255})
	blue := solidFrame(8, 8, color.RGBA{0, 0, 255, 255})

	if err := surface.Draw(red); err != nil {
		t.Fatal(err)
	}
	if err := surface.Draw(blue); err != nil {
		t.Fatal(err)
	}

	_, _, b, _ := surface.Current().At(4, 4).RGBA()
	if b>>8 < 200 {
		t.Error("expected the last draw to win on the shared surface")
	}
}

func TestStreamHandlerServesMJPEG(t *testing.T) {
	surface := NewSurface(16, 16)
	defer surface.Close()

	srv := httptest.NewServer(surface.StreamHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET stream failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "multipart/x-mixed-replace") {
		t.Fatalf("unexpected content type: %s", ct)
	}

	// Wait for the client to register, then push one frame
	deadline := time.Now().Add(time.Second)
	for surface.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("viewer never registered")
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err := surface.Draw(solidFrame(16, 16, color.RGBA{128, 128, 128, 255})); err != nil {
		t.Fatal(err)
	}

	reader := bufio.NewReader(resp.Body)
	header, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		t.Fatalf("read stream: %v", err)
	}
	if !strings.HasPrefix(header, "--frame") {
		t.Fatalf("expected multipart boundary, got %q", header)
	}
}

func TestCloseDisconnectsViewers(t *testing.T) {
	surface := NewSurface(16, 16)

	srv := httptest.NewServer(surface.StreamHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET stream failed: %v", err)
	}
	defer resp.Body.Close()

	deadline := time.Now().Add(time.Second)
	for surface.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("viewer never registered")
		}
		time.Sleep(2 * time.Millisecond)
	}

	surface.Close()
	surface.Close() // idempotent

	if _, err := io.ReadAll(resp.Body); err != nil {
		t.Fatalf("stream did not terminate cleanly: %v", err)
	}
	if surface.ClientCount() != 0 {
		t.Errorf("expected zero viewers after close, got %d", surface.ClientCount())
	}
}
