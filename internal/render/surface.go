// Package render owns the output surface and arbitrates between the two draw
// sources: the raw camera frame (compare mode) and the remotely enhanced
// frame. Pure presentation; no protocol logic.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/enhancecam/enhancecam/internal/logger"
)

// Surface is the output surface, exposed to viewers as a Motion JPEG stream
// over HTTP. Slow clients skip frames instead of applying backpressure.
type Surface struct {
	width  int
	height int

	frameMu  sync.RWMutex
	current  *image.RGBA
	lastDraw time.Time

	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}
	closed    bool
}

// NewSurface creates an output surface with fixed dimensions
func NewSurface(width, height int) *Surface {
	return &Surface{
		width:   width,
		height:  height,
		clients: make(map[chan []byte]struct{}),
	}
}

// Bounds returns the surface dimensions
func (s *Surface) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.width, s.height)
}

// Draw replaces the surface content and broadcasts it to connected viewers.
// The image must already be composited at surface dimensions. Whichever draw
// completes last wins; there is no sequencing between draw sources.
func (s *Surface) Draw(img *image.RGBA) error {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("failed to encode surface frame: %w", err)
	}
	jpegData := buf.Bytes()

	s.frameMu.Lock()
	s.current = img
	s.lastDraw = time.Now()
	s.frameMu.Unlock()

	s.clientsMu.RLock()
	for ch := range s.clients {
		select {
		case ch <- jpegData:
		default:
			// Client is slow, skip this frame
		}
	}
	s.clientsMu.RUnlock()

	return nil
}

// Current returns the most recently drawn frame, nil before the first draw
func (s *Surface) Current() *image.RGBA {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	return s.current
}

// LastDraw returns when the surface was last drawn to
func (s *Surface) LastDraw() time.Time {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	return s.lastDraw
}

// ClientCount returns the number of connected viewers
func (s *Surface) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Close disconnects all viewers; further draws are not broadcast
func (s *Surface) Close() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.clients {
		close(ch)
	}
	s.clients = make(map[chan []byte]struct{})
}

// StreamHandler returns an http.Handler serving the surface as an MJPEG
// stream, suitable for mounting at /stream.
func (s *Surface) StreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Connection", "close")

		frameChan := make(chan []byte, 2)

		s.clientsMu.Lock()
		if s.closed {
			s.clientsMu.Unlock()
			http.Error(w, "surface closed", http.StatusServiceUnavailable)
			return
		}
		s.clients[frameChan] = struct{}{}
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		log := logger.WithComponent("render")
		log.Info().Int("clients", clientCount).Msg("Viewer connected")

		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, frameChan)
			remaining := len(s.clients)
			s.clientsMu.Unlock()
			log.Info().Int("clients", remaining).Msg("Viewer disconnected")
		}()

		for jpegData := range frameChan {
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpegData)); err != nil {
				return
			}
			if _, err := w.Write(jpegData); err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}
