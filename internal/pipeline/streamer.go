// Package pipeline wires the capture loop, the connection, the response
// handling, the stats aggregation and the render controller into one
// streaming session.
package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/enhancecam/enhancecam/internal/camera"
	"github.com/enhancecam/enhancecam/internal/capture"
	"github.com/enhancecam/enhancecam/internal/config"
	"github.com/enhancecam/enhancecam/internal/conn"
	"github.com/enhancecam/enhancecam/internal/logger"
	"github.com/enhancecam/enhancecam/internal/protocol"
	"github.com/enhancecam/enhancecam/internal/render"
	"github.com/enhancecam/enhancecam/internal/stats"
)

// Status is the user-visible pipeline state: connection indicator, streaming
// flag, compare flag and the error banner text.
type Status struct {
	Connection string `json:"connection"`
	Streaming  bool   `json:"streaming"`
	Compare    bool   `json:"compare"`
	Error      string `json:"error,omitempty"`
}

// Options overrides pipeline collaborators; zero values select production
// defaults. Tests inject camera, scheduler and dialer doubles here.
type Options struct {
	OpenSource   func(config.CaptureConfig) (camera.Source, error)
	NewScheduler func(refreshHz int) capture.Scheduler
	Dialer       conn.Dialer
}

// Streamer owns one streaming session end to end
type Streamer struct {
	cfg     *config.Config
	conn    *conn.Manager
	agg     *stats.Aggregator
	surface *render.Surface
	ctrl    *render.Controller
	log     *zerolog.Logger

	openSource   func(config.CaptureConfig) (camera.Source, error)
	newScheduler func(refreshHz int) capture.Scheduler

	// compare is a single shared cell read fresh inside every capture step
	// and every inbound message, never captured by value
	compare atomic.Bool

	mu        sync.Mutex
	streaming bool
	source    camera.Source
	errBanner string
}

// NewStreamer builds the pipeline around the given configuration
func NewStreamer(cfg *config.Config, opts Options) *Streamer {
	s := &Streamer{
		cfg:          cfg,
		agg:          stats.NewAggregator(),
		surface:      render.NewSurface(cfg.Capture.Width, cfg.Capture.Height),
		log:          logger.WithComponent("pipeline"),
		openSource:   opts.OpenSource,
		newScheduler: opts.NewScheduler,
	}
	if s.openSource == nil {
		s.openSource = camera.Open
	}
	if s.newScheduler == nil {
		s.newScheduler = capture.NewTickScheduler
	}

	s.ctrl = render.NewController(s.surface, s.agg.Snapshot)
	s.conn = conn.NewManager(cfg.Server.URL(), s.handleMessage, conn.Options{
		Dialer:         opts.Dialer,
		ReconnectDelay: cfg.Server.ReconnectDelay(),
		OnStateChange:  s.handleStateChange,
	})

	return s
}

// Connect starts the connection lifecycle; reconnection is automatic from
// here on.
func (s *Streamer) Connect() {
	s.conn.Connect()
}

// Start acquires the camera and begins the capture loop. A camera failure is
// terminal for the session: it is surfaced to the user and streaming stays
// inactive until the next start attempt.
func (s *Streamer) Start() error {
	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return nil
	}

	source, err := s.openSource(s.cfg.Capture)
	if err != nil {
		s.errBanner = fmt.Sprintf("camera unavailable: %v", err)
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("Failed to acquire camera")
		return fmt.Errorf("failed to acquire camera: %w", err)
	}

	s.source = source
	s.streaming = true
	s.errBanner = ""
	s.agg.Reset()
	s.mu.Unlock()

	loop := capture.New(source, s.newScheduler(s.cfg.Capture.RefreshHz),
		s.conn, s.ctrl, s.compare.Load, s.cfg.Capture)
	go func() {
		loop.Run()
		s.mu.Lock()
		// A stale loop exiting after a quick stop/start must not disturb
		// the replacement session; only the current owner clears the flag.
		if s.source == source {
			s.streaming = false
			s.source = nil
		}
		s.mu.Unlock()
	}()

	s.log.Info().Msg("Streaming started")
	return nil
}

// Stop releases the camera; the capture loop observes the inactive source on
// its next scheduled step and exits. Idempotent.
func (s *Streamer) Stop() {
	s.mu.Lock()
	source := s.source
	s.source = nil
	wasStreaming := s.streaming
	s.streaming = false
	s.mu.Unlock()

	if source != nil {
		if err := source.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close camera source")
		}
	}
	if wasStreaming {
		s.log.Info().Msg("Streaming stopped")
	}
}

// SetCompare sets the momentary compare flag: true while the control is
// held, false on release.
func (s *Streamer) SetCompare(pressed bool) {
	s.compare.Store(pressed)
}

// Status reports the user-visible pipeline state
func (s *Streamer) Status() Status {
	s.mu.Lock()
	banner := s.errBanner
	streaming := s.streaming
	s.mu.Unlock()

	if banner == "" {
		banner = s.conn.LastError()
	}

	return Status{
		Connection: s.conn.State().String(),
		Streaming:  streaming,
		Compare:    s.compare.Load(),
		Error:      banner,
	}
}

// Stats returns the last published processing stats
func (s *Streamer) Stats() stats.ProcessingStats {
	return s.agg.Snapshot()
}

// Surface exposes the output surface for mounting its stream handler
func (s *Streamer) Surface() *render.Surface {
	return s.surface
}

// Teardown stops streaming and shuts the connection down; idempotent
func (s *Streamer) Teardown() {
	s.Stop()
	s.conn.Teardown()
	s.surface.Close()
}

// handleMessage routes one inbound protocol message
func (s *Streamer) handleMessage(msg *protocol.InboundMessage) {
	switch msg.Type {
	case protocol.TypeEnhanced:
		// The frame is counted even when compare mode suppresses rendering,
		// so the frame counter stays continuous
		s.agg.Record(msg.ProcessingTimeMs, msg.FrameCount)
		if s.compare.Load() {
			return
		}
		go s.decodeAndDraw(msg.Image)

	case protocol.TypeError:
		s.log.Warn().Str("message", msg.Message).Msg("Service reported an error")
		s.setError(msg.Message)
	}
}

// decodeAndDraw decodes an enhanced frame asynchronously and draws it on
// completion. Decodes may finish out of order; a late decode overwriting the
// surface with a staler frame is accepted.
func (s *Streamer) decodeAndDraw(dataURI string) {
	img, err := decodeFrame(dataURI)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to decode enhanced frame")
		return
	}
	if err := s.ctrl.DrawEnhanced(img); err != nil {
		s.log.Warn().Err(err).Msg("Failed to draw enhanced frame")
	}
}

// handleStateChange reacts to connection transitions: losing the connection
// while streaming deactivates the stream (the reconnect stays scheduled).
func (s *Streamer) handleStateChange(st conn.State) {
	s.log.Debug().Str("state", st.String()).Msg("Connection state changed")
	if st == conn.StateDisconnected {
		s.Stop()
	}
}

func (s *Streamer) setError(message string) {
	s.mu.Lock()
	s.errBanner = message
	s.mu.Unlock()
}

// decodeFrame extracts and decodes the JPEG image embedded in a data URI
func decodeFrame(dataURI string) (image.Image, error) {
	data, err := protocol.DecodeDataURI(dataURI)
	if err != nil {
		return nil, err
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode JPEG: %w", err)
	}
	return img, nil
}
