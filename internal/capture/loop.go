// Package capture pulls frames from the live camera source at display
// refresh cadence, downsamples and encodes them, and hands the encoded
// payloads to the connection for transmission.
package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"

	"github.com/rs/zerolog"

	"github.com/enhancecam/enhancecam/internal/camera"
	"github.com/enhancecam/enhancecam/internal/config"
	"github.com/enhancecam/enhancecam/internal/logger"
)

// Sink receives encoded frame payloads; conn.Manager satisfies it
type Sink interface {
	Send(payload []byte)
}

// RawRenderer draws the raw camera frame to the output surface while compare
// mode is active; render.Controller satisfies it.
type RawRenderer interface {
	DrawOriginal(src image.Image) error
}

// Loop produces a steady stream of encoded frames from the camera source.
// Its only exit condition is the source becoming inactive; a single bad frame
// never stops it.
type Loop struct {
	source  camera.Source
	sched   Scheduler
	sink    Sink
	raw     RawRenderer
	compare func() bool
	cfg     config.CaptureConfig
	log     *zerolog.Logger

	skip int
	buf  *image.RGBA // offscreen buffer at capture resolution, reused per step
}

// New creates a capture loop. compare must read the flag's latest value on
// every call; it is consulted once per step, never captured at loop start.
func New(source camera.Source, sched Scheduler, sink Sink, raw RawRenderer, compare func() bool, cfg config.CaptureConfig) *Loop {
	return &Loop{
		source:  source,
		sched:   sched,
		sink:    sink,
		raw:     raw,
		compare: compare,
		cfg:     cfg,
		log:     logger.WithComponent("capture"),
		buf:     image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
	}
}

// Run blocks, executing one capture step per frame opportunity until the
// source reports inactive. It always reschedules after a failed step.
func (l *Loop) Run() {
	defer l.sched.Stop()
	l.log.Info().
		Int("width", l.cfg.Width).
		Int("height", l.cfg.Height).
		Int("quality", l.cfg.Quality).
		Int("frame_skip", l.cfg.FrameSkip).
		Msg("Capture loop started")

	for range l.sched.Next() {
		if !l.source.Active() {
			l.log.Info().Msg("Source inactive, capture loop exiting")
			return
		}

		if l.cfg.FrameSkip > 0 {
			if l.skip < l.cfg.FrameSkip {
				l.skip++
				continue
			}
			l.skip = 0
		}

		if err := l.step(); err != nil {
			l.log.Warn().Err(err).Msg("Capture step failed, continuing")
		}
	}
}

// step grabs, downsamples, encodes and sends one frame
func (l *Loop) step() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capture step panic: %v", r)
		}
	}()

	frame, err := l.source.Frame()
	if err != nil {
		return fmt.Errorf("failed to grab frame: %w", err)
	}

	// Downsample into the offscreen buffer at the capture resolution
	xdraw.ApproxBiLinear.Scale(l.buf, l.buf.Bounds(), frame, frame.Bounds(), xdraw.Src, nil)

	// In compare mode the raw frame goes straight to the output surface,
	// bypassing the remote round trip for this step
	if l.compare() && l.raw != nil {
		if derr := l.raw.DrawOriginal(frame); derr != nil {
			l.log.Warn().Err(derr).Msg("Compare-mode draw failed")
		}
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, l.buf, &jpeg.Options{Quality: l.cfg.Quality}); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	payload, err := newFramePayload(buf.Bytes())
	if err != nil {
		return err
	}
	l.sink.Send(payload)
	return nil
}
