package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/enhancecam/enhancecam/internal/camera"
	"github.com/enhancecam/enhancecam/internal/capture"
	"github.com/enhancecam/enhancecam/internal/config"
	"github.com/enhancecam/enhancecam/internal/conn"
	"github.com/enhancecam/enhancecam/internal/protocol"
)

// fakeSocket feeds inbound messages from a channel; closing unblocks reads
type fakeSocket struct {
	inbound   chan []byte
	closeOnce sync.Once

	mu     sync.Mutex
	writes int
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{inbound: make(chan []byte, 16)}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	data, ok := <-s.inbound
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return websocket.TextMessage, data, nil
}

func (s *fakeSocket) WriteMessage(int, []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	return nil
}

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.inbound) })
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	dials int
	socks []*fakeSocket
}

func (d *fakeDialer) Dial(context.Context, string) (conn.Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	sock := newFakeSocket()
	d.socks = append(d.socks, sock)
	return sock, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) socket(i int) *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.socks[i]
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Capture.Width = 32
	cfg.Capture.Height = 24
	cfg.Capture.RefreshHz = 100
	cfg.Capture.Source = "test"
	cfg.Server.ReconnectDelayMs = 30
	return cfg
}

func enhancedMessage(t *testing.T, processingMs float64, frameCount uint64) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{128, 64, 32, 255})
		}
	}
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode test JPEG: %v", err)
	}
	raw, err := json.Marshal(protocol.InboundMessage{
		Type:             protocol.TypeEnhanced,
		Image:            protocol.EncodeJPEGDataURI(buf.Bytes()),
		ProcessingTimeMs: processingMs,
		FrameCount:       frameCount,
	})
	if err != nil {
		t.Fatalf("encode inbound message: %v", err)
	}
	return raw
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// Scenario: an inbound error message surfaces verbatim while the connection
// state and stats stay untouched.
func TestRemoteErrorSurfacedVerbatim(t *testing.T) {
	dialer := &fakeDialer{}
	s := NewStreamer(testConfig(), Options{Dialer: dialer})
	defer s.Teardown()

	s.Connect()
	waitUntil(t, time.Second, func() bool { return s.Status().Connection == "connected" })
	statsBefore := s.Stats()

	dialer.socket(0).inbound <- []byte(`{"type":"error","message":"OOM"}`)
	waitUntil(t, time.Second, func() bool { return s.Status().Error == "OOM" })

	if got := s.Status().Connection; got != "connected" {
		t.Errorf("remote error must not alter connection state, got %s", got)
	}
	if got := s.Stats(); got != statsBefore {
		t.Errorf("remote error must not alter stats: %+v", got)
	}
}

// Scenario: while compare is held no enhanced frame reaches the surface, yet
// the frames keep counting; the first enhanced frame after release is drawn.
func TestCompareModeSuppressesRenderingButCounts(t *testing.T) {
	dialer := &fakeDialer{}
	s := NewStreamer(testConfig(), Options{Dialer: dialer})
	defer s.Teardown()

	s.Connect()
	waitUntil(t, time.Second, func() bool { return s.Status().Connection == "connected" })
	sock := dialer.socket(0)

	s.SetCompare(true)
	sock.inbound <- enhancedMessage(t, 50, 1)
	sock.inbound <- enhancedMessage(t, 50, 2)

	// Give the async decode path a chance to (incorrectly) draw
	time.Sleep(50 * time.Millisecond)
	if s.Surface().Current() != nil {
		t.Fatal("enhanced frame drawn while compare mode active")
	}

	// Frames were still counted: after the stats window elapses, the next
	// message publishes a report covering the suppressed frames too
	time.Sleep(1100 * time.Millisecond)
	sock.inbound <- enhancedMessage(t, 50, 3)
	waitUntil(t, time.Second, func() bool { return s.Stats().FrameCount == 3 })
	if fps := s.Stats().FPS; fps <= 0 {
		t.Errorf("expected positive fps covering suppressed frames, got %v", fps)
	}

	// Released: the next enhanced frame must be drawn
	s.SetCompare(false)
	sock.inbound <- enhancedMessage(t, 50, 4)
	waitUntil(t, time.Second, func() bool { return s.Surface().Current() != nil })
}

// Scenario: the connection closes while streaming. The status flips to
// disconnected, streaming deactivates, and exactly one reconnect fires after
// the fixed delay.
func TestConnectionLossDeactivatesStreaming(t *testing.T) {
	dialer := &fakeDialer{}
	cfg := testConfig()
	s := NewStreamer(cfg, Options{
		Dialer: dialer,
		OpenSource: func(c config.CaptureConfig) (camera.Source, error) {
			return camera.NewTestPattern(c.Width, c.Height), nil
		},
		NewScheduler: func(int) capture.Scheduler { return capture.NewTickScheduler(200) },
	})
	defer s.Teardown()

	s.Connect()
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		st := s.Status()
		return st.Connection == "connected" && st.Streaming
	})

	dialer.socket(0).Close()
	waitUntil(t, time.Second, func() bool {
		st := s.Status()
		return st.Connection == "disconnected" || st.Connection == "connecting" || dialer.dialCount() > 1
	})
	waitUntil(t, time.Second, func() bool { return !s.Status().Streaming })

	// Exactly one reconnect
	waitUntil(t, time.Second, func() bool { return dialer.dialCount() == 2 })
	time.Sleep(3 * cfg.Server.ReconnectDelay())
	if dialer.dialCount() != 2 {
		t.Errorf("duplicate reconnect attempts: %d dials", dialer.dialCount())
	}
}

func TestCameraFailureIsTerminalForSession(t *testing.T) {
	dialer := &fakeDialer{}
	s := NewStreamer(testConfig(), Options{
		Dialer: dialer,
		OpenSource: func(config.CaptureConfig) (camera.Source, error) {
			return nil, errors.New("permission denied")
		},
	})
	defer s.Teardown()

	if err := s.Start(); err == nil {
		t.Fatal("expected Start to fail when the camera is unavailable")
	}

	st := s.Status()
	if st.Streaming {
		t.Error("streaming must stay inactive after camera failure")
	}
	if st.Error == "" {
		t.Error("camera failure must be surfaced to the user")
	}
}

func TestStopAndTeardownIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	s := NewStreamer(testConfig(), Options{
		Dialer: dialer,
		OpenSource: func(c config.CaptureConfig) (camera.Source, error) {
			return camera.NewTestPattern(c.Width, c.Height), nil
		},
	})

	s.Connect()
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s.Stop()
	s.Stop()
	waitUntil(t, time.Second, func() bool { return !s.Status().Streaming })

	s.Teardown()
	s.Teardown()
	if got := s.Status().Connection; got != "disconnected" {
		t.Errorf("expected disconnected after teardown, got %s", got)
	}
}

// stepScheduler drives a capture loop one tick at a time
type stepScheduler struct {
	ch chan time.Time
}

func newStepScheduler() *stepScheduler { return &stepScheduler{ch: make(chan time.Time)} }

func (s *stepScheduler) Next() <-chan time.Time { return s.ch }
func (s *stepScheduler) Stop()                  {}
func (s *stepScheduler) tick()                  { s.ch <- time.Time{} }

// After a quick stop/start, the first session's loop is still parked on its
// scheduler. When it finally observes its closed source and exits, it must
// not clear the streaming flag now owned by the second session.
func TestStaleLoopExitDoesNotDisturbRestartedSession(t *testing.T) {
	scheds := []*stepScheduler{newStepScheduler(), newStepScheduler()}

	var mu sync.Mutex
	opened := 0
	handed := 0
	s := NewStreamer(testConfig(), Options{
		Dialer: &fakeDialer{},
		OpenSource: func(c config.CaptureConfig) (camera.Source, error) {
			mu.Lock()
			defer mu.Unlock()
			opened++
			return camera.NewTestPattern(c.Width, c.Height), nil
		},
		NewScheduler: func(int) capture.Scheduler {
			mu.Lock()
			defer mu.Unlock()
			sched := scheds[handed]
			handed++
			return sched
		},
	})
	defer s.Teardown()

	if err := s.Start(); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	s.Stop()
	if err := s.Start(); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	// One tick lets the first session's loop see its closed source and exit
	scheds[0].tick()

	time.Sleep(20 * time.Millisecond)
	if !s.Status().Streaming {
		t.Fatal("exiting first-session loop cleared the second session's streaming flag")
	}

	// The second session still owns the camera: Start stays a no-op
	if err := s.Start(); err != nil {
		t.Fatalf("third Start failed: %v", err)
	}
	mu.Lock()
	if opened != 2 {
		t.Errorf("expected two camera acquisitions, got %d", opened)
	}
	mu.Unlock()

	// Let the second session's loop exit cleanly
	s.Stop()
	scheds[1].tick()
}

func TestStartWhileStreamingIsNoop(t *testing.T) {
	opened := 0
	s := NewStreamer(testConfig(), Options{
		Dialer: &fakeDialer{},
		OpenSource: func(c config.CaptureConfig) (camera.Source, error) {
			opened++
			return camera.NewTestPattern(c.Width, c.Height), nil
		},
	})
	defer s.Teardown()

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if opened != 1 {
		t.Errorf("expected a single camera acquisition, got %d", opened)
	}
}
