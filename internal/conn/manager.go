// Package conn owns the socket lifecycle to the enhancement service:
// connect, send, receive, detect closure, and reconnect with a fixed backoff.
package conn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/enhancecam/enhancecam/internal/logger"
	"github.com/enhancecam/enhancecam/internal/protocol"
)

// DefaultReconnectDelay is the fixed delay before re-attempting a lost
// connection.
const DefaultReconnectDelay = 3 * time.Second

// MessageHandler receives each parsed inbound message as it arrives
type MessageHandler func(msg *protocol.InboundMessage)

// Options tunes the Manager. Zero values select production defaults.
type Options struct {
	Dialer         Dialer
	ReconnectDelay time.Duration
	OnStateChange  func(State)
}

// Manager maintains exactly one logical connection to the remote service,
// recovering automatically from loss. A single pending reconnect timer exists
// at any time: scheduling a new one always cancels the previous one first.
type Manager struct {
	url            string
	dialer         Dialer
	handler        MessageHandler
	reconnectDelay time.Duration
	onStateChange  func(State)
	log            *zerolog.Logger

	mu             sync.Mutex
	state          State
	sock           Socket
	gen            uint64 // connection generation; stale read loops are ignored
	reconnectTimer *time.Timer
	closed         bool
	lastErr        string
}

// NewManager creates a connection manager for the given WebSocket URL.
// Inbound messages are handed to handler as they arrive.
func NewManager(url string, handler MessageHandler, opts Options) *Manager {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	return &Manager{
		url:            url,
		dialer:         dialer,
		handler:        handler,
		reconnectDelay: delay,
		onStateChange:  opts.OnStateChange,
		log:            logger.WithComponent("conn"),
	}
}

// Connect opens a new connection to the service. On success the state becomes
// Connected and any previous error is cleared; on failure an error describing
// the unreachable backend is surfaced and a reconnect is scheduled.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.closed || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.cancelReconnectLocked()
	m.state = StateConnecting
	m.mu.Unlock()
	m.notify(StateConnecting)

	m.log.Debug().Str("url", m.url).Msg("Dialing enhancement service")
	sock, err := m.dialer.Dial(context.Background(), m.url)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if sock != nil {
			_ = sock.Close()
		}
		return
	}
	if err != nil {
		m.state = StateDisconnected
		m.lastErr = fmt.Sprintf("enhancement backend unreachable at %s", m.url)
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		m.log.Warn().Err(err).
			Dur("retry_in", m.reconnectDelay).
			Msg("Connection attempt failed")
		m.notify(StateDisconnected)
		return
	}

	m.sock = sock
	m.state = StateConnected
	m.lastErr = ""
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.log.Info().Str("url", m.url).Msg("Connected to enhancement service")
	m.notify(StateConnected)
	go m.readLoop(sock, gen)
}

// Send transmits a payload as a text frame. It no-ops silently unless the
// connection is Connected: frames are dropped outright while disconnected,
// never buffered or retried.
func (m *Manager) Send(payload []byte) {
	m.mu.Lock()
	if m.state != StateConnected || m.sock == nil {
		m.mu.Unlock()
		return
	}
	sock := m.sock
	gen := m.gen
	m.mu.Unlock()

	if err := sock.WriteMessage(websocket.TextMessage, payload); err != nil {
		m.log.Warn().Err(err).Msg("Write failed, dropping frame")
		m.handleClosed(gen, err)
	}
}

// State returns the current connection state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the connectivity error surface text, empty when the last
// connection attempt succeeded.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Teardown cancels any pending reconnect and closes the connection if open.
// It is idempotent; after teardown the manager never reconnects.
func (m *Manager) Teardown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancelReconnectLocked()
	sock := m.sock
	m.sock = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if sock != nil {
		_ = sock.Close()
	}
	m.log.Info().Msg("Connection manager torn down")
}

// readLoop is push-driven receive: each inbound message is parsed and handed
// to the handler. Malformed messages are logged and dropped, never fatal.
func (m *Manager) readLoop(sock Socket, gen uint64) {
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			m.handleClosed(gen, err)
			return
		}

		msg, perr := protocol.ParseInbound(data)
		if perr != nil {
			m.log.Warn().Err(perr).Msg("Dropping unparseable message")
			continue
		}
		if m.handler != nil {
			m.handler(msg)
		}
	}
}

// handleClosed transitions to Disconnected and schedules one reconnect.
// Events from superseded connections (stale generation) are ignored so a
// slow-dying read loop cannot disturb a newer connection.
func (m *Manager) handleClosed(gen uint64, cause error) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	// The write path and the read loop can both report the same loss;
	// bumping the generation makes the second report stale.
	m.gen++
	if m.sock != nil {
		_ = m.sock.Close()
		m.sock = nil
	}
	m.state = StateDisconnected
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	m.log.Warn().Err(cause).
		Dur("retry_in", m.reconnectDelay).
		Msg("Connection lost, reconnect scheduled")
	m.notify(StateDisconnected)
}

func (m *Manager) scheduleReconnectLocked() {
	m.cancelReconnectLocked()
	m.reconnectTimer = time.AfterFunc(m.reconnectDelay, m.Connect)
}

func (m *Manager) cancelReconnectLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) notify(s State) {
	if m.onStateChange != nil {
		m.onStateChange(s)
	}
}
