package conn

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// Socket is the minimal surface the Manager needs from an established
// connection. *websocket.Conn satisfies it; tests inject fakes.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a connection to the enhancement service. It exists so tests
// can simulate socket events deterministically.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// WebsocketDialer is the production dialer backed by gorilla/websocket
type WebsocketDialer struct{}

// Dial opens a WebSocket connection to the given URL
func (WebsocketDialer) Dial(ctx context.Context, url string) (Socket, error) {
	sock, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return sock, nil
}
