// Package protocol defines the JSON messages exchanged with the enhancement
// service over the WebSocket connection. All messages are text frames tagged
// with a "type" field.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message type tags
const (
	TypeFrame    = "frame"    // client -> server: one captured frame
	TypeEnhanced = "enhanced" // server -> client: processed frame
	TypeError    = "error"    // server -> client: processing failure
)

// FrameMessage is the outbound payload carrying one encoded frame.
// It is created once per captured frame, owned solely by the send path,
// and discarded after transmission. Stale frames are never resent.
type FrameMessage struct {
	Type  string `json:"type"`
	Image string `json:"image"`
}

// NewFrameMessage wraps JPEG bytes as an outbound frame message
func NewFrameMessage(jpegData []byte) FrameMessage {
	return FrameMessage{
		Type:  TypeFrame,
		Image: EncodeJPEGDataURI(jpegData),
	}
}

// Encode serializes the frame message to a JSON text frame
func (m FrameMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame message: %w", err)
	}
	return data, nil
}

// InboundMessage is the tagged union of everything the service sends back.
// Which fields are meaningful depends on Type: TypeEnhanced carries Image,
// ProcessingTimeMs and FrameCount; TypeError carries Message.
type InboundMessage struct {
	Type             string  `json:"type"`
	Image            string  `json:"image,omitempty"`
	ProcessingTimeMs float64 `json:"processing_time_ms,omitempty"`
	FrameCount       uint64  `json:"frame_count,omitempty"`
	Message          string  `json:"message,omitempty"`
}

// ParseInbound decodes a single inbound text frame. Messages that fail to
// parse or carry an unknown type are rejected; the caller logs and drops them.
func ParseInbound(data []byte) (*InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}

	switch msg.Type {
	case TypeEnhanced:
		if msg.Image == "" {
			return nil, fmt.Errorf("enhanced message without image")
		}
	case TypeError:
		// Message text may legitimately be empty
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}

	return &msg, nil
}
