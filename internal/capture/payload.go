package capture

import (
	"fmt"

	"github.com/enhancecam/enhancecam/internal/protocol"
)

// newFramePayload wraps encoded JPEG bytes as an outbound wire payload
func newFramePayload(jpegData []byte) ([]byte, error) {
	payload, err := protocol.NewFrameMessage(jpegData).Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to build frame payload: %w", err)
	}
	return payload, nil
}
