package protocol

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const jpegDataURIPrefix = "data:image/jpeg;base64,"

// EncodeJPEGDataURI wraps raw JPEG bytes as a base64 data URI, the
// transport-safe string encoding used on the wire.
func EncodeJPEGDataURI(data []byte) string {
	return jpegDataURIPrefix + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI extracts the raw image bytes from a base64 data URI.
// Any image media type is accepted; only the base64 encoding is required.
func DecodeDataURI(uri string) ([]byte, error) {
	idx := strings.Index(uri, ",")
	if idx < 0 || !strings.HasPrefix(uri, "data:") {
		return nil, fmt.Errorf("not a data URI")
	}
	meta := uri[:idx]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("unsupported data URI encoding: %s", meta)
	}

	data, err := base64.StdEncoding.DecodeString(uri[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return data, nil
}
