package service

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/roomquest/idverify/internal/domain"
)

// minImageBytes rejects obviously-empty payloads before they reach storage
// or the face provider. A real JPEG frame is never this small.
const minImageBytes = 1000

// decodeImagePayload turns a client-submitted base64 string into raw image
// bytes. Frontends send either bare base64 or a data URL
// ("data:image/jpeg;base64,...."); the scheme header is stripped if present.
func decodeImagePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrInvalidImage)
	}

	if strings.HasPrefix(payload, "data:image/") {
		idx := strings.Index(payload, "base64,")
		if idx < 0 {
			return nil, fmt.Errorf("%w: unsupported data URL encoding", domain.ErrInvalidImage)
		}
		payload = payload[idx+len("base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients URL-safe encode camera captures.
		data, err = base64.RawURLEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: not valid base64", domain.ErrInvalidImage)
		}
	}

	if len(data) < minImageBytes {
		return nil, fmt.Errorf("%w: image too small (%d bytes)", domain.ErrInvalidImage, len(data))
	}
	return data, nil
}
