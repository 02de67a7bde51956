package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no blob exists under the requested key.
var ErrNotFound = errors.New("blob not found")

// BlobStore is the abstract image store. Writes to an existing key overwrite,
// which is how document/selfie retakes work.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// DocumentKey and SelfieKey name the blob slots for one guest within a
// session. Slot history lives entirely in these key names.
func DocumentKey(sessionToken string, guestIndex int) string {
	return fmt.Sprintf("%s/document_%d.jpg", sessionToken, guestIndex)
}

func SelfieKey(sessionToken string, guestIndex int) string {
	return fmt.Sprintf("%s/selfie_%d.jpg", sessionToken, guestIndex)
}
