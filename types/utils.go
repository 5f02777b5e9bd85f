package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewLockToken generates a fresh opaque lock token handle.
// The format follows the WebDAV opaquelocktoken URI scheme (RFC 4918).
func NewLockToken() LockToken {
	return LockToken("opaquelocktoken:" + uuid.NewString())
}

// FormatTimeout renders a remaining duration in the WebDAV timeout format,
// e.g. "Second-3600". A negative duration is clamped to zero.
func FormatTimeout(remaining time.Duration) string {
	secs := int64(remaining / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("Second-%d", secs)
}
