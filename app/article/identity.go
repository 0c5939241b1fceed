package article

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// PlaceholderID derives a stable identity for an article that arrived
// without one. The result is always negative so it never collides with an
// identity assigned by the server.
func PlaceholderID(url, title string) int64 {
	content := fmt.Sprintf("%s|%s", url, title)
	hash := sha256.Sum256([]byte(content))

	v := int64(binary.BigEndian.Uint64(hash[:8]) & math.MaxInt64)
	return -v - 1
}
