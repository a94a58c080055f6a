package cache

import (
	"encoding/binary"
	"errors"
	"time"
)

// DefaultTTL is how long a cached backend response stays fresh.
const DefaultTTL = 24 * time.Hour

// fresh reports whether an entry stored at storedAt is still valid.
// A non-positive ttl never expires.
func fresh(storedAt time.Time, ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return true
	}
	return now.Sub(storedAt) < ttl
}

// encodeEntry prefixes body with its store time for stores without native
// expiry.
func encodeEntry(storedAt time.Time, body []byte) []byte {
	out := make([]byte, 8+len(body))
	binary.BigEndian.PutUint64(out, uint64(storedAt.UnixNano()))
	copy(out[8:], body)
	return out
}

func decodeEntry(raw []byte) (time.Time, []byte, error) {
	if len(raw) < 8 {
		return time.Time{}, nil, errors.New("cache entry too short")
	}
	ns := int64(binary.BigEndian.Uint64(raw[:8]))
	return time.Unix(0, ns), raw[8:], nil
}
