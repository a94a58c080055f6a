package ports

import "context"

// Key-value store for raw backend responses, keyed by query signature.
type ResponseCache interface {
	// Return the cached body for key. ok is false on a miss or an expired entry.
	Get(ctx context.Context, key string) (body []byte, ok bool, err error)
	// Store body under key, replacing any previous value.
	Put(ctx context.Context, key string, body []byte) error
}
