package cache

import "time"

// BytesCache caches serialized responses for the read endpoints.
type BytesCache interface {
	GetBytes(key string) ([]byte, bool, error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
