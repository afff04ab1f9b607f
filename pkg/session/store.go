// Package session implements the gateway's content-addressed session
// store: persistence of the last-seen previous_response_id and the
// thought-signature cache per session key. The store itself is a plain
// byte-addressed capability; Manager builds the content-addressing and
// read-merge-write semantics on top of it.
package session

import (
	"context"
	"time"
)

// Store is the capability the gateway needs from a cache backend:
// get/put byte blobs by key, with per-entry TTL. The gateway must tolerate
// an always-empty store (stateless mode), so every Store implementation
// here treats a miss as a normal, error-free outcome.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DefaultTTL is the retention assigned to every session-store entry.
const DefaultTTL = 24 * time.Hour
