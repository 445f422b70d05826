package catalog

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// BlobStore persists raw artifacts and the published catalog.
type BlobStore interface {
	// Put writes data under key and returns the object's locator.
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
	// Get returns the object body or an error wrapping storage.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Exists reports whether key is present. A missing object is (false, nil).
	Exists(ctx context.Context, key string) (bool, error)
	// Locator returns the canonical address of key without touching the store.
	Locator(key string) string
}

// ItemStore upserts program records keyed by program URL.
type ItemStore interface {
	Upsert(ctx context.Context, record ProgramRecord) error
}

// Notifier pushes completion events to Pub/Sub (or similar).
type Notifier interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for published payloads.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
