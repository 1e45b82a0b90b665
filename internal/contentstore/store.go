// Package contentstore adapts the content-addressed blob store. Writes
// are idempotent (content addressing), so a failed write is always
// safe to retry; reads drain the full stream before decoding.
package contentstore

import "context"

// Store persists JSON payloads and dereferences content ids.
type Store interface {
	// Put serializes v and writes it, returning the content id.
	Put(ctx context.Context, v interface{}) (string, error)
	// Get fetches the blob behind contentID and decodes it into out.
	Get(ctx context.Context, contentID string, out interface{}) error
}
