// Package kv provides the device-local durable store used for sessions,
// registered users, and fallback record collections. Values are opaque
// string blobs under fixed keys; callers own serialization.
package kv

// Store is a synchronous get/set-by-key blob store.
type Store interface {
	// Get returns the blob stored under key. ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)
	// Set stores value under key, replacing any previous blob.
	Set(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}
