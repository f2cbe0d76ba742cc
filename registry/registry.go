// Package registry implements the local Encoder Registry (spec §3, §4.1): a DID-keyed
// lookup of registered encoders, consulted on every Aid dispatch request. Rows are
// created/updated by admin operations only — this package exposes no registration
// endpoint, just lookup and the admin-facing Put used by out-of-core tooling.
package registry

import "time"

// Encoder is a row in the local registry.
type Encoder struct {
	EncoderID string // DID, primary key
	Name      string
	Owner     string
	IsActive  bool
	CreatedAt time.Time
	LastSeen  *time.Time
}

// Registry is the Encoder Identity & Authorization store.
type Registry interface {
	// Get returns the encoder for did, or nil if no row exists.
	Get(did string) (*Encoder, error)

	// Put creates or replaces the encoder row for did. Used by admin tooling only.
	Put(e Encoder) error

	// Touch stamps last_seen = now for did. Best-effort; failures are not fatal to
	// the dispatch request that triggered it.
	Touch(did string, now time.Time) error

	// Close releases the underlying storage handle.
	Close() error
}
