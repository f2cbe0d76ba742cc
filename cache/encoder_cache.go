package cache

import (
	"context"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/clients"
)

// EncoderCache fronts the remote cluster node directory (spec §3): a miss calls through
// to the remote source, a hit is cached indefinitely (NoExpiration), and callers can force
// a refresh.
type EncoderCache struct {
	client  clients.ClusterDirectoryClient
	entries *gocache.Cache
}

func NewEncoderCache(client clients.ClusterDirectoryClient) *EncoderCache {
	return &EncoderCache{
		client:  client,
		entries: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
	}
}

// Get returns the node descriptor for did, querying the remote directory on a cache miss.
func (c *EncoderCache) Get(ctx context.Context, did string) (*clients.NodeDescriptor, error) {
	if v, ok := c.entries.Get(did); ok {
		return v.(*clients.NodeDescriptor), nil
	}

	desc, err := c.client.Get(ctx, did)
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, nil
	}

	c.entries.Set(did, desc, gocache.NoExpiration)
	return desc, nil
}

// Refresh discards any cached entry for did, forcing the next Get to consult the remote
// directory again.
func (c *EncoderCache) Refresh(did string) {
	c.entries.Delete(did)
}
