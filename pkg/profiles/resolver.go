package profiles

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 30 * time.Second
)

// Resolver looks up the profile for an identity, caching hits for a
// short TTL so every guarded request does not hit the database. Misses
// are never cached: a missing profile means the request is treated as
// unauthenticated, and that decision must always reflect current state.
type Resolver struct {
	store *Store
	cache *lru.LRU[string, *Profile]
}

// NewResolver creates a resolver over the given store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{
		store: store,
		cache: lru.NewLRU[string, *Profile](defaultCacheSize, nil, defaultCacheTTL),
	}
}

// Resolve returns the profile for one identity id. Returns ErrNotFound
// when the identity has no profile.
func (r *Resolver) Resolve(ctx context.Context, id string) (*Profile, error) {
	if p, ok := r.cache.Get(id); ok {
		return p, nil
	}

	p, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cache.Add(id, p)
	return p, nil
}

// ResolveByEmail looks up a profile by email address. Reads go straight
// to the store: the cache is keyed by identity id and email lookups are
// rare.
func (r *Resolver) ResolveByEmail(ctx context.Context, email string) (*Profile, error) {
	return r.store.GetByEmail(ctx, email)
}

// Invalidate drops the cached profile for one identity. Called after a
// role or region change and after deletion so stale authority is never
// served from cache.
func (r *Resolver) Invalidate(id string) {
	r.cache.Remove(id)
}
