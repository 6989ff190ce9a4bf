package metadata

import (
	"context"
	"log"
	"sync"

	"erebus/pkg/types"
)

// Source is one tier of the metadata fallback chain. A miss is
// (nil, nil); errors are non-fatal and make the resolver fall through
// to the next tier.
type Source interface {
	Name() string
	Resolve(ctx context.Context, mint string) (*types.TokenInfo, error)
}

// clearable is implemented by sources that hold their own cache
type clearable interface {
	ClearCache()
}

// Resolver resolves a mint address to display metadata through an
// ordered chain of sources, short-circuiting on the first hit. Every
// result, placeholder included, is cached for the process lifetime;
// invalidation only happens through ClearCache.
type Resolver struct {
	sources []Source

	mu    sync.RWMutex
	cache map[string]*types.TokenInfo
}

// NewResolver creates a resolver over the given sources, queried in order
func NewResolver(sources ...Source) *Resolver {
	return &Resolver{
		sources: sources,
		cache:   make(map[string]*types.TokenInfo),
	}
}

// Resolve returns metadata for a mint. It never fails: when every
// source misses or errors, a minimal placeholder is synthesized.
func (r *Resolver) Resolve(ctx context.Context, mint string) *types.TokenInfo {
	r.mu.RLock()
	cached, ok := r.cache[mint]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	var info *types.TokenInfo
	for _, source := range r.sources {
		resolved, err := source.Resolve(ctx, mint)
		if err != nil {
			log.Printf("metadata: %s lookup failed for %s: %v", source.Name(), mint, err)
			continue
		}
		if resolved != nil {
			info = resolved
			break
		}
	}

	if info == nil {
		info = Placeholder(mint)
	}

	r.mu.Lock()
	r.cache[mint] = info
	r.mu.Unlock()

	return info
}

// ResolveBatch resolves many mints concurrently after warming the
// source chain once
func (r *Resolver) ResolveBatch(ctx context.Context, mints []string) map[string]*types.TokenInfo {
	results := make(map[string]*types.TokenInfo, len(mints))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, mint := range mints {
		wg.Add(1)
		go func(mint string) {
			defer wg.Done()
			info := r.Resolve(ctx, mint)
			mu.Lock()
			results[mint] = info
			mu.Unlock()
		}(mint)
	}
	wg.Wait()

	return results
}

// ClearCache resets the per-token cache and every source-held cache
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	r.cache = make(map[string]*types.TokenInfo)
	r.mu.Unlock()

	for _, source := range r.sources {
		if c, ok := source.(clearable); ok {
			c.ClearCache()
		}
	}
}

// CacheStats describes the resolver's cache state
type CacheStats struct {
	CachedTokens int `json:"cached_tokens"`
}

// Stats returns cache statistics
func (r *Resolver) Stats() CacheStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return CacheStats{CachedTokens: len(r.cache)}
}

// Placeholder synthesizes minimal metadata for a mint no source knows
func Placeholder(mint string) *types.TokenInfo {
	symbol := mint
	if len(mint) > 8 {
		symbol = mint[:4] + "..." + mint[len(mint)-4:]
	}
	return &types.TokenInfo{
		Address:  mint,
		Symbol:   symbol,
		Name:     "Unknown Token",
		Decimals: 9,
		Tags:     []string{"unknown"},
		Source:   "fallback",
	}
}
