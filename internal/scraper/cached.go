package scraper

import (
	"context"

	"github.com/JustJay7/eviction-hearing-parser/internal/cache"
)

// CachingFetcher memoizes successful fetches of another Fetcher.
type CachingFetcher struct {
	next  Fetcher
	cache cache.Cache[*Document]
}

func NewCachingFetcher(next Fetcher, c cache.Cache[*Document]) *CachingFetcher {
	return &CachingFetcher{next: next, cache: c}
}

func (f *CachingFetcher) Fetch(ctx context.Context, loc Locator) (*Document, error) {
	key := cache.PageKey(loc.Key())
	if doc, ok := f.cache.Get(key); ok {
		return doc, nil
	}

	doc, err := f.next.Fetch(ctx, loc)
	if err != nil {
		return nil, err
	}
	f.cache.Set(key, doc)
	return doc, nil
}

// Stats reports the page cache counters.
func (f *CachingFetcher) Stats() cache.CacheStats {
	return f.cache.Stats()
}
