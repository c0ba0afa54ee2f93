package blogpublisher

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/eringen/blogpublisher/store"
)

const (
	cacheKeyTags       = "terms:tags"
	cacheKeyCategories = "terms:categories"
)

// TaxonomyCache keeps the tag and category lists in memory for the editor
// and the /api listing endpoints. Any write to terms or posts must call
// Invalidate.
type TaxonomyCache struct {
	c          *cache.Cache
	tags       store.TermRepository
	categories store.TermRepository
}

// NewTaxonomyCache returns a cache whose entries expire after ttl.
func NewTaxonomyCache(tags, categories store.TermRepository, ttl time.Duration) *TaxonomyCache {
	return &TaxonomyCache{
		c:          cache.New(ttl, 2*ttl),
		tags:       tags,
		categories: categories,
	}
}

// Tags returns all tags, most used first.
func (t *TaxonomyCache) Tags(ctx context.Context) ([]store.Term, error) {
	return t.list(ctx, cacheKeyTags, t.tags)
}

// Categories returns all categories, most used first.
func (t *TaxonomyCache) Categories(ctx context.Context) ([]store.Term, error) {
	return t.list(ctx, cacheKeyCategories, t.categories)
}

func (t *TaxonomyCache) list(ctx context.Context, key string, repo store.TermRepository) ([]store.Term, error) {
	if v, ok := t.c.Get(key); ok {
		return v.([]store.Term), nil
	}
	terms, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if terms == nil {
		terms = []store.Term{}
	}
	t.c.Set(key, terms, cache.DefaultExpiration)
	return terms, nil
}

// Invalidate drops both lists so the next read hits the store.
func (t *TaxonomyCache) Invalidate() {
	t.c.Flush()
}
