package jinja

import (
	"sync"
	"time"
)

// TemplateCache is a thread-safe cache of compiled templates.
type TemplateCache struct {
	mu      sync.RWMutex
	cache   map[string]*cachedTemplate
	maxSize int
}

type cachedTemplate struct {
	template *Template
	modTime  time.Time
}

// DefaultCacheSize bounds a cache created by NewTemplateCache(0).
const DefaultCacheSize = 1000

// NewTemplateCache creates a cache holding at most maxSize templates.
func NewTemplateCache(maxSize int) *TemplateCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &TemplateCache{
		cache:   make(map[string]*cachedTemplate),
		maxSize: maxSize,
	}
}

// Get retrieves a template by key.
func (tc *TemplateCache) Get(key string) (*Template, bool) {
	t, _, ok := tc.GetStamped(key)
	return t, ok
}

// GetStamped retrieves a template together with the modification time it
// was stored with.
func (tc *TemplateCache) GetStamped(key string) (*Template, time.Time, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	c, ok := tc.cache[key]
	if !ok {
		return nil, time.Time{}, false
	}
	return c.template, c.modTime, true
}

// Set stores a template under key.
func (tc *TemplateCache) Set(key string, t *Template) {
	tc.SetStamped(key, t, time.Time{})
}

// SetStamped stores a template with the modification time of its source.
// When the cache is full an arbitrary entry is evicted.
func (tc *TemplateCache) SetStamped(key string, t *Template, modTime time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if _, exists := tc.cache[key]; !exists && len(tc.cache) >= tc.maxSize {
		for k := range tc.cache {
			delete(tc.cache, k)
			break
		}
	}
	tc.cache[key] = &cachedTemplate{template: t, modTime: modTime}
}

// Len reports the number of cached templates.
func (tc *TemplateCache) Len() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return len(tc.cache)
}

// Clear empties the cache.
func (tc *TemplateCache) Clear() {
	tc.mu.Lock()
	tc.cache = make(map[string]*cachedTemplate)
	tc.mu.Unlock()
}
