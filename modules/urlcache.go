package modules

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/spacex-3/music-tune/models"
)

const urlCacheSize = 4096

// URLCache remembers signed playback URLs per (track, quality) so repeat
// plays inside the validity window never re-spend a credit. Entries expire
// lazily on read; the expirable LRU underneath reclaims memory on its own.
type URLCache struct {
	ttl time.Duration
	lru *expirable.LRU[string, urlCacheEntry]
	now func() time.Time
}

type urlCacheEntry struct {
	URL      string
	IssuedAt time.Time
}

func NewURLCache(ttl time.Duration) *URLCache {
	return &URLCache{
		ttl: ttl,
		lru: expirable.NewLRU[string, urlCacheEntry](urlCacheSize, nil, ttl),
		now: time.Now,
	}
}

// Get returns the cached URL for a track, or false if there is none or it
// has aged out. An entry exactly ttl old is already invalid: the signed URL
// upstream stops working at the boundary, so the strict comparison matters.
func (c *URLCache) Get(ref models.TrackRef) (string, bool) {
	entry, ok := c.lru.Get(ref.Key())
	if !ok {
		return "", false
	}

	if c.now().Sub(entry.IssuedAt) >= c.ttl {
		c.lru.Remove(ref.Key())
		return "", false
	}

	return entry.URL, true
}

// Put stores a freshly issued URL, replacing any previous entry for the key.
func (c *URLCache) Put(ref models.TrackRef, url string) {
	c.lru.Add(ref.Key(), urlCacheEntry{
		URL:      url,
		IssuedAt: c.now(),
	})
}

func (c *URLCache) Len() int {
	return c.lru.Len()
}
