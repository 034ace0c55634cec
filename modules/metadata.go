package modules

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/spacex-3/music-tune/logger"
	"github.com/spacex-3/music-tune/models"
)

// MetadataFetcher is the upstream side of the metadata cache.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, songID string, platform models.Platform) (models.MetadataEntry, error)
}

// MetadataCache maps song IDs to metadata for the lifetime of the process.
// Entries are written once and never expire; the catalog of songs a server
// actually plays bounds its size. Concurrent misses for the same key are
// coalesced into a single upstream call. Failures are not cached, so a
// later request can retry.
type MetadataCache struct {
	fetcher MetadataFetcher
	path    string

	mutex   sync.RWMutex
	entries map[string]models.CachedMetadataEntry
	group   singleflight.Group
}

func NewMetadataCache(fetcher MetadataFetcher, path string) *MetadataCache {
	return &MetadataCache{
		fetcher: fetcher,
		path:    path,
		entries: map[string]models.CachedMetadataEntry{},
	}
}

// Get returns metadata for a song, fetching it upstream on a miss. For a
// given key at most one upstream call is in flight at any time; concurrent
// callers share its result.
func (c *MetadataCache) Get(ctx context.Context, songID string, platform models.Platform) (models.MetadataEntry, error) {
	if entry, ok := c.Peek(songID); ok {
		return entry, nil
	}

	result, err, _ := c.group.Do(songID, func() (any, error) {
		// Another caller may have populated the key while we queued
		if entry, ok := c.Peek(songID); ok {
			return entry, nil
		}

		// The result is shared by every coalesced waiter; the first caller
		// hanging up must not fail the rest
		entry, err := c.fetcher.FetchMetadata(context.WithoutCancel(ctx), songID, platform)
		if err != nil {
			return models.MetadataEntry{}, err
		}

		c.Put(entry)
		return entry, nil
	})
	if err != nil {
		return models.MetadataEntry{}, err
	}

	return result.(models.MetadataEntry), nil
}

// Peek reads without triggering an upstream fetch.
func (c *MetadataCache) Peek(songID string) (models.MetadataEntry, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	cached, ok := c.entries[songID]
	return cached.Entry, ok
}

// Put stores metadata, typically harvested for free from playlist listings,
// search results or parse responses. An entry that already has lyrics is
// never replaced by one without, so a rich parse result survives later
// listing refreshes.
func (c *MetadataCache) Put(entry models.MetadataEntry) {
	if entry.ID == "" {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if existing, ok := c.entries[entry.ID]; ok {
		if existing.Entry.Lyrics != "" && entry.Lyrics == "" {
			return
		}
	}

	c.entries[entry.ID] = models.CachedMetadataEntry{
		Entry:     entry,
		Timestamp: time.Now(),
	}
}

func (c *MetadataCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

func (c *MetadataCache) Load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No cache yet
		}
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	return json.Unmarshal(data, &c.entries)
}

func (c *MetadataCache) Save() error {
	c.mutex.RLock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mutex.RUnlock()
	if err != nil {
		return err
	}

	err = os.WriteFile(c.path, data, 0644)
	if err != nil {
		return err
	}

	logger.Log.Debug("persisted metadata cache")
	return nil
}
