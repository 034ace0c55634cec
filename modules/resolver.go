package modules

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/spacex-3/music-tune/logger"
	"github.com/spacex-3/music-tune/models"
)

// PlaybackFetcher is the metered upstream side of the resolver.
type PlaybackFetcher interface {
	FetchPlaybackURL(ctx context.Context, ref models.TrackRef) (string, models.MetadataEntry, error)
}

// DownloadTask is one in-flight background fetch of a track into the audio
// store. At most one task exists per (track, quality); late requests join
// the existing task instead of starting a second fetch.
type DownloadTask struct {
	ID  string
	Ref models.TrackRef

	done chan struct{}
	err  error
}

// Done is closed when the task reaches a terminal state.
func (t *DownloadTask) Done() <-chan struct{} {
	return t.done
}

// Err reports the task outcome. Only valid after Done is closed.
func (t *DownloadTask) Err() error {
	return t.err
}

// Resolver decides how a play request is served: local file, cached URL,
// or a metered upstream call, in that order. It is the only place allowed
// to call FetchPlaybackURL, which keeps the credit-conservation rule in
// one spot. Every decision logs one of LOCAL CACHE HIT, URL CACHE HIT or
// API CALL so operators can audit credit spend.
type Resolver struct {
	fetcher  PlaybackFetcher
	urls     *URLCache
	store    *AudioStore
	metadata *MetadataCache
	download *http.Client

	mutex    sync.Mutex
	inflight map[string]*DownloadTask
	parses   singleflight.Group
}

func NewResolver(fetcher PlaybackFetcher, urls *URLCache, store *AudioStore, metadata *MetadataCache) *Resolver {
	return &Resolver{
		fetcher:  fetcher,
		urls:     urls,
		store:    store,
		metadata: metadata,
		download: &http.Client{Timeout: 2 * time.Minute},
		inflight: map[string]*DownloadTask{},
	}
}

// ResolvePlayback returns a streamable source for the track, spending a
// credit only when both cheaper tiers miss. When the audio is not local
// yet, a background download is scheduled to populate the store; the
// caller is never blocked on it, and upstream errors pass through typed so
// "out of credits" is distinguishable from "no such track".
func (r *Resolver) ResolvePlayback(ctx context.Context, ref models.TrackRef) (models.PlaybackSource, error) {
	if path, ok := r.store.Path(ref); ok {
		logger.Log.Info("[LOCAL CACHE HIT] serving audio from disk: " + ref.Key())
		return models.PlaybackSource{Kind: models.PlaybackLocal, Location: path}, nil
	}

	if url, ok := r.urls.Get(ref); ok {
		logger.Log.Info("[URL CACHE HIT] returning cached stream URL for " + ref.Key())
		r.scheduleDownload(ref, url)
		return models.PlaybackSource{Kind: models.PlaybackRemote, Location: url}, nil
	}

	url, err := r.fetchURL(ctx, ref)
	if err != nil {
		return models.PlaybackSource{}, err
	}

	r.scheduleDownload(ref, url)

	return models.PlaybackSource{Kind: models.PlaybackRemote, Location: url}, nil
}

// fetchURL spends the one metered call for a cold key. Concurrent cold
// requests for the same key coalesce onto a single parse; only the winner
// logs the API CALL and pays the credit, late arrivals share its URL.
func (r *Resolver) fetchURL(ctx context.Context, ref models.TrackRef) (string, error) {
	result, err, _ := r.parses.Do(ref.Key(), func() (any, error) {
		// A caller queued behind the winner finds the URL already cached
		if url, ok := r.urls.Get(ref); ok {
			return url, nil
		}

		logger.Log.Info("[API CALL] parsing track: " + ref.Key() + " (1 credit)")

		// The result is shared; the first caller hanging up must not fail
		// the coalesced waiters
		url, metadata, err := r.fetcher.FetchPlaybackURL(context.WithoutCancel(ctx), ref)
		if err != nil {
			return "", err
		}

		r.urls.Put(ref, url)
		r.metadata.Put(metadata)
		return url, nil
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

// scheduleDownload starts a background download for the track, or joins
// the one already in flight. The returned task can be waited on, though
// resolution never does; downloading is best-effort cache population and
// must not delay or fail the play request that triggered it.
func (r *Resolver) scheduleDownload(ref models.TrackRef, url string) *DownloadTask {
	key := ref.Key()

	r.mutex.Lock()
	if task, ok := r.inflight[key]; ok {
		r.mutex.Unlock()
		return task
	}

	task := &DownloadTask{
		ID:   uuid.NewString(),
		Ref:  ref,
		done: make(chan struct{}),
	}
	r.inflight[key] = task
	r.mutex.Unlock()

	go r.runDownload(task, url)

	return task
}

// runDownload executes one download task to completion. It deliberately
// ignores the triggering request's context: the file being fetched
// populates a shared cache, so a client disconnect must not cancel it.
func (r *Resolver) runDownload(task *DownloadTask, url string) {
	defer func() {
		r.mutex.Lock()
		delete(r.inflight, task.Ref.Key())
		r.mutex.Unlock()
		close(task.done)
	}()

	logger.Log.Info("[DOWNLOAD] starting background download: " + task.Ref.Key() + " task=" + task.ID)

	req, err := http.NewRequestWithContext(context.Background(), "GET", url, nil)
	if err != nil {
		task.err = err
		logger.Log.Error("[DOWNLOAD FAILED] " + task.Ref.Key() + " task=" + task.ID + " error: " + err.Error())
		return
	}

	resp, err := r.download.Do(req)
	if err != nil {
		task.err = err
		logger.Log.Error("[DOWNLOAD FAILED] " + task.Ref.Key() + " task=" + task.ID + " error: " + err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		task.err = fmt.Errorf("download returned %s", resp.Status)
		logger.Log.Error("[DOWNLOAD FAILED] " + task.Ref.Key() + " task=" + task.ID + " error: " + task.err.Error())
		return
	}

	var metadata *models.MetadataEntry
	if entry, ok := r.metadata.Peek(task.Ref.SongID()); ok {
		metadata = &entry
	}

	written, err := r.store.Write(task.Ref, resp.Body, metadata)
	if err != nil {
		task.err = err
		logger.Log.Error("[DOWNLOAD FAILED] " + task.Ref.Key() + " task=" + task.ID + " error: " + err.Error())
		return
	}

	logger.Log.Info(fmt.Sprintf("[DOWNLOAD] completed: %s task=%s (%.1f MB)", task.Ref.Key(), task.ID, float64(written)/1024/1024))
}

// InFlight reports whether a download task currently exists for the track.
func (r *Resolver) InFlight(ref models.TrackRef) (*DownloadTask, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	task, ok := r.inflight[ref.Key()]
	return task, ok
}
