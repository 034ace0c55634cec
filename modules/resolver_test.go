package modules

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spacex-3/music-tune/models"
)

// fakeUpstream stands in for the metered TuneHub client.
type fakeUpstream struct {
	mutex      sync.Mutex
	parseCalls int
	url        string
	err        error
	delay      time.Duration
}

func (f *fakeUpstream) FetchPlaybackURL(ctx context.Context, ref models.TrackRef) (string, models.MetadataEntry, error) {
	f.mutex.Lock()
	f.parseCalls++
	f.mutex.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", models.MetadataEntry{}, ctx.Err()
		}
	}

	if f.err != nil {
		return "", models.MetadataEntry{}, f.err
	}

	return f.url, models.MetadataEntry{
		ID:     ref.SongID(),
		Title:  "Test Track",
		Artist: "Test Artist",
	}, nil
}

func (f *fakeUpstream) FetchMetadata(ctx context.Context, songID string, platform models.Platform) (models.MetadataEntry, error) {
	return models.MetadataEntry{ID: songID}, nil
}

func (f *fakeUpstream) calls() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.parseCalls
}

// gatedServer serves audio bytes but holds every response until released,
// so tests can observe downloads while they are in flight.
type gatedServer struct {
	server  *httptest.Server
	release chan struct{}
	hits    atomic.Int64
}

func newGatedServer(t *testing.T) *gatedServer {
	t.Helper()

	gated := &gatedServer{release: make(chan struct{})}
	gated.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gated.hits.Add(1)
		<-gated.release
		fmt.Fprint(w, "downloaded audio bytes")
	}))
	t.Cleanup(gated.server.Close)

	return gated
}

func newTestResolver(t *testing.T, upstream *fakeUpstream) (*Resolver, *AudioStore) {
	t.Helper()

	store, err := NewAudioStore(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	metadata := NewMetadataCache(upstream, t.TempDir()+"/metadata.json")
	urls := NewURLCache(30 * time.Minute)

	return NewResolver(upstream, urls, store, metadata), store
}

func waitForTask(t *testing.T, task *DownloadTask) {
	t.Helper()

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("download task did not finish in time")
	}
}

func TestResolveColdMissCallsUpstreamOnce(t *testing.T) {
	gated := newGatedServer(t)
	upstream := &fakeUpstream{url: gated.server.URL}
	resolver, store := newTestResolver(t, upstream)

	ref := storeRef("5001", models.Quality320k)

	source, err := resolver.ResolvePlayback(context.Background(), ref)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if source.Kind != models.PlaybackRemote {
		t.Fatalf("expected remote source, got %s", source.Kind)
	}
	if source.Location != gated.server.URL {
		t.Fatalf("unexpected location: %s", source.Location)
	}
	if upstream.calls() != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", upstream.calls())
	}

	// The fresh URL is cached and a background download is in flight
	if _, ok := resolver.urls.Get(ref); !ok {
		t.Fatal("expected the fresh URL to be cached")
	}
	task, ok := resolver.InFlight(ref)
	if !ok {
		t.Fatal("expected a download task to be registered")
	}

	close(gated.release)
	waitForTask(t, task)

	if task.Err() != nil {
		t.Fatalf("download failed: %v", task.Err())
	}
	if !store.Has(ref) {
		t.Fatal("expected the audio store to be populated after the download")
	}
}

func TestResolveWarmURLCacheSpendsNoCredit(t *testing.T) {
	gated := newGatedServer(t)
	upstream := &fakeUpstream{url: gated.server.URL}
	resolver, _ := newTestResolver(t, upstream)

	ref := storeRef("5002", models.Quality320k)
	resolver.urls.Put(ref, gated.server.URL)

	source, err := resolver.ResolvePlayback(context.Background(), ref)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if source.Kind != models.PlaybackRemote {
		t.Fatalf("expected remote source, got %s", source.Kind)
	}
	if upstream.calls() != 0 {
		t.Fatalf("warm URL cache must not call upstream, got %d calls", upstream.calls())
	}

	task, ok := resolver.InFlight(ref)
	if !ok {
		t.Fatal("expected a URL cache hit to still schedule a download")
	}
	close(gated.release)
	waitForTask(t, task)
}

func TestResolveLocalHitSkipsEverything(t *testing.T) {
	upstream := &fakeUpstream{url: "http://unused"}
	resolver, store := newTestResolver(t, upstream)

	ref := storeRef("5003", models.Quality320k)
	if _, err := store.Write(ref, strings.NewReader("cached audio"), nil); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	source, err := resolver.ResolvePlayback(context.Background(), ref)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if source.Kind != models.PlaybackLocal {
		t.Fatalf("expected local source, got %s", source.Kind)
	}
	if upstream.calls() != 0 {
		t.Fatalf("local hit must not call upstream, got %d calls", upstream.calls())
	}
	if _, ok := resolver.InFlight(ref); ok {
		t.Fatal("local hit must not schedule a download")
	}
}

func TestConcurrentResolvesShareOneDownload(t *testing.T) {
	gated := newGatedServer(t)
	upstream := &fakeUpstream{url: gated.server.URL}
	resolver, _ := newTestResolver(t, upstream)

	ref := storeRef("5004", models.Quality320k)
	resolver.urls.Put(ref, gated.server.URL)

	var waitGroup sync.WaitGroup
	for i := 0; i < 8; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			_, err := resolver.ResolvePlayback(context.Background(), ref)
			if err != nil {
				t.Errorf("resolve failed: %v", err)
			}
		}()
	}
	waitGroup.Wait()

	task, ok := resolver.InFlight(ref)
	if !ok {
		t.Fatal("expected one shared download task")
	}

	close(gated.release)
	waitForTask(t, task)

	if hits := gated.hits.Load(); hits != 1 {
		t.Fatalf("expected exactly one download request, got %d", hits)
	}
	if upstream.calls() != 0 {
		t.Fatalf("warm cache resolves must not call upstream, got %d", upstream.calls())
	}
}

func TestConcurrentColdResolvesSpendOneCredit(t *testing.T) {
	gated := newGatedServer(t)
	upstream := &fakeUpstream{url: gated.server.URL, delay: 100 * time.Millisecond}
	resolver, _ := newTestResolver(t, upstream)

	ref := storeRef("5008", models.Quality320k)

	var waitGroup sync.WaitGroup
	for i := 0; i < 8; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			source, err := resolver.ResolvePlayback(context.Background(), ref)
			if err != nil {
				t.Errorf("resolve failed: %v", err)
				return
			}
			if source.Kind != models.PlaybackRemote || source.Location != gated.server.URL {
				t.Errorf("unexpected source: %+v", source)
			}
		}()
	}
	waitGroup.Wait()

	// Eight concurrent cold misses must cost exactly one credit
	if upstream.calls() != 1 {
		t.Fatalf("expected one metered parse for concurrent cold requests, got %d", upstream.calls())
	}

	task, ok := resolver.InFlight(ref)
	if !ok {
		t.Fatal("expected one shared download task")
	}
	close(gated.release)
	waitForTask(t, task)

	if hits := gated.hits.Load(); hits != 1 {
		t.Fatalf("expected exactly one download request, got %d", hits)
	}
}

func TestColdResolveOutlivesCallerCancellation(t *testing.T) {
	gated := newGatedServer(t)
	upstream := &fakeUpstream{url: gated.server.URL, delay: 50 * time.Millisecond}
	resolver, _ := newTestResolver(t, upstream)

	ref := storeRef("5009", models.Quality320k)

	// An already-cancelled request still completes the shared parse
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source, err := resolver.ResolvePlayback(ctx, ref)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if source.Kind != models.PlaybackRemote {
		t.Fatalf("expected remote source, got %s", source.Kind)
	}
	if _, ok := resolver.urls.Get(ref); !ok {
		t.Fatal("expected the URL to be cached despite cancellation")
	}

	task, ok := resolver.InFlight(ref)
	close(gated.release)
	if ok {
		waitForTask(t, task)
	}
}

func TestResolveUpstreamErrorsPassThroughTyped(t *testing.T) {
	upstream := &fakeUpstream{err: fmt.Errorf("%w: account balance is 0", ErrInsufficientCredits)}
	resolver, _ := newTestResolver(t, upstream)

	ref := storeRef("5005", models.Quality320k)

	_, err := resolver.ResolvePlayback(context.Background(), ref)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	// A failed parse must leave no trace: no cached URL, no download
	if _, ok := resolver.urls.Get(ref); ok {
		t.Fatal("failed parse must not populate the URL cache")
	}
	if _, ok := resolver.InFlight(ref); ok {
		t.Fatal("failed parse must not schedule a download")
	}
}

func TestDownloadSurvivesRequestCancellation(t *testing.T) {
	gated := newGatedServer(t)
	upstream := &fakeUpstream{url: gated.server.URL}
	resolver, store := newTestResolver(t, upstream)

	ref := storeRef("5006", models.Quality320k)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := resolver.ResolvePlayback(ctx, ref)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	task, ok := resolver.InFlight(ref)
	if !ok {
		t.Fatal("expected a download task")
	}

	// The client goes away mid-download; the cache fill must continue
	cancel()
	close(gated.release)
	waitForTask(t, task)

	if task.Err() != nil {
		t.Fatalf("download should survive request cancellation, got %v", task.Err())
	}
	if !store.Has(ref) {
		t.Fatal("expected the audio store to be populated despite cancellation")
	}
}

func TestDownloadFailureLeavesStoreEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	upstream := &fakeUpstream{url: server.URL}
	resolver, store := newTestResolver(t, upstream)

	ref := storeRef("5007", models.Quality320k)

	_, err := resolver.ResolvePlayback(context.Background(), ref)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	task, ok := resolver.InFlight(ref)
	if ok {
		waitForTask(t, task)
		if task.Err() == nil {
			t.Fatal("expected the download to fail")
		}
	}

	if store.Has(ref) {
		t.Fatal("failed download must not populate the store")
	}

	// The task is gone from the registry, so the next play can retry
	if _, ok := resolver.InFlight(ref); ok {
		t.Fatal("finished task must be removed from the registry")
	}
}
