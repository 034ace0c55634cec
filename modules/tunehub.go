package modules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spacex-3/music-tune/logger"
	"github.com/spacex-3/music-tune/models"
	"github.com/spacex-3/music-tune/utilities"
)

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// TuneHubClient talks to the TuneHub V3 API and to the platforms' free
// endpoints. Every FetchPlaybackURL call is metered (1 credit); everything
// else is free. Callers must exhaust cheaper cache tiers before calling the
// metered path; that rule lives in the resolver, not here.
type TuneHubClient struct {
	BaseURL         string
	APIKey          string
	DefaultPlatform models.Platform
	DefaultQuality  models.Quality
	HTTP            *http.Client

	queryMutex    sync.Mutex
	lastQueryTime time.Time
	rateLimit     time.Duration
}

func NewTuneHubClient(baseURL, apiKey string, defaultPlatform models.Platform, defaultQuality models.Quality) *TuneHubClient {
	return &TuneHubClient{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		APIKey:          apiKey,
		DefaultPlatform: defaultPlatform,
		DefaultQuality:  defaultQuality,
		HTTP:            &http.Client{Timeout: 15 * time.Second},
		rateLimit:       time.Second,
	}
}

// pace ensures at least one rateLimit interval between free platform
// queries, the same way the upstream guidelines ask for.
func (c *TuneHubClient) pace() {
	c.queryMutex.Lock()
	defer c.queryMutex.Unlock()

	elapsed := time.Since(c.lastQueryTime)
	if elapsed < c.rateLimit {
		time.Sleep(c.rateLimit - elapsed)
	}

	c.lastQueryTime = time.Now()
}

func classifyStatus(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired, http.StatusForbidden:
		return ErrInsufficientCredits
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrUpstreamUnavailable
	}
}

func classifyEnvelope(code int, message string) error {
	lowered := strings.ToLower(message)
	switch {
	case strings.Contains(lowered, "credit") || strings.Contains(lowered, "balance") || strings.Contains(lowered, "insufficient"):
		return fmt.Errorf("%w: %s", ErrInsufficientCredits, message)
	case strings.Contains(lowered, "rate") || strings.Contains(lowered, "too many"):
		return fmt.Errorf("%w: %s", ErrRateLimited, message)
	case strings.Contains(lowered, "not found") || strings.Contains(lowered, "no song"):
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	default:
		return fmt.Errorf("%w: tunehub error %d: %s", ErrUpstreamUnavailable, code, message)
	}
}

// getMethodConfig fetches a platform method configuration from TuneHub
// (free, no credits consumed).
func (c *TuneHubClient) getMethodConfig(ctx context.Context, platform models.Platform, function string) (models.TuneHubMethodConfig, error) {
	var config models.TuneHubMethodConfig

	requestURL := fmt.Sprintf("%s/v1/methods/%s/%s", c.BaseURL, platform, function)
	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return config, err
	}
	req.Header.Set("X-API-Key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return config, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return config, fmt.Errorf("%w: methods/%s/%s returned %s", classifyStatus(resp.StatusCode), platform, function, resp.Status)
	}

	var envelope models.TuneHubEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return config, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if envelope.Code != 0 {
		return config, classifyEnvelope(envelope.Code, envelope.Message)
	}

	if err := json.Unmarshal(envelope.Data, &config); err != nil {
		return config, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	return config, nil
}

// executeMethod runs a fetched method configuration against the platform
// endpoint it describes, substituting {{var}} templates first.
func (c *TuneHubClient) executeMethod(ctx context.Context, config models.TuneHubMethodConfig, vars map[string]string) (map[string]any, error) {
	c.pace()

	params, _ := substituteAny(config.Params, vars).(map[string]any)

	method := strings.ToUpper(config.Method)
	if method == "" {
		method = "GET"
	}

	var req *http.Request
	var err error

	if method == "GET" {
		query := url.Values{}
		for key, value := range params {
			query.Set(key, fmt.Sprintf("%v", value))
		}
		requestURL := config.URL
		if encoded := query.Encode(); encoded != "" {
			separator := "?"
			if strings.Contains(requestURL, "?") {
				separator = "&"
			}
			requestURL += separator + encoded
		}
		req, err = http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	} else {
		body := substituteAny(config.Body, vars)
		encoded, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return nil, marshalErr
		}
		req, err = http.NewRequestWithContext(ctx, "POST", config.URL, bytes.NewReader(encoded))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, err
	}

	for key, value := range config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", classifyStatus(resp.StatusCode), config.URL, resp.Status)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	return result, nil
}

// FetchPlaybackURL resolves a signed playback URL for one track. This is
// the metered call: one credit per invocation, no exceptions. The metadata
// that rides along is returned so callers can seed the metadata cache for
// free.
func (c *TuneHubClient) FetchPlaybackURL(ctx context.Context, ref models.TrackRef) (string, models.MetadataEntry, error) {
	var metadata models.MetadataEntry

	payload := map[string]string{
		"platform": string(ref.Platform),
		"ids":      ref.TrackID,
		"quality":  string(ref.Quality),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", metadata, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/parse", bytes.NewReader(encoded))
	if err != nil {
		return "", metadata, err
	}
	req.Header.Set("X-API-Key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", metadata, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", metadata, fmt.Errorf("%w: parse returned %s", classifyStatus(resp.StatusCode), resp.Status)
	}

	var envelope models.TuneHubEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", metadata, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if envelope.Code != 0 {
		return "", metadata, classifyEnvelope(envelope.Code, envelope.Message)
	}

	// The inner payload is data.data[] or data.songs[] depending on API age
	var inner struct {
		Data  []models.TuneHubParsedSong `json:"data"`
		Songs []models.TuneHubParsedSong `json:"songs"`
	}
	if err := json.Unmarshal(envelope.Data, &inner); err != nil {
		return "", metadata, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	songs := inner.Data
	if len(songs) == 0 {
		songs = inner.Songs
	}
	if len(songs) == 0 || songs[0].URL == "" {
		return "", metadata, fmt.Errorf("%w: no playback URL for %s", ErrNotFound, ref.Key())
	}

	parsed := songs[0]
	metadata = models.MetadataEntry{
		ID:              ref.SongID(),
		Title:           parsed.Info.Name,
		Artist:          parsed.Info.Artist,
		Album:           parsed.Info.Album,
		CoverURL:        utilities.EnsureHTTPS(parsed.Cover),
		Lyrics:          parsed.Lyrics,
		DurationSeconds: parsed.Info.Duration,
	}

	return parsed.URL, metadata, nil
}

// FetchMetadata resolves metadata for one song. Netease has free detail and
// lyric endpoints; qq and kuwo only expose this through the metered parse
// call, so a cold lyrics request for those platforms costs a credit.
func (c *TuneHubClient) FetchMetadata(ctx context.Context, songID string, platform models.Platform) (models.MetadataEntry, error) {
	if platform == models.PlatformNetease {
		return c.fetchNeteaseMetadata(ctx, songID)
	}

	_, trackID := utilities.SplitSongID(songID, platform)
	_, metadata, err := c.FetchPlaybackURL(ctx, models.TrackRef{
		Platform: platform,
		TrackID:  trackID,
		Quality:  c.DefaultQuality,
	})
	return metadata, err
}

func (c *TuneHubClient) fetchNeteaseMetadata(ctx context.Context, songID string) (models.MetadataEntry, error) {
	_, trackID := utilities.SplitSongID(songID, models.PlatformNetease)

	metadata := models.MetadataEntry{ID: songID, Title: "Unknown", Artist: "Unknown"}

	detail, err := c.neteaseGet(ctx, "https://music.163.com/api/song/detail?ids=["+url.QueryEscape(trackID)+"]")
	if err != nil {
		return metadata, err
	}

	songs := asSlice(detail["songs"])
	if len(songs) == 0 {
		return metadata, fmt.Errorf("%w: netease song %s", ErrNotFound, trackID)
	}

	track := asMap(songs[0])
	album := firstMap(track, "album", "al")
	metadata.Title = firstString(track, "name")
	metadata.Artist = joinArtistNames(firstSlice(track, "artists", "ar"))
	metadata.Album = firstString(album, "name")
	metadata.CoverURL = utilities.EnsureHTTPS(firstString(album, "picUrl"))
	if duration := firstInt(track, "duration", "dt"); duration > 0 {
		metadata.DurationSeconds = duration / 1000
	}

	lyric, err := c.neteaseGet(ctx, "https://music.163.com/api/song/lyric?id="+url.QueryEscape(trackID)+"&lv=-1&kv=-1&tv=-1")
	if err != nil {
		logger.Log.Warn("failed to fetch netease lyrics for " + songID + ". error: " + err.Error())
		return metadata, nil
	}
	metadata.Lyrics = firstString(firstMap(lyric, "lrc"), "lyric")

	return metadata, nil
}

func (c *TuneHubClient) neteaseGet(ctx context.Context, requestURL string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Referer", "https://music.163.com/")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: netease returned %s", classifyStatus(resp.StatusCode), resp.Status)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return result, nil
}

// Search searches one platform. QQ bypasses the method config because the
// hosted one is outdated; the desktop search endpoint needs a req_1 wrapper
// and search_type 0.
func (c *TuneHubClient) Search(ctx context.Context, platform models.Platform, keyword string, page int, pageSize int) ([]models.Song, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 30
	}

	var result map[string]any
	var err error

	if platform == models.PlatformQQ {
		result, err = c.searchQQ(ctx, keyword, page, pageSize)
	} else {
		var config models.TuneHubMethodConfig
		config, err = c.getMethodConfig(ctx, platform, "search")
		if err == nil {
			result, err = c.executeMethod(ctx, config, map[string]string{
				"keyword":  keyword,
				"page":     fmt.Sprint(page),
				"limit":    fmt.Sprint(pageSize),
				"pageSize": fmt.Sprint(pageSize),
			})
		}
	}
	if err != nil {
		return nil, err
	}

	songs := parseSearchResult(platform, result)

	// Netease search results carry no picUrl; backfill from the free
	// detail endpoint so covers work without spending credits.
	if platform == models.PlatformNetease && len(songs) > 0 {
		c.backfillNeteaseCovers(ctx, songs)
	}

	return songs, nil
}

func (c *TuneHubClient) searchQQ(ctx context.Context, keyword string, page int, pageSize int) (map[string]any, error) {
	c.pace()

	body := map[string]any{
		"req_1": map[string]any{
			"method": "DoSearchForQQMusicDesktop",
			"module": "music.search.SearchCgiService",
			"param": map[string]any{
				"query":        keyword,
				"page_num":     page,
				"num_per_page": pageSize,
				"search_type":  0,
			},
		},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://u.y.qq.com/cgi-bin/musicu.fcg", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://y.qq.com/")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: qq search returned %s", classifyStatus(resp.StatusCode), resp.Status)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return result, nil
}

func (c *TuneHubClient) backfillNeteaseCovers(ctx context.Context, songs []models.Song) {
	ids := []string{}
	for _, song := range songs {
		_, trackID := utilities.SplitSongID(song.ID, models.PlatformNetease)
		ids = append(ids, trackID)
	}

	detail, err := c.neteaseGet(ctx, "https://music.163.com/api/song/detail?ids=["+strings.Join(ids, ",")+"]")
	if err != nil {
		logger.Log.Debug("netease cover backfill failed. error: " + err.Error())
		return
	}

	covers := map[string]string{}
	for _, item := range asSlice(detail["songs"]) {
		track := asMap(item)
		if track == nil {
			continue
		}
		if picURL := firstString(firstMap(track, "album", "al"), "picUrl"); picURL != "" {
			covers[firstString(track, "id")] = utilities.EnsureHTTPS(picURL)
		}
	}

	for index := range songs {
		_, trackID := utilities.SplitSongID(songs[index].ID, models.PlatformNetease)
		if picURL, ok := covers[trackID]; ok {
			songs[index].CoverURL = picURL
		}
	}
}

// GetToplists lists the top charts of one platform (free).
func (c *TuneHubClient) GetToplists(ctx context.Context, platform models.Platform) ([]models.Toplist, error) {
	config, err := c.getMethodConfig(ctx, platform, "toplists")
	if err != nil {
		return nil, err
	}

	result, err := c.executeMethod(ctx, config, nil)
	if err != nil {
		return nil, err
	}

	return parseToplists(platform, result), nil
}

// GetToplistDetail fetches the songs of one toplist (free).
func (c *TuneHubClient) GetToplistDetail(ctx context.Context, platform models.Platform, toplistID string) (models.ToplistDetail, error) {
	config, err := c.getMethodConfig(ctx, platform, "toplist")
	if err != nil {
		return models.ToplistDetail{}, err
	}

	result, err := c.executeMethod(ctx, config, map[string]string{"id": toplistID})
	if err != nil {
		return models.ToplistDetail{}, err
	}

	detail := parseToplistDetail(platform, result)
	if detail.ID == "" {
		detail.ID = toplistID
	}

	return detail, nil
}

// ProxyImage fetches cover art bytes on behalf of the client. Some
// platforms refuse requests without a browser referer, and iOS Subsonic
// clients are happier with proxied bytes than with redirects.
func (c *TuneHubClient) ProxyImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Referer", "https://music.163.com/")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: cover fetch returned %s", classifyStatus(resp.StatusCode), resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return body, contentType, nil
}
