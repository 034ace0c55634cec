package models

import (
	"encoding/json"
	"time"
)

// TuneHubEnvelope is the outer shape of every TuneHub V3 API response.
type TuneHubEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// TuneHubMethodConfig describes how to call a platform endpoint. Fetched
// from /v1/methods/{platform}/{function} (free, no credits) and executed
// client-side after template substitution.
type TuneHubMethodConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Params  map[string]any    `json:"params"`
	Headers map[string]string `json:"headers"`
	Body    map[string]any    `json:"body"`
}

// TuneHubParsedSong is one entry of a /v1/parse result (metered).
type TuneHubParsedSong struct {
	URL    string                `json:"url"`
	Cover  string                `json:"cover"`
	Lyrics string                `json:"lyrics"`
	Info   TuneHubParsedSongInfo `json:"info"`
}

type TuneHubParsedSongInfo struct {
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Duration int    `json:"duration"`
}

// Song is the normalized song shape shared by search, playlists and the
// Subsonic formatting layer. ID carries the platform prefix
// ("netease:12345").
type Song struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	CoverURL string `json:"coverUrl"`
	Duration int    `json:"duration"`
	Platform string `json:"platform"`
}

type Toplist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CoverURL    string `json:"coverUrl"`
	Description string `json:"description"`
	TrackCount  int    `json:"trackCount"`
	Platform    string `json:"platform"`
}

type ToplistDetail struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	CoverURL string `json:"coverUrl"`
	Songs    []Song `json:"songs"`
}

// CachedMetadataEntry is the on-disk shape of a persisted metadata cache
// entry.
type CachedMetadataEntry struct {
	Entry     MetadataEntry `json:"entry"`
	Timestamp time.Time     `json:"timestamp"`
}
