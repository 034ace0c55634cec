package models

import (
	"errors"
	"strings"
)

type Platform string

const (
	PlatformNetease Platform = "netease"
	PlatformQQ      Platform = "qq"
	PlatformKuwo    Platform = "kuwo"
)

func ParsePlatform(value string) (Platform, error) {
	switch Platform(strings.ToLower(value)) {
	case PlatformNetease:
		return PlatformNetease, nil
	case PlatformQQ:
		return PlatformQQ, nil
	case PlatformKuwo:
		return PlatformKuwo, nil
	}
	return "", errors.New("unknown platform: " + value)
}

type Quality string

const (
	Quality128k      Quality = "128k"
	Quality320k      Quality = "320k"
	QualityFlac      Quality = "flac"
	QualityFlac24Bit Quality = "flac24bit"
)

func ParseQuality(value string) (Quality, error) {
	switch Quality(strings.ToLower(value)) {
	case Quality128k:
		return Quality128k, nil
	case Quality320k:
		return Quality320k, nil
	case QualityFlac:
		return QualityFlac, nil
	case QualityFlac24Bit:
		return QualityFlac24Bit, nil
	}
	return "", errors.New("unknown quality: " + value)
}

// TrackRef identifies one cacheable playback artifact. Different qualities
// of the same upstream track are different artifacts.
type TrackRef struct {
	Platform Platform `json:"platform"`
	TrackID  string   `json:"track_id"`
	Quality  Quality  `json:"quality"`
}

// Key is the cache key shared by the URL cache, the audio store and the
// in-flight download registry.
func (ref TrackRef) Key() string {
	return string(ref.Platform) + ":" + ref.TrackID + ":" + string(ref.Quality)
}

// SongID is the quality-independent identifier used for metadata,
// matching the wire format Subsonic clients see ("netease:12345").
func (ref TrackRef) SongID() string {
	return string(ref.Platform) + ":" + ref.TrackID
}

type MetadataEntry struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Album           string `json:"album"`
	CoverURL        string `json:"coverUrl"`
	Lyrics          string `json:"lyrics"`
	DurationSeconds int    `json:"duration"`
}

type PlaybackKind string

const (
	PlaybackLocal  PlaybackKind = "local"
	PlaybackRemote PlaybackKind = "remote"
)

// PlaybackSource is what the resolution pipeline hands to the protocol
// layer: either a local file path or a remote signed URL.
type PlaybackSource struct {
	Kind     PlaybackKind
	Location string
}
