package utilities

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spacex-3/music-tune/models"
)

func PrintASCII() {
	fmt.Println(``)
	fmt.Println(`M U S I C T U N E`)
	fmt.Println(``)
}

// SplitSongID splits a client-facing song ID ("netease:12345") into platform
// and upstream track ID. IDs without a platform prefix fall back to the
// configured default platform.
func SplitSongID(songID string, defaultPlatform models.Platform) (models.Platform, string) {
	if before, after, found := strings.Cut(songID, ":"); found {
		platform, err := models.ParsePlatform(before)
		if err == nil {
			return platform, after
		}
	}
	return defaultPlatform, songID
}

// SplitPlaylistID splits a composite playlist ID ("netease_19723756") into
// platform and upstream toplist ID.
func SplitPlaylistID(playlistID string, defaultPlatform models.Platform) (models.Platform, string) {
	if before, after, found := strings.Cut(playlistID, "_"); found {
		platform, err := models.ParsePlatform(before)
		if err == nil {
			return platform, after
		}
	}
	return defaultPlatform, playlistID
}

// QualityFromMaxBitRate maps the Subsonic maxBitRate parameter (kbps) onto a
// quality tier. Zero or absent means no limit, which keeps the default.
func QualityFromMaxBitRate(maxBitRate string, defaultQuality models.Quality) models.Quality {
	if maxBitRate == "" {
		return defaultQuality
	}

	bitrate, err := strconv.Atoi(maxBitRate)
	if err != nil || bitrate <= 0 {
		return defaultQuality
	}

	switch {
	case bitrate <= 128:
		return models.Quality128k
	case bitrate <= 320:
		return models.Quality320k
	default:
		return models.QualityFlac
	}
}

func QualityBitRate(quality models.Quality) int {
	switch quality {
	case models.QualityFlac:
		return 1411
	case models.QualityFlac24Bit:
		return 2304
	case models.Quality320k:
		return 320
	default:
		return 128
	}
}

func QualitySuffix(quality models.Quality) string {
	if quality == models.QualityFlac || quality == models.QualityFlac24Bit {
		return "flac"
	}
	return "mp3"
}

func QualityContentType(quality models.Quality) string {
	if quality == models.QualityFlac || quality == models.QualityFlac24Bit {
		return "audio/flac"
	}
	return "audio/mpeg"
}

// SanitizeFileComponent makes an upstream track ID safe as a file name
// component.
func SanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, ":", "_")
	value = strings.ReplaceAll(value, "/", "_")
	return value
}

// EnsureHTTPS upgrades plain http URLs, since most Subsonic clients refuse
// mixed content for cover art.
func EnsureHTTPS(url string) string {
	if strings.HasPrefix(url, "http:") {
		return "https:" + strings.TrimPrefix(url, "http:")
	}
	return url
}

// DecodeSubsonicPassword handles the optional "enc:" hex encoding of the
// Subsonic p parameter.
func DecodeSubsonicPassword(password string) string {
	if !strings.HasPrefix(password, "enc:") {
		return password
	}

	decoded, err := hex.DecodeString(strings.TrimPrefix(password, "enc:"))
	if err != nil {
		return password
	}

	return string(decoded)
}
