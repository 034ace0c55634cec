package modules

import (
	"strconv"
	"strings"

	"github.com/spacex-3/music-tune/models"
	"github.com/spacex-3/music-tune/utilities"
)

// The free platform endpoints answer in loosely shaped, platform-specific
// JSON, often with several historical layouts live at once. These helpers
// walk decoded map[string]any payloads and try key alternatives in order,
// mirroring what each platform actually returns.

func asMap(value any) map[string]any {
	typed, _ := value.(map[string]any)
	return typed
}

func asSlice(value any) []any {
	typed, _ := value.([]any)
	return typed
}

func firstMap(container map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		if inner := asMap(container[key]); inner != nil {
			return inner
		}
	}
	return nil
}

func firstSlice(container map[string]any, keys ...string) []any {
	for _, key := range keys {
		if inner := asSlice(container[key]); len(inner) > 0 {
			return inner
		}
	}
	return nil
}

func firstString(container map[string]any, keys ...string) string {
	for _, key := range keys {
		switch typed := container[key].(type) {
		case string:
			if typed != "" {
				return typed
			}
		case float64:
			return strconv.FormatInt(int64(typed), 10)
		}
	}
	return ""
}

func firstInt(container map[string]any, keys ...string) int {
	for _, key := range keys {
		switch typed := container[key].(type) {
		case float64:
			return int(typed)
		case string:
			if parsed, err := strconv.Atoi(typed); err == nil {
				return parsed
			}
		}
	}
	return 0
}

func parseToplists(platform models.Platform, result map[string]any) []models.Toplist {
	toplists := []models.Toplist{}

	switch platform {
	case models.PlatformNetease:
		list := asSlice(result["list"])
		if list == nil {
			list = asSlice(firstMap(result, "result")["list"])
		}
		for _, item := range list {
			entry := asMap(item)
			if entry == nil {
				continue
			}
			toplists = append(toplists, models.Toplist{
				ID:          firstString(entry, "id"),
				Name:        firstString(entry, "name"),
				CoverURL:    firstString(entry, "coverImgUrl", "picUrl"),
				Description: firstString(entry, "description"),
				TrackCount:  firstInt(entry, "trackCount"),
				Platform:    string(platform),
			})
		}

	case models.PlatformQQ:
		toplistData := firstMap(result, "toplist")
		if toplistData == nil {
			toplistData = result
		}
		data := firstMap(toplistData, "data")
		if data == nil {
			data = toplistData
		}

		for _, groupItem := range asSlice(data["group"]) {
			group := asMap(groupItem)
			for _, item := range asSlice(group["toplist"]) {
				entry := asMap(item)
				if entry == nil {
					continue
				}
				trackCount := firstInt(entry, "songnum")
				if trackCount == 0 {
					trackCount = 100
				}
				toplists = append(toplists, models.Toplist{
					ID:          firstString(entry, "topId", "id"),
					Name:        firstString(entry, "title", "topTitle", "name"),
					CoverURL:    firstString(entry, "frontPicUrl", "picUrl"),
					Description: firstString(entry, "intro"),
					TrackCount:  trackCount,
					Platform:    string(platform),
				})
			}
		}

		// Older flat layout
		if len(toplists) == 0 {
			for _, item := range firstSlice(data, "topList", "list") {
				entry := asMap(item)
				if entry == nil {
					continue
				}
				toplists = append(toplists, models.Toplist{
					ID:          firstString(entry, "id", "topId"),
					Name:        firstString(entry, "topTitle", "title", "name"),
					CoverURL:    firstString(entry, "picUrl", "frontPicUrl"),
					Description: firstString(entry, "intro"),
					TrackCount:  firstInt(entry, "songnum"),
					Platform:    string(platform),
				})
			}
		}

	case models.PlatformKuwo:
		children := asSlice(result["child"])
		if len(children) > 0 {
			for _, item := range children {
				entry := asMap(item)
				if entry == nil {
					continue
				}
				toplists = append(toplists, models.Toplist{
					ID:          firstString(entry, "sourceid", "id"),
					Name:        firstString(entry, "name", "disname"),
					CoverURL:    firstString(entry, "pic", "img"),
					Description: firstString(entry, "info"),
					TrackCount:  100, // kuwo does not report a count
					Platform:    string(platform),
				})
			}
		} else {
			data := firstMap(result, "data")
			if data == nil {
				data = result
			}
			for _, item := range firstSlice(data, "list", "bangMenu") {
				entry := asMap(item)
				if entry == nil {
					continue
				}
				toplists = append(toplists, models.Toplist{
					ID:          firstString(entry, "id", "sourceid"),
					Name:        firstString(entry, "name"),
					CoverURL:    firstString(entry, "pic", "img"),
					Description: firstString(entry, "intro"),
					TrackCount:  firstInt(entry, "num"),
					Platform:    string(platform),
				})
			}
		}
	}

	return toplists
}

func parseToplistDetail(platform models.Platform, result map[string]any) models.ToplistDetail {
	detail := models.ToplistDetail{}

	switch platform {
	case models.PlatformNetease:
		playlist := firstMap(result, "playlist", "result")
		if playlist == nil {
			playlist = result
		}
		detail.ID = firstString(playlist, "id")
		detail.Name = firstString(playlist, "name")
		detail.CoverURL = firstString(playlist, "coverImgUrl")
		for _, item := range asSlice(playlist["tracks"]) {
			if track := asMap(item); track != nil {
				detail.Songs = append(detail.Songs, normalizeSong(platform, track))
			}
		}

	case models.PlatformQQ:
		toplistData := firstMap(result, "toplist")
		if toplistData == nil {
			toplistData = result
		}
		data := firstMap(toplistData, "data")
		if data == nil {
			data = toplistData
		}

		detail.Name = firstString(data, "title", "name")
		detail.CoverURL = firstString(data, "frontPicUrl")

		songlist := firstSlice(data, "songlist", "list")
		if songlist == nil {
			songlist = asSlice(firstMap(data, "song")["list"])
		}
		for _, item := range songlist {
			if track := asMap(item); track != nil {
				detail.Songs = append(detail.Songs, normalizeSong(platform, track))
			}
		}

	case models.PlatformKuwo:
		detail.Name = firstString(result, "name", "leader")
		detail.CoverURL = firstString(result, "pic", "v9_pic2")

		musiclist := firstSlice(result, "musiclist", "musicList")
		if musiclist == nil {
			data := firstMap(result, "data")
			musiclist = firstSlice(data, "musiclist", "musicList", "list")
		}
		for _, item := range musiclist {
			if track := asMap(item); track != nil {
				detail.Songs = append(detail.Songs, normalizeSong(platform, track))
			}
		}
	}

	return detail
}

func parseSearchResult(platform models.Platform, result map[string]any) []models.Song {
	songs := []models.Song{}

	switch platform {
	case models.PlatformNetease:
		data := firstMap(result, "result")
		if data == nil {
			data = result
		}
		for _, item := range asSlice(data["songs"]) {
			if track := asMap(item); track != nil {
				songs = append(songs, normalizeSong(platform, track))
			}
		}

	case models.PlatformQQ:
		// New desktop-search layout: req_1.data.body.song.list,
		// older variants use req.… or data.song.list.
		songData := searchBodySong(result, "req_1")
		if songData == nil {
			songData = searchBodySong(result, "req")
		}
		if songData == nil {
			songData = firstMap(asMap(result["data"]), "song")
			if songData == nil {
				songData = asMap(result["data"])
			}
		}
		for _, item := range firstSlice(songData, "list", "itemlist") {
			if track := asMap(item); track != nil {
				songs = append(songs, normalizeSong(platform, track))
			}
		}

	case models.PlatformKuwo:
		data := firstMap(result, "data")
		if data == nil {
			data = result
		}
		for _, item := range firstSlice(data, "abslist", "list") {
			if track := asMap(item); track != nil {
				songs = append(songs, normalizeSong(platform, track))
			}
		}
	}

	return songs
}

func searchBodySong(result map[string]any, requestKey string) map[string]any {
	body := firstMap(asMap(firstMap(result, requestKey)["data"]), "body")
	song := firstMap(body, "song")
	if len(asSlice(song["list"])) == 0 {
		return nil
	}
	return song
}

func normalizeSong(platform models.Platform, track map[string]any) models.Song {
	switch platform {
	case models.PlatformNetease:
		artists := firstSlice(track, "ar", "artists")
		album := firstMap(track, "al", "album")

		// Cover URLs cannot be constructed from a bare picId; only use one
		// the API handed us. The parse call fills it in at playback time.
		coverURL := utilities.EnsureHTTPS(firstString(album, "picUrl"))

		duration := firstInt(track, "dt")
		if duration > 0 {
			duration /= 1000 // ms to seconds
		} else {
			duration = firstInt(track, "duration")
		}

		return models.Song{
			ID:       string(platform) + ":" + firstString(track, "id"),
			Title:    firstString(track, "name"),
			Artist:   joinArtistNames(artists),
			Album:    firstString(album, "name"),
			CoverURL: coverURL,
			Duration: duration,
			Platform: string(platform),
		}

	case models.PlatformQQ:
		singers := asSlice(track["singer"])
		album := firstMap(track, "album")

		// TuneHub wants the alphanumeric mid, not the numeric id
		songID := firstString(track, "mid", "songmid")
		if songID == "" {
			songID = firstString(track, "id", "songid")
		}

		coverURL := ""
		if albumMid := firstString(album, "mid"); albumMid != "" {
			coverURL = "https://y.qq.com/music/photo_new/T002R300x300M000" + albumMid + ".jpg"
		}

		albumName := firstString(album, "name")
		if albumName == "" {
			albumName = firstString(track, "albumname")
		}

		return models.Song{
			ID:       string(platform) + ":" + songID,
			Title:    firstString(track, "name", "songname"),
			Artist:   joinArtistNames(singers),
			Album:    albumName,
			CoverURL: coverURL,
			Duration: firstInt(track, "interval"),
			Platform: string(platform),
		}

	case models.PlatformKuwo:
		songID := firstString(track, "id", "rid")
		if songID == "" {
			songID = strings.TrimPrefix(firstString(track, "musicrid"), "MUSIC_")
		}

		return models.Song{
			ID:       string(platform) + ":" + songID,
			Title:    firstString(track, "name", "SONGNAME"),
			Artist:   firstString(track, "artist", "ARTIST"),
			Album:    firstString(track, "album", "ALBUM"),
			CoverURL: utilities.EnsureHTTPS(firstString(track, "pic", "web_albumpic_short")),
			Duration: firstInt(track, "song_duration", "duration"),
			Platform: string(platform),
		}
	}

	return models.Song{ID: string(platform) + ":unknown", Title: "Unknown", Artist: "Unknown"}
}

func joinArtistNames(artists []any) string {
	names := []string{}
	for _, item := range artists {
		if artist := asMap(item); artist != nil {
			if name := firstString(artist, "name"); name != "" {
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return "Unknown"
	}
	return strings.Join(names, ", ")
}
