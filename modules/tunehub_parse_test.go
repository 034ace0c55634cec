package modules

import (
	"encoding/json"
	"testing"

	"github.com/spacex-3/music-tune/models"
)

func decodeJSON(t *testing.T, raw string) map[string]any {
	t.Helper()

	var result map[string]any
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("bad test fixture: %v", err)
	}
	return result
}

func TestNormalizeSongNetease(t *testing.T) {
	track := decodeJSON(t, `{
		"id": 347230,
		"name": "海阔天空",
		"ar": [{"name": "Beyond"}],
		"al": {"name": "乐与怒", "picUrl": "http://p1.music.126.net/pic.jpg"},
		"dt": 326000
	}`)

	song := normalizeSong(models.PlatformNetease, track)

	if song.ID != "netease:347230" {
		t.Fatalf("unexpected id: %s", song.ID)
	}
	if song.Title != "海阔天空" || song.Artist != "Beyond" || song.Album != "乐与怒" {
		t.Fatalf("unexpected song: %+v", song)
	}
	if song.Duration != 326 {
		t.Fatalf("expected dt milliseconds to become seconds, got %d", song.Duration)
	}
	if song.CoverURL != "https://p1.music.126.net/pic.jpg" {
		t.Fatalf("cover not upgraded to https: %s", song.CoverURL)
	}
}

func TestNormalizeSongQQPrefersMid(t *testing.T) {
	track := decodeJSON(t, `{
		"id": 97773,
		"mid": "003rsUUO0Wvuul",
		"name": "十年",
		"singer": [{"name": "陈奕迅"}],
		"album": {"name": "黑白灰", "mid": "000MkMni19ClKG"},
		"interval": 205
	}`)

	song := normalizeSong(models.PlatformQQ, track)

	if song.ID != "qq:003rsUUO0Wvuul" {
		t.Fatalf("expected the mid over the numeric id, got %s", song.ID)
	}
	if song.CoverURL != "https://y.qq.com/music/photo_new/T002R300x300M000000MkMni19ClKG.jpg" {
		t.Fatalf("unexpected cover: %s", song.CoverURL)
	}
	if song.Duration != 205 {
		t.Fatalf("unexpected duration: %d", song.Duration)
	}
}

func TestNormalizeSongKuwoStripsMusicPrefix(t *testing.T) {
	track := decodeJSON(t, `{
		"musicrid": "MUSIC_94239",
		"name": "曾经的你",
		"artist": "许巍",
		"album": "每一刻都是崭新的",
		"duration": 247
	}`)

	song := normalizeSong(models.PlatformKuwo, track)

	if song.ID != "kuwo:94239" {
		t.Fatalf("expected MUSIC_ prefix to be stripped, got %s", song.ID)
	}
	if song.Artist != "许巍" || song.Duration != 247 {
		t.Fatalf("unexpected song: %+v", song)
	}
}

func TestParseToplistsNetease(t *testing.T) {
	result := decodeJSON(t, `{
		"list": [
			{"id": 19723756, "name": "飙升榜", "coverImgUrl": "https://p1.music.126.net/a.jpg", "trackCount": 100, "description": "刚刚更新"},
			{"id": 3779629, "name": "新歌榜", "picUrl": "https://p1.music.126.net/b.jpg", "trackCount": 100}
		]
	}`)

	toplists := parseToplists(models.PlatformNetease, result)

	if len(toplists) != 2 {
		t.Fatalf("expected 2 toplists, got %d", len(toplists))
	}
	if toplists[0].ID != "19723756" || toplists[0].Name != "飙升榜" {
		t.Fatalf("unexpected toplist: %+v", toplists[0])
	}
	if toplists[0].Platform != "netease" {
		t.Fatalf("platform not stamped: %+v", toplists[0])
	}
}

func TestParseToplistsQQGroupedLayout(t *testing.T) {
	result := decodeJSON(t, `{
		"toplist": {
			"data": {
				"group": [
					{"toplist": [
						{"topId": 26, "title": "热歌榜", "frontPicUrl": "https://y.qq.com/a.jpg", "songnum": 300}
					]},
					{"toplist": [
						{"topId": 4, "title": "流行指数榜"}
					]}
				]
			}
		}
	}`)

	toplists := parseToplists(models.PlatformQQ, result)

	if len(toplists) != 2 {
		t.Fatalf("expected 2 toplists, got %d", len(toplists))
	}
	if toplists[0].ID != "26" || toplists[0].TrackCount != 300 {
		t.Fatalf("unexpected toplist: %+v", toplists[0])
	}
	// Missing songnum falls back to 100
	if toplists[1].TrackCount != 100 {
		t.Fatalf("expected default track count, got %d", toplists[1].TrackCount)
	}
}

func TestParseToplistDetailNetease(t *testing.T) {
	result := decodeJSON(t, `{
		"playlist": {
			"id": 19723756,
			"name": "飙升榜",
			"coverImgUrl": "https://p1.music.126.net/cover.jpg",
			"tracks": [
				{"id": 1, "name": "Song A", "ar": [{"name": "A"}], "al": {"name": "Album A"}, "dt": 180000},
				{"id": 2, "name": "Song B", "ar": [{"name": "B"}], "al": {"name": "Album B"}, "dt": 200000}
			]
		}
	}`)

	detail := parseToplistDetail(models.PlatformNetease, result)

	if detail.Name != "飙升榜" || detail.ID != "19723756" {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	if len(detail.Songs) != 2 {
		t.Fatalf("expected 2 songs, got %d", len(detail.Songs))
	}
	if detail.Songs[0].ID != "netease:1" || detail.Songs[0].Duration != 180 {
		t.Fatalf("unexpected song: %+v", detail.Songs[0])
	}
}

func TestParseSearchResultQQDesktopLayout(t *testing.T) {
	result := decodeJSON(t, `{
		"req_1": {
			"data": {
				"body": {
					"song": {
						"list": [
							{"mid": "abc123", "name": "Result", "singer": [{"name": "Someone"}], "interval": 199}
						]
					}
				}
			}
		}
	}`)

	songs := parseSearchResult(models.PlatformQQ, result)

	if len(songs) != 1 {
		t.Fatalf("expected 1 song, got %d", len(songs))
	}
	if songs[0].ID != "qq:abc123" || songs[0].Artist != "Someone" {
		t.Fatalf("unexpected song: %+v", songs[0])
	}
}

func TestJoinArtistNames(t *testing.T) {
	artists := []any{
		map[string]any{"name": "A"},
		map[string]any{"name": "B"},
	}
	if got := joinArtistNames(artists); got != "A, B" {
		t.Fatalf("got %q", got)
	}
	if got := joinArtistNames(nil); got != "Unknown" {
		t.Fatalf("empty list should be Unknown, got %q", got)
	}
}
