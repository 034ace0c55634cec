package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/spacex-3/music-tune/logger"
	"github.com/spacex-3/music-tune/models"
	"github.com/spacex-3/music-tune/modules"
	"github.com/spacex-3/music-tune/utilities"
)

const (
	playlistCacheTTL  = 6 * time.Hour
	playlistCacheSize = 128
)

var platformDisplayNames = map[models.Platform]string{
	models.PlatformNetease: "网易云",
	models.PlatformQQ:      "QQ音乐",
	models.PlatformKuwo:    "酷我音乐",
}

// SubsonicController holds the handles every /rest handler needs. Playlist
// listings and details are cached for six hours; they change rarely and
// each refresh is a burst of free upstream calls worth avoiding.
type SubsonicController struct {
	Config   models.ConfigStruct
	Client   *modules.TuneHubClient
	Metadata *modules.MetadataCache
	Resolver *modules.Resolver

	playlistLists   *expirable.LRU[string, []models.Toplist]
	playlistDetails *expirable.LRU[string, models.ToplistDetail]
	m3uFiles        *expirable.LRU[string, string]
}

func NewSubsonicController(config models.ConfigStruct, client *modules.TuneHubClient, metadata *modules.MetadataCache, resolver *modules.Resolver) *SubsonicController {
	return &SubsonicController{
		Config:          config,
		Client:          client,
		Metadata:        metadata,
		Resolver:        resolver,
		playlistLists:   expirable.NewLRU[string, []models.Toplist](playlistCacheSize, nil, playlistCacheTTL),
		playlistDetails: expirable.NewLRU[string, models.ToplistDetail](playlistCacheSize, nil, playlistCacheTTL),
		m3uFiles:        expirable.NewLRU[string, string](playlistCacheSize, nil, playlistCacheTTL),
	}
}

func (ctrl *SubsonicController) defaultPlatform() models.Platform {
	platform, err := models.ParsePlatform(ctrl.Config.DefaultPlatform)
	if err != nil {
		return models.PlatformNetease
	}
	return platform
}

func (ctrl *SubsonicController) defaultQuality() models.Quality {
	quality, err := models.ParseQuality(ctrl.Config.DefaultQuality)
	if err != nil {
		return models.Quality320k
	}
	return quality
}

// ============ System endpoints ============

func (ctrl *SubsonicController) Ping(context *gin.Context) {
	Respond(context, NewResponse())
}

func (ctrl *SubsonicController) GetLicense(context *gin.Context) {
	response := NewResponse()
	response.License = &models.SubsonicLicense{
		Valid:          true,
		Email:          "musictune@proxy.local",
		LicenseExpires: "2099-12-31T23:59:59",
	}
	Respond(context, response)
}

// ============ Browsing endpoints ============

func (ctrl *SubsonicController) GetMusicFolders(context *gin.Context) {
	response := NewResponse()
	response.MusicFolders = &models.SubsonicMusicFolders{
		Folders: []models.SubsonicMusicFolder{
			{ID: "1", Name: "MusicTune - NETEASE"},
			{ID: "2", Name: "MusicTune - QQ"},
			{ID: "3", Name: "MusicTune - KUWO"},
		},
	}
	Respond(context, response)
}

func (ctrl *SubsonicController) GetIndexes(context *gin.Context) {
	response := NewResponse()
	response.Indexes = &models.SubsonicIndexes{
		LastModified:    0,
		IgnoredArticles: "The El La Los Las Le Les",
	}
	Respond(context, response)
}

// ============ Playlist endpoints ============

func (ctrl *SubsonicController) GetPlaylists(context *gin.Context) {
	platform := context.DefaultQuery("platform", "all")

	cacheKey := "playlists_filtered_" + platform
	if cached, ok := ctrl.playlistLists.Get(cacheKey); ok {
		logger.Log.Info("[CACHE HIT] returning cached playlists for " + platform)
		Respond(context, ctrl.formatPlaylists(cached))
		return
	}

	logger.Log.Info("[API CALL] fetching toplists from " + platform)

	platformsToFetch := []models.Platform{}
	if platform == "all" {
		for _, candidate := range []models.Platform{models.PlatformNetease, models.PlatformQQ} {
			if len(ctrl.Config.AllowedPlaylists[string(candidate)]) > 0 {
				platformsToFetch = append(platformsToFetch, candidate)
			}
		}
	} else {
		parsed, err := models.ParsePlatform(platform)
		if err != nil {
			RespondError(context, http.StatusOK, 0, err.Error())
			return
		}
		platformsToFetch = append(platformsToFetch, parsed)
	}

	allToplists := []models.Toplist{}
	for _, candidate := range platformsToFetch {
		toplists, err := ctrl.Client.GetToplists(context.Request.Context(), candidate)
		if err != nil {
			logger.Log.Warn("failed to get toplists from " + string(candidate) + ". error: " + err.Error())
			continue
		}
		allToplists = append(allToplists, toplists...)
	}

	// Whitelist filter: a platform with an empty whitelist shows nothing
	filtered := []models.Toplist{}
	for _, toplist := range allToplists {
		for _, allowedID := range ctrl.Config.AllowedPlaylists[toplist.Platform] {
			if allowedID == toplist.ID {
				filtered = append(filtered, toplist)
				break
			}
		}
	}

	logger.Log.Info(fmt.Sprintf("[FILTER] filtered %d -> %d playlists", len(allToplists), len(filtered)))

	ctrl.playlistLists.Add(cacheKey, filtered)

	Respond(context, ctrl.formatPlaylists(filtered))
}

func (ctrl *SubsonicController) GetPlaylist(context *gin.Context) {
	playlistID := context.Query("id")
	if playlistID == "" {
		RespondError(context, http.StatusOK, 10, "Required parameter is missing: id")
		return
	}

	if cached, ok := ctrl.playlistDetails.Get(playlistID); ok {
		logger.Log.Info("[CACHE HIT] returning cached playlist: " + playlistID)
		Respond(context, ctrl.formatPlaylistDetail(playlistID, cached))
		return
	}

	platform, actualID := utilities.SplitPlaylistID(playlistID, ctrl.defaultPlatform())

	logger.Log.Info("[API CALL] fetching playlist detail: " + playlistID)

	detail, err := ctrl.Client.GetToplistDetail(context.Request.Context(), platform, actualID)
	if err != nil {
		logger.Log.Error("failed to get playlist. error: " + err.Error())
		RespondError(context, http.StatusOK, 0, err.Error())
		return
	}

	// Seed the metadata cache from the listing so cover art works before
	// the first play; Put never downgrades an entry that already has lyrics
	for _, song := range detail.Songs {
		ctrl.Metadata.Put(models.MetadataEntry{
			ID:              song.ID,
			Title:           song.Title,
			Artist:          song.Artist,
			Album:           song.Album,
			CoverURL:        song.CoverURL,
			DurationSeconds: song.Duration,
		})
	}

	ctrl.playlistDetails.Add(playlistID, detail)
	logger.Log.Info(fmt.Sprintf("[CACHED] stored playlist %s with %d songs", playlistID, len(detail.Songs)))

	Respond(context, ctrl.formatPlaylistDetail(playlistID, detail))
}

// ============ Search endpoints ============

func (ctrl *SubsonicController) Search(context *gin.Context) {
	query := context.Query("query")
	if query == "" {
		RespondError(context, http.StatusOK, 10, "Required parameter is missing: query")
		return
	}

	allSongs := []models.Song{}

	if platformParam := context.Query("platform"); platformParam != "" {
		platform, err := models.ParsePlatform(platformParam)
		if err != nil {
			RespondError(context, http.StatusOK, 0, err.Error())
			return
		}
		songs, err := ctrl.Client.Search(context.Request.Context(), platform, query, 1, 30)
		if err != nil {
			RespondError(context, http.StatusOK, 0, err.Error())
			return
		}
		allSongs = songs
	} else {
		// Search qq and netease in parallel
		var waitGroup sync.WaitGroup
		var resultMutex sync.Mutex

		for _, platform := range []models.Platform{models.PlatformQQ, models.PlatformNetease} {
			waitGroup.Add(1)
			go func(platform models.Platform) {
				defer waitGroup.Done()
				songs, err := ctrl.Client.Search(context.Request.Context(), platform, query, 1, 30)
				if err != nil {
					logger.Log.Warn("search failed for " + string(platform) + ". error: " + err.Error())
					return
				}
				resultMutex.Lock()
				allSongs = append(allSongs, songs...)
				resultMutex.Unlock()
			}(platform)
		}
		waitGroup.Wait()
	}

	for _, song := range allSongs {
		if song.CoverURL != "" {
			ctrl.Metadata.Put(models.MetadataEntry{
				ID:              song.ID,
				Title:           song.Title,
				Artist:          song.Artist,
				Album:           song.Album,
				CoverURL:        song.CoverURL,
				DurationSeconds: song.Duration,
			})
		}
	}

	result := &models.SubsonicSearchResult{Songs: []models.SubsonicSong{}}
	for _, song := range allSongs {
		formatted := ctrl.formatSong(song)
		platform, _ := utilities.SplitSongID(song.ID, ctrl.defaultPlatform())
		if prefix, ok := platformDisplayNames[platform]; ok {
			formatted.Title = prefix + " - " + formatted.Title
		}
		result.Songs = append(result.Songs, formatted)
	}

	response := NewResponse()
	response.SearchResult2 = result
	Respond(context, response)
}

// ============ Media endpoints ============

func (ctrl *SubsonicController) Stream(context *gin.Context) {
	songID := context.Query("id")
	if songID == "" {
		RespondError(context, http.StatusOK, 10, "Required parameter is missing: id")
		return
	}

	platform, actualID := utilities.SplitSongID(songID, ctrl.defaultPlatform())
	quality := utilities.QualityFromMaxBitRate(context.Query("maxBitRate"), ctrl.defaultQuality())

	ref := models.TrackRef{Platform: platform, TrackID: actualID, Quality: quality}

	source, err := ctrl.Resolver.ResolvePlayback(context.Request.Context(), ref)
	if err != nil {
		switch {
		case errors.Is(err, modules.ErrNotFound):
			RespondError(context, http.StatusOK, 70, "Song not found or not available")
		case errors.Is(err, modules.ErrInsufficientCredits):
			RespondError(context, http.StatusOK, 0, "TuneHub credits exhausted")
		case errors.Is(err, modules.ErrRateLimited):
			RespondError(context, http.StatusOK, 0, "Upstream rate limited, try again later")
		default:
			RespondError(context, http.StatusOK, 0, err.Error())
		}
		return
	}

	if source.Kind == models.PlaybackLocal {
		context.Header("Content-Type", utilities.QualityContentType(quality))
		context.File(source.Location)
		return
	}

	context.Redirect(http.StatusFound, source.Location)
}

func (ctrl *SubsonicController) GetSong(context *gin.Context) {
	songID := context.Query("id")
	if songID == "" {
		RespondError(context, http.StatusOK, 10, "Required parameter is missing: id")
		return
	}

	response := NewResponse()

	if entry, ok := ctrl.Metadata.Peek(songID); ok {
		logger.Log.Info("[CACHE HIT] returning cached metadata for " + songID)
		song := ctrl.formatMetadata(entry)
		response.Song = &song
		Respond(context, response)
		return
	}

	// Metadata arrives when the song is first played; return a placeholder
	song := ctrl.formatSong(models.Song{ID: songID, Title: "Loading...", Artist: "Loading..."})
	response.Song = &song
	Respond(context, response)
}

func (ctrl *SubsonicController) GetCoverArt(context *gin.Context) {
	coverID := context.Query("id")
	if coverID == "" {
		context.Status(http.StatusNotFound)
		return
	}

	coverURL := ctrl.resolveCoverURL(coverID)
	if coverURL == "" {
		context.Status(http.StatusNotFound)
		return
	}

	// Proxy the bytes rather than redirecting; iOS clients choke on
	// redirects to referer-guarded CDNs
	logger.Log.Info("[PROXY] fetching cover art: " + truncate(coverURL, 80))
	body, contentType, err := ctrl.Client.ProxyImage(context.Request.Context(), coverURL)
	if err != nil {
		logger.Log.Warn("[PROXY] cover fetch failed, redirecting instead. error: " + err.Error())
		context.Redirect(http.StatusFound, coverURL)
		return
	}

	context.Data(http.StatusOK, contentType, body)
}

func (ctrl *SubsonicController) resolveCoverURL(coverID string) string {
	switch {
	case strings.HasPrefix(coverID, "pl-"):
		playlistID := strings.TrimPrefix(coverID, "pl-")
		if cached, ok := ctrl.playlistDetails.Get(playlistID); ok && cached.CoverURL != "" {
			return cached.CoverURL
		}
		platform, actualID := utilities.SplitPlaylistID(playlistID, ctrl.defaultPlatform())
		return fallbackCoverURL(platform, actualID, true)

	case strings.HasPrefix(coverID, "al-"):
		// albumId equals the song ID in this server
		albumID := strings.TrimPrefix(coverID, "al-")
		if entry, ok := ctrl.Metadata.Peek(albumID); ok && entry.CoverURL != "" {
			return entry.CoverURL
		}
		platform, actualID := utilities.SplitSongID(albumID, ctrl.defaultPlatform())
		return fallbackCoverURL(platform, actualID, false)

	case strings.Contains(coverID, ":"):
		if entry, ok := ctrl.Metadata.Peek(coverID); ok && entry.CoverURL != "" {
			return entry.CoverURL
		}
		platform, actualID := utilities.SplitSongID(coverID, ctrl.defaultPlatform())
		return fallbackCoverURL(platform, actualID, false)
	}

	return ""
}

func fallbackCoverURL(platform models.Platform, id string, playlist bool) string {
	switch platform {
	case models.PlatformNetease:
		if playlist {
			return "https://p1.music.126.net/playlist_cover_" + id + ".jpg"
		}
		return "https://p1.music.126.net/song_cover_" + id + ".jpg"
	case models.PlatformQQ:
		return "https://y.qq.com/mediastyle/global/img/album_300.png"
	default:
		return "https://via.placeholder.com/300x300?text=MusicTune"
	}
}

func (ctrl *SubsonicController) GetLyrics(context *gin.Context) {
	songID := context.Query("id")
	artist := context.Query("artist")
	title := context.Query("title")

	lyricsText := ""

	if songID != "" {
		platform, _ := utilities.SplitSongID(songID, ctrl.defaultPlatform())

		if entry, ok := ctrl.Metadata.Peek(songID); ok && entry.Lyrics != "" {
			logger.Log.Info("[CACHE HIT] returning cached lyrics for " + songID)
			lyricsText = entry.Lyrics
		} else {
			// Netease resolves through the free lyric endpoint; qq and kuwo
			// only expose lyrics via the metered parse call
			entry, err := ctrl.Metadata.Get(context.Request.Context(), songID, platform)
			if err != nil {
				logger.Log.Warn("failed to fetch lyrics for " + songID + ". error: " + err.Error())
			} else {
				lyricsText = entry.Lyrics
			}
		}
	}

	response := NewResponse()
	response.Lyrics = &models.SubsonicLyrics{
		Artist: artist,
		Title:  title,
		Value:  lyricsText,
	}
	Respond(context, response)
}

// ============ Stub endpoints ============

func (ctrl *SubsonicController) GetAlbumList(context *gin.Context) {
	response := NewResponse()
	response.AlbumList2 = &models.SubsonicAlbumList{}
	Respond(context, response)
}

func (ctrl *SubsonicController) GetArtists(context *gin.Context) {
	response := NewResponse()
	response.Artists = &models.SubsonicArtists{IgnoredArticles: "The El La Los Las Le Les"}
	Respond(context, response)
}

func (ctrl *SubsonicController) GetStarred(context *gin.Context) {
	response := NewResponse()
	response.Starred2 = &models.SubsonicStarred{}
	Respond(context, response)
}

func (ctrl *SubsonicController) GetInternetRadioStations(context *gin.Context) {
	platformParam := context.DefaultQuery("platform", ctrl.Config.DefaultPlatform)
	platform, err := models.ParsePlatform(platformParam)
	if err != nil {
		RespondError(context, http.StatusOK, 0, err.Error())
		return
	}

	toplists, err := ctrl.Client.GetToplists(context.Request.Context(), platform)
	if err != nil {
		logger.Log.Error("failed to get radio stations. error: " + err.Error())
		RespondError(context, http.StatusOK, 0, err.Error())
		return
	}

	stations := &models.SubsonicRadioStations{}
	for _, toplist := range toplists {
		stationID := toplist.Platform + "_" + toplist.ID
		stations.Stations = append(stations.Stations, models.SubsonicRadioStation{
			ID:          stationID,
			Name:        toplist.Name,
			StreamURL:   "http://" + context.Request.Host + "/m3u/" + stationID + ".m3u",
			HomePageURL: "https://tunehub.sayqz.com",
		})
	}

	response := NewResponse()
	response.InternetRadioStations = stations
	Respond(context, response)
}

// ============ Formatting helpers ============

func (ctrl *SubsonicController) formatPlaylists(toplists []models.Toplist) models.SubsonicResponse {
	playlists := &models.SubsonicPlaylists{Playlists: []models.SubsonicPlaylist{}}

	for _, toplist := range toplists {
		platform, _ := models.ParsePlatform(toplist.Platform)
		prefix, ok := platformDisplayNames[platform]
		if !ok {
			prefix = strings.ToUpper(toplist.Platform)
		}

		playlistID := toplist.Platform + "_" + toplist.ID
		comment := toplist.Description
		if comment == "" {
			comment = "MusicTune 音乐榜单"
		}

		playlists.Playlists = append(playlists.Playlists, models.SubsonicPlaylist{
			ID:        playlistID,
			Name:      prefix + "-" + toplist.Name,
			Comment:   comment,
			Owner:     ctrl.Config.SubsonicUser,
			Public:    true,
			SongCount: toplist.TrackCount,
			Duration:  toplist.TrackCount * 200,
			Created:   "2024-01-01T00:00:00.000Z",
			Changed:   "2024-01-01T00:00:00.000Z",
			CoverArt:  "pl-" + playlistID,
		})
	}

	response := NewResponse()
	response.Playlists = playlists
	return response
}

func (ctrl *SubsonicController) formatPlaylistDetail(playlistID string, detail models.ToplistDetail) models.SubsonicResponse {
	totalDuration := 0
	entries := []models.SubsonicSong{}
	for _, song := range detail.Songs {
		totalDuration += song.Duration
		entries = append(entries, ctrl.formatSong(song))
	}

	playlist := &models.SubsonicPlaylist{
		ID:        playlistID,
		Name:      detail.Name,
		Owner:     "MusicTune",
		Public:    true,
		SongCount: len(detail.Songs),
		Duration:  totalDuration,
		Created:   "2024-01-01T00:00:00",
		Changed:   "2024-01-01T00:00:00",
		Entries:   entries,
	}
	if detail.CoverURL != "" {
		playlist.CoverArt = "pl-" + playlistID
	}

	response := NewResponse()
	response.Playlist = playlist
	return response
}

func (ctrl *SubsonicController) formatSong(song models.Song) models.SubsonicSong {
	quality := ctrl.defaultQuality()

	formatted := models.SubsonicSong{
		ID:          song.ID,
		Parent:      "1",
		Title:       orUnknown(song.Title),
		Album:       song.Album,
		Artist:      orUnknown(song.Artist),
		IsDir:       false,
		Duration:    song.Duration,
		BitRate:     utilities.QualityBitRate(quality),
		Suffix:      utilities.QualitySuffix(quality),
		ContentType: utilities.QualityContentType(quality),
		Size:        0,
		IsVideo:     false,
		Type:        "music",
		AlbumID:     song.ID,
		Created:     "2024-01-01T00:00:00",
	}

	if song.CoverURL != "" {
		formatted.CoverArt = song.ID
	}

	return formatted
}

func (ctrl *SubsonicController) formatMetadata(entry models.MetadataEntry) models.SubsonicSong {
	return ctrl.formatSong(models.Song{
		ID:       entry.ID,
		Title:    entry.Title,
		Artist:   entry.Artist,
		Album:    entry.Album,
		CoverURL: entry.CoverURL,
		Duration: entry.DurationSeconds,
	})
}

func orUnknown(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
