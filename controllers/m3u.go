package controllers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/spacex-3/music-tune/logger"
	"github.com/spacex-3/music-tune/models"
	"github.com/spacex-3/music-tune/utilities"
)

// GetM3UFile serves /m3u/:file. The file "list" renders an index of the
// whitelisted playlists; anything else must be "<platform>_<id>.m3u" and
// renders the playlist itself. Both live under one route because gin does
// not allow /m3u/list next to /m3u/:file.
func (ctrl *SubsonicController) GetM3UFile(context *gin.Context) {
	file := context.Param("file")

	if file == "list" {
		ctrl.m3uList(context)
		return
	}

	if !strings.HasSuffix(file, ".m3u") {
		context.String(http.StatusNotFound, "not found")
		return
	}

	ctrl.m3uPlaylist(context, strings.TrimSuffix(file, ".m3u"))
}

func (ctrl *SubsonicController) m3uList(context *gin.Context) {
	baseURL := ctrl.baseURL(context)

	var builder strings.Builder
	builder.WriteString("MusicTune M3U playlists\n\n")

	for platform, allowedIDs := range ctrl.Config.AllowedPlaylists {
		for _, playlistID := range allowedIDs {
			builder.WriteString(baseURL + "/m3u/" + platform + "_" + playlistID + ".m3u\n")
		}
	}

	context.String(http.StatusOK, builder.String())
}

func (ctrl *SubsonicController) m3uPlaylist(context *gin.Context, playlistID string) {
	if cached, ok := ctrl.m3uFiles.Get(playlistID); ok {
		logger.Log.Info("[CACHE HIT] returning cached m3u for " + playlistID)
		context.Data(http.StatusOK, "audio/x-mpegurl; charset=utf-8", []byte(cached))
		return
	}

	detail, ok := ctrl.playlistDetails.Get(playlistID)
	if !ok {
		platform, actualID := utilities.SplitPlaylistID(playlistID, ctrl.defaultPlatform())

		logger.Log.Info("[API CALL] fetching playlist for m3u: " + playlistID)
		fetched, err := ctrl.Client.GetToplistDetail(context.Request.Context(), platform, actualID)
		if err != nil {
			logger.Log.Error("failed to build m3u for " + playlistID + ". error: " + err.Error())
			context.String(http.StatusBadGateway, "failed to fetch playlist")
			return
		}
		ctrl.playlistDetails.Add(playlistID, fetched)
		detail = fetched
	}

	content := ctrl.renderM3U(context, detail)
	ctrl.m3uFiles.Add(playlistID, content)

	context.Data(http.StatusOK, "audio/x-mpegurl; charset=utf-8", []byte(content))
}

// renderM3U writes an extended M3U document whose entries point back at this
// server's stream endpoint, carrying the configured Subsonic credentials so
// plain players can fetch without an auth handshake.
func (ctrl *SubsonicController) renderM3U(context *gin.Context, detail models.ToplistDetail) string {
	baseURL := ctrl.baseURL(context)

	var builder strings.Builder
	builder.WriteString("#EXTM3U\n")
	builder.WriteString("#PLAYLIST:" + detail.Name + "\n")

	for _, song := range detail.Songs {
		builder.WriteString(fmt.Sprintf("#EXTINF:%d,%s - %s\n", song.Duration, orUnknown(song.Artist), orUnknown(song.Title)))
		builder.WriteString(baseURL + "/rest/stream?id=" + url.QueryEscape(song.ID) +
			"&u=" + url.QueryEscape(ctrl.Config.SubsonicUser) +
			"&p=" + url.QueryEscape(ctrl.Config.SubsonicPassword) +
			"&v=1.16.0&c=m3u\n")
	}

	return builder.String()
}

func (ctrl *SubsonicController) baseURL(context *gin.Context) string {
	if ctrl.Config.MusicTuneExternalURL != "" {
		return strings.TrimSuffix(ctrl.Config.MusicTuneExternalURL, "/")
	}

	scheme := "http"
	if context.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + context.Request.Host
}
