package routers

import (
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/spacex-3/music-tune/controllers"
	"github.com/spacex-3/music-tune/logger"
	"github.com/spacex-3/music-tune/models"
	"github.com/spacex-3/music-tune/utilities"
)

// InitRouter wires every endpoint. Subsonic clients are inconsistent about
// the ".view" suffix, so each /rest endpoint is registered under both names.
func InitRouter(config models.ConfigStruct, controller *controllers.SubsonicController) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Access-Control-Allow-Origin"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowOriginFunc:  func(origin string) bool { return true },
		MaxAge:           12 * time.Hour,
	}))

	rest := router.Group("/rest")
	rest.Use(RequireSubsonicAuth(config))
	{
		registerRest(rest, "/ping", controller.Ping)
		registerRest(rest, "/getLicense", controller.GetLicense)
		registerRest(rest, "/getMusicFolders", controller.GetMusicFolders)
		registerRest(rest, "/getIndexes", controller.GetIndexes)
		registerRest(rest, "/getPlaylists", controller.GetPlaylists)
		registerRest(rest, "/getPlaylist", controller.GetPlaylist)
		registerRest(rest, "/search2", controller.Search)
		registerRest(rest, "/search3", controller.Search)
		registerRest(rest, "/stream", controller.Stream)
		registerRest(rest, "/download", controller.Stream)
		registerRest(rest, "/getSong", controller.GetSong)
		registerRest(rest, "/getCoverArt", controller.GetCoverArt)
		registerRest(rest, "/getLyrics", controller.GetLyrics)
		registerRest(rest, "/getAlbumList", controller.GetAlbumList)
		registerRest(rest, "/getAlbumList2", controller.GetAlbumList)
		registerRest(rest, "/getArtists", controller.GetArtists)
		registerRest(rest, "/getStarred", controller.GetStarred)
		registerRest(rest, "/getStarred2", controller.GetStarred)
		registerRest(rest, "/getInternetRadioStations", controller.GetInternetRadioStations)
	}

	// gin forbids /m3u/list alongside /m3u/:file, so "list" is dispatched
	// inside the handler
	router.GET("/m3u/:file", controller.GetM3UFile)

	router.GET("/", func(context *gin.Context) {
		context.String(http.StatusOK, config.MusicTuneName+" is running. Point a Subsonic client at /rest.")
	})

	return router
}

func registerRest(group *gin.RouterGroup, path string, handler gin.HandlerFunc) {
	group.GET(path, handler)
	group.GET(path+".view", handler)
	group.POST(path, handler)
	group.POST(path+".view", handler)
}

// RequireSubsonicAuth validates the credentials every Subsonic request
// carries: either u/p (with the optional "enc:" hex password form) or the
// token scheme where t = md5(password + s).
func RequireSubsonicAuth(config models.ConfigStruct) gin.HandlerFunc {
	return func(context *gin.Context) {
		username := context.Query("u")
		password := context.Query("p")
		token := context.Query("t")
		salt := context.Query("s")

		authenticated := false

		if username == config.SubsonicUser {
			if password != "" {
				authenticated = utilities.DecodeSubsonicPassword(password) == config.SubsonicPassword
			} else if token != "" && salt != "" {
				sum := md5.Sum([]byte(config.SubsonicPassword + salt))
				authenticated = strings.EqualFold(hex.EncodeToString(sum[:]), token)
			}
		}

		if !authenticated {
			logger.Log.Warn("rejected unauthenticated request to " + context.Request.URL.Path + " from " + context.ClientIP())
			respondAuthError(context)
			context.Abort()
			return
		}

		context.Next()
	}
}

func respondAuthError(context *gin.Context) {
	controllers.RespondError(context, http.StatusUnauthorized, 40, "Wrong username or password")
}
