package controllers

import (
	"encoding/xml"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/spacex-3/music-tune/models"
)

// NewResponse builds the base subsonic-response element.
func NewResponse() models.SubsonicResponse {
	return models.SubsonicResponse{
		Xmlns:         "http://subsonic.org/restapi",
		Status:        "ok",
		Version:       models.SubsonicVersion,
		Type:          models.SubsonicServerName,
		ServerVersion: "1.0.0",
	}
}

// Respond renders a Subsonic response as XML, or as JSON when the request
// carries f=json.
func Respond(context *gin.Context, response models.SubsonicResponse) {
	RespondStatus(context, http.StatusOK, response)
}

func RespondStatus(context *gin.Context, status int, response models.SubsonicResponse) {
	if strings.ToLower(context.Query("f")) == "json" {
		context.JSON(status, gin.H{"subsonic-response": response})
		return
	}

	data, err := xml.Marshal(response)
	if err != nil {
		context.String(http.StatusInternalServerError, "failed to render response")
		return
	}

	context.Data(status, "text/xml; charset=utf-8", append([]byte(xml.Header), data...))
}

// RespondError renders a Subsonic error element.
func RespondError(context *gin.Context, status int, code int, message string) {
	response := NewResponse()
	response.Status = "failed"
	response.Error = &models.SubsonicError{Code: code, Message: message}
	RespondStatus(context, status, response)
}
