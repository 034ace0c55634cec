package routers

import (
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spacex-3/music-tune/controllers"
	"github.com/spacex-3/music-tune/models"
	"github.com/spacex-3/music-tune/modules"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)

	config := models.ConfigStruct{
		MusicTuneName:    "MusicTune",
		SubsonicUser:     "alice",
		SubsonicPassword: "sesame",
		DefaultPlatform:  "netease",
		DefaultQuality:   "320k",
	}

	client := modules.NewTuneHubClient("http://127.0.0.1:0", "key", models.PlatformNetease, models.Quality320k)
	metadata := modules.NewMetadataCache(client, t.TempDir()+"/metadata.json")
	urls := modules.NewURLCache(30 * time.Minute)

	store, err := modules.NewAudioStore(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	resolver := modules.NewResolver(client, urls, store, metadata)
	controller := controllers.NewSubsonicController(config, client, metadata, resolver)

	return InitRouter(config, controller)
}

func TestPingWithPlainPassword(t *testing.T) {
	router := testRouter(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/rest/ping?u=alice&p=sesame&v=1.16.0&c=test", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `status="ok"`) {
		t.Fatalf("expected ok response, got %s", recorder.Body.String())
	}
}

func TestPingWithHexEncodedPassword(t *testing.T) {
	router := testRouter(t)

	encoded := "enc:" + hex.EncodeToString([]byte("sesame"))

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/rest/ping?u=alice&p="+encoded+"&v=1.16.0&c=test", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestPingWithTokenAuth(t *testing.T) {
	router := testRouter(t)

	salt := "c19b2d"
	sum := md5.Sum([]byte("sesame" + salt))
	token := hex.EncodeToString(sum[:])

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/rest/ping?u=alice&t="+token+"&s="+salt+"&v=1.16.0&c=test", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestPingRejectsWrongPassword(t *testing.T) {
	router := testRouter(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/rest/ping?u=alice&p=wrong&v=1.16.0&c=test", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `code="40"`) {
		t.Fatalf("expected Subsonic error 40, got %s", recorder.Body.String())
	}
}

func TestPingRejectsWrongToken(t *testing.T) {
	router := testRouter(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/rest/ping?u=alice&t=deadbeef&s=salt&v=1.16.0&c=test", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestPingRejectsMissingCredentials(t *testing.T) {
	router := testRouter(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/rest/ping", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestViewSuffixRoutesWork(t *testing.T) {
	router := testRouter(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/rest/ping.view?u=alice&p=sesame&v=1.16.0&c=test", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestJSONFormatResponse(t *testing.T) {
	router := testRouter(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/rest/ping?u=alice&p=sesame&v=1.16.0&c=test&f=json", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"subsonic-response"`) {
		t.Fatalf("expected JSON wrapper, got %s", recorder.Body.String())
	}
	if !strings.Contains(recorder.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("expected JSON content type, got %s", recorder.Header().Get("Content-Type"))
	}
}
