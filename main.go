package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	_ "time/tzdata"

	"codnect.io/chrono"
	"github.com/gin-gonic/gin"

	"github.com/spacex-3/music-tune/controllers"
	"github.com/spacex-3/music-tune/files"
	"github.com/spacex-3/music-tune/logger"
	"github.com/spacex-3/music-tune/models"
	"github.com/spacex-3/music-tune/modules"
	"github.com/spacex-3/music-tune/routers"
	"github.com/spacex-3/music-tune/utilities"
)

func main() {
	utilities.PrintASCII()

	// Create config directory
	newPath := filepath.Join(".", "config")
	err := os.MkdirAll(newPath, os.ModePerm)
	if err != nil {
		fmt.Println("failed to create 'config' directory. error: " + err.Error())
		os.Exit(1)
	}
	fmt.Println("directory 'config' valid")

	// Load config file
	configFile, err := files.GetConfig()
	if err != nil {
		fmt.Println("failed to load configuration file. error: " + err.Error())
		os.Exit(1)
	}
	fmt.Println("configuration file loaded")

	// Create and define file for logging
	logger.InitLogger(configFile)

	// Set GIN mode
	if configFile.MusicTuneEnvironment != "test" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Change the config to respect flags
	configFile, err = parseFlags(configFile)
	if err != nil {
		logger.Log.Fatal("failed to parse input flags. error: " + err.Error())
		os.Exit(1)
	}
	logger.Log.Info("flags parsed")

	// Set time zone from config if it is not empty
	if configFile.Timezone != "" {
		loc, err := time.LoadLocation(configFile.Timezone)
		if err != nil {
			logger.Log.Info("failed to set time zone from config. error: " + err.Error())
			logger.Log.Info("removing value...")

			configFile.Timezone = ""
			err = files.SaveConfig(configFile)
			if err != nil {
				logger.Log.Fatal("failed to set new time zone in the config. error: " + err.Error())
				os.Exit(1)
			}

		} else {
			time.Local = loc
		}
	}
	logger.Log.Info("timezone set")

	defaultPlatform, err := models.ParsePlatform(configFile.DefaultPlatform)
	if err != nil {
		logger.Log.Warn("invalid default platform in config, using netease. error: " + err.Error())
		defaultPlatform = models.PlatformNetease
	}

	defaultQuality, err := models.ParseQuality(configFile.DefaultQuality)
	if err != nil {
		logger.Log.Warn("invalid default quality in config, using 320k. error: " + err.Error())
		defaultQuality = models.Quality320k
	}

	client := modules.NewTuneHubClient(configFile.TuneHubBaseURL, configFile.TuneHubAPIKey, defaultPlatform, defaultQuality)

	metadataCache := modules.NewMetadataCache(client, filepath.Join("config", "metadata_cache.json"))
	err = metadataCache.Load()
	if err != nil {
		logger.Log.Warn("failed to load metadata cache, starting empty. error: " + err.Error())
	}
	logger.Log.Info("metadata cache loaded. " + strconv.Itoa(metadataCache.Len()) + " entries")

	urlCache := modules.NewURLCache(time.Duration(configFile.URLCacheTTLMinutes) * time.Minute)

	audioStore, err := modules.NewAudioStore(configFile.AudioCacheDirectory, configFile.AudioCacheMaxSizeBytes)
	if err != nil {
		logger.Log.Fatal("failed to initialize audio cache. error: " + err.Error())
		os.Exit(1)
	}
	logger.Log.Info("audio cache initialized. " + strconv.Itoa(audioStore.Count()) + " files on disk")

	resolver := modules.NewResolver(client, urlCache, audioStore, metadataCache)

	controller := controllers.NewSubsonicController(configFile, client, metadataCache, resolver)

	// Create task scheduler for cache persistence and audio cache sweeps
	taskScheduler := chrono.NewDefaultTaskScheduler()

	_, err = taskScheduler.ScheduleWithCron(func(ctx context.Context) {
		err := metadataCache.Save()
		if err != nil {
			logger.Log.Error("failed to persist metadata cache. error: " + err.Error())
		}
	}, configFile.CachePersistCronSchedule)
	if err != nil {
		logger.Log.Info("metadata persist task was not scheduled successfully.")
	}

	_, err = taskScheduler.ScheduleWithCron(func(ctx context.Context) {
		audioStore.EvictToFit()
	}, configFile.AudioSweepCronSchedule)
	if err != nil {
		logger.Log.Info("audio sweep task was not scheduled successfully.")
	}

	// Persist the metadata cache on shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logger.Log.Info("shutting down, persisting metadata cache...")
		if err := metadataCache.Save(); err != nil {
			logger.Log.Error("failed to persist metadata cache. error: " + err.Error())
		}
		os.Exit(0)
	}()

	// Initialize Router
	router := routers.InitRouter(configFile, controller)

	logger.Log.Info("router initialized.")

	log.Fatal(router.Run(":" + strconv.Itoa(configFile.MusicTunePort)))
}

func parseFlags(configFile models.ConfigStruct) (models.ConfigStruct, error) {
	// Define flag variables with the configuration file as default values
	var port = flag.Int("port", configFile.MusicTunePort, "The port MusicTune is listening on.")
	var externalURL = flag.String("externalurl", configFile.MusicTuneExternalURL, "The URL others would use to access MusicTune.")
	var timezone = flag.String("tz", configFile.Timezone, "The timezone MusicTune is running in.")
	var apiKey = flag.String("apikey", configFile.TuneHubAPIKey, "The TuneHub API key used for metered calls.")

	// Parse the flags from input
	flag.Parse()

	if port != nil {
		configFile.MusicTunePort = *port
	}

	if externalURL != nil {
		configFile.MusicTuneExternalURL = *externalURL
	}

	if timezone != nil {
		configFile.Timezone = *timezone
	}

	if apiKey != nil {
		configFile.TuneHubAPIKey = *apiKey
	}

	// Failsafe, if port is 0, set to default 4040
	if configFile.MusicTunePort == 0 {
		configFile.MusicTunePort = 4040
	}

	// Save the new config
	err := files.SaveConfig(configFile)
	if err != nil {
		return models.ConfigStruct{}, err
	}

	return configFile, nil
}
