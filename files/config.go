package files

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/spacex-3/music-tune/models"
)

var musictuneVersionParameter = "{{RELEASE_TAG}}"
var configPath, _ = filepath.Abs("./config")
var configFile = filepath.Join(configPath, "config.json")

func GetConfig() (config models.ConfigStruct, err error) {
	config = models.ConfigStruct{}

	// Create config.json if it doesn't exist
	if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) {
		fmt.Println("Config file does not exist. Creating...")

		err := CreateConfigFile()
		if err != nil {
			return config, err
		}
	}

	file, err := os.Open(configFile)
	if err != nil {
		fmt.Println("Get config file threw error trying to open the file.")
		return config, err
	}
	defer file.Close()
	decoder := json.NewDecoder(file)

	err = decoder.Decode(&config)
	if err != nil {
		fmt.Println("Get config file threw error trying to parse the file.")
		return config, err
	}

	anythingChanged := false

	if config.MusicTuneName == "" {
		config.MusicTuneName = "MusicTune"
		anythingChanged = true
	}

	if config.MusicTuneEnvironment == "" {
		config.MusicTuneEnvironment = "prod"
		anythingChanged = true
	}

	if config.MusicTunePort == 0 {
		config.MusicTunePort = 4040
		anythingChanged = true
	}

	if config.MusicTuneLogLevel == "" {
		level := logrus.InfoLevel
		config.MusicTuneLogLevel = level.String()
		anythingChanged = true
	} else {
		_, err := logrus.ParseLevel(config.MusicTuneLogLevel)
		if err != nil {
			level := logrus.InfoLevel
			config.MusicTuneLogLevel = level.String()
			anythingChanged = true
		}
	}

	if config.SubsonicUser == "" {
		config.SubsonicUser = "admin"
		anythingChanged = true
	}

	if config.SubsonicPassword == "" {
		config.SubsonicPassword = "admin"
		anythingChanged = true
	}

	if config.TuneHubBaseURL == "" {
		config.TuneHubBaseURL = "https://tunehub.sayqz.com/api"
		anythingChanged = true
	}

	if config.DefaultPlatform == "" {
		config.DefaultPlatform = string(models.PlatformNetease)
		anythingChanged = true
	}

	if config.DefaultQuality == "" {
		config.DefaultQuality = string(models.Quality320k)
		anythingChanged = true
	}

	if config.AudioCacheDirectory == "" {
		config.AudioCacheDirectory = filepath.Join("cache", "audio")
		anythingChanged = true
	}

	if config.AudioCacheMaxSizeBytes == 0 {
		config.AudioCacheMaxSizeBytes = 10 * 1024 * 1024 * 1024
		anythingChanged = true
	}

	if config.URLCacheTTLMinutes == 0 {
		config.URLCacheTTLMinutes = 30
		anythingChanged = true
	}

	if config.AllowedPlaylists == nil {
		config.AllowedPlaylists = map[string][]string{
			string(models.PlatformNetease): {},
			string(models.PlatformQQ):      {},
			string(models.PlatformKuwo):    {},
		}
		anythingChanged = true
	}

	if config.CachePersistCronSchedule == "" {
		config.CachePersistCronSchedule = "0 */10 * * * *"
		anythingChanged = true
	}

	if config.AudioSweepCronSchedule == "" {
		config.AudioSweepCronSchedule = "0 0 * * * *"
		anythingChanged = true
	}

	if anythingChanged {
		// Save new version of config json
		err = SaveConfig(config)
		if err != nil {
			return config, err
		}
	}

	config.MusicTuneVersion = musictuneVersionParameter

	// Return config object
	return config, nil
}

// Creates empty config.json
func CreateConfigFile() error {
	var config models.ConfigStruct

	config.MusicTunePort = 4040
	config.MusicTuneName = "MusicTune"
	config.MusicTuneEnvironment = "prod"
	config.MusicTuneVersion = musictuneVersionParameter

	level := logrus.InfoLevel
	config.MusicTuneLogLevel = level.String()

	err := SaveConfig(config)
	if err != nil {
		fmt.Println("Create config file threw error trying to save the file.")
		return err
	}

	return nil
}

// Saves the given config struct as config.json
func SaveConfig(config models.ConfigStruct) error {

	err := os.MkdirAll(configPath, os.ModePerm)
	if err != nil {
		return errors.New("Failed to create directory for config.")
	}

	file, err := json.MarshalIndent(config, "", "	")
	if err != nil {
		return err
	}

	err = os.WriteFile(configFile, file, 0644)
	if err != nil {
		return err
	}

	return nil
}
