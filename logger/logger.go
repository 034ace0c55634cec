package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/spacex-3/music-tune/models"
)

var Log = logrus.New()

var logPath, _ = filepath.Abs("./config")
var logFile = filepath.Join(logPath, "musictune.log")

// InitLogger configures the global logger from the loaded config.
// Output goes to both the console and config/musictune.log.
func InitLogger(configFile models.ConfigStruct) {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(configFile.MusicTuneLogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		Log.Warn("failed to open log file, logging to console only. error: " + err.Error())
		return
	}

	Log.SetOutput(io.MultiWriter(os.Stdout, file))
}
