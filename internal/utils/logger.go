package utils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the shared application logger
var Logger = logrus.New()

// InitLogger configures the shared logger from the LOG_LEVEL environment variable
func InitLogger() {
	Logger.SetOutput(os.Stdout)

	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		Logger.Warnf("invalid LOG_LEVEL %q, defaulting to info", levelStr)
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)

	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}
