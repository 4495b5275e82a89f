package utils

import (
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
)

// NewLogger creates a logger from the logging config. A configured file
// path gets a file hook alongside stderr output.
func NewLogger(config LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	switch config.Level {
	case "DEBUG":
		logger.SetLevel(logrus.DebugLevel)
	case "INFO":
		logger.SetLevel(logrus.InfoLevel)
	case "WARN":
		logger.SetLevel(logrus.WarnLevel)
	case "ERROR":
		logger.SetLevel(logrus.ErrorLevel)
	}

	if config.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if config.FilePath != "" {
		pathMap := lfshook.PathMap{
			logrus.InfoLevel:  config.FilePath,
			logrus.WarnLevel:  config.FilePath,
			logrus.ErrorLevel: config.FilePath,
		}
		logger.AddHook(lfshook.NewHook(pathMap, &logrus.JSONFormatter{}))
	}

	return logger
}
