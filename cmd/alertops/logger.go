package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// InitLogger initializes the logger with the configured log level and format
func InitLogger(level, format string) error {
	log.SetOutput(os.Stdout)

	switch format {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	parsedLevel, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info'", level)
		parsedLevel = logrus.InfoLevel
	}
	log.SetLevel(parsedLevel)

	return nil
}
