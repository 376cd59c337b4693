// Package logger wraps logrus with the project-wide defaults.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a configured logrus logger. Unknown levels fall back to info;
// any format other than "json" selects the text formatter.
func New(level, format string) *logrus.Logger {
	log := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	log.SetOutput(os.Stdout)
	return log
}
