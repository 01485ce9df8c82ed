// Package logging configures the process-wide logrus logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures logrus to write a text-formatted log to stderr at the
// given level name ("debug", "info", "warn", "error"; defaults to "info"
// on an unrecognised or empty value). Stdout is left to the CLI's own
// output so it stays unbuffered and uncluttered by log lines.
func Setup(levelName string) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
