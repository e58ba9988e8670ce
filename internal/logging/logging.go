// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup sets level and format on the standard logrus logger. Unknown levels
// fall back to info.
func Setup(level, format string) {
	SetupTo(os.Stdout, level, format)
}

// SetupTo is Setup with an explicit output.
func SetupTo(out io.Writer, level, format string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetOutput(out)
	logrus.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// Quiet discards log output; used by tests.
func Quiet() {
	logrus.SetOutput(io.Discard)
}
