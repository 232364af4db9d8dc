package obs

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options configures NewLogger.
type Options struct {
	Level  string // trace|debug|info|warning|error
	Format string // json|text
	Output io.Writer
}

// NewLogger builds the process logger. JSON is the default format.
func NewLogger(opts Options) *logrus.Logger {
	l := logrus.New()

	switch strings.ToLower(strings.TrimSpace(opts.Level)) {
	case "trace":
		l.SetLevel(logrus.TraceLevel)
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "warning", "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	if strings.EqualFold(opts.Format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stdout)
	}
	return l
}
