package logs

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger. It is usable before Init with logrus defaults.
var Logger = logrus.New()

type Options struct {
	Level  string // debug | info | warn | error
	Format string // text | json
	File   string // optional; logs go to stdout and the file
}

// Init configures Logger from opts. Unknown levels fall back to info.
func Init(opts Options) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)

	switch strings.ToLower(opts.Format) {
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stdout
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			Logger.Warnf("could not open log file %s: %v", opts.File, err)
		} else {
			out = io.MultiWriter(os.Stdout, f)
		}
	}
	Logger.SetOutput(out)
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Logger.WithField("component", name)
}
