package core

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	once.Do(func() {
		l := log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          "Cozy 🎞️ ",
			CallerOffset:    1,
		})
		if DebugEnabled {
			l.SetLevel(log.DebugLevel)
		} else {
			l.SetLevel(log.InfoLevel)
		}
		singleton = &logger{l}
	})
	return singleton
}

// SetLogLevel changes the level of the player logger. Accepted values are
// debug, info, warn and error.
func SetLogLevel(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}
	getLogger().SetLevel(lvl)
	return nil
}

func ParseLogLevel(level string) (log.Level, error) {
	switch level {
	case "debug":
		return log.DebugLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "warn":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	}
	return 0, fmt.Errorf("unknown log level %q", level)
}

// WithSession tags every following log line with the given session id.
func WithSession(id string) {
	l := getLogger()
	l.Logger = l.Logger.With("session", id)
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
