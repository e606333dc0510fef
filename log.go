package rainbow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

var logs Logger

func init() {
	logs = NewLogger(logrus.StandardLogger())
}

// Logger receives every statement a container runs, after it ran.
type Logger interface {
	Statement(ctx context.Context, query string, args []interface{}, elapsed time.Duration, err error)
}

type logrusLogger struct {
	log *logrus.Logger
}

// NewLogger returns a Logger writing to log. Statements are logged at trace
// level and failures at debug level.
func NewLogger(log *logrus.Logger) Logger {
	return logrusLogger{log: log}
}

func (l logrusLogger) Statement(ctx context.Context, query string, args []interface{}, elapsed time.Duration, err error) {
	entry := l.log.WithContext(ctx).WithFields(logrus.Fields{
		"sql":     query,
		"args":    args,
		"elapsed": elapsed,
	})
	if err != nil {
		entry.WithError(err).Debug("statement failed")
		return
	}
	entry.Trace("statement")
}

type DisableLogger struct{}

func (DisableLogger) Statement(context.Context, string, []interface{}, time.Duration, error) {}

// SetLogger replaces the package logger. A nil log disables logging.
func SetLogger(log Logger) {
	if log == nil {
		log = DisableLogger{}
	}
	logs = log
}
