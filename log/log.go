// Package log provides the leveled, keyed logging convention used
// throughout the teacher repo (log.Info(msg, "key", val, ...), see
// consensus/dpos/dpos.go and metrics/cputime_unix.go). The teacher's own
// gtos/log package source was filtered out of the retrieval pack, so
// this implementation is backed by github.com/sirupsen/logrus, sourced
// from the sibling orbas1-Synnergy example repo in this corpus, rather
// than hand-rolled on log/slog.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

var root = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// SetLevel adjusts the root logger's verbosity ("debug", "info", "warn", "error").
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	root.SetLevel(lvl)
	return nil
}

func fields(keyvals []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		f[key] = keyvals[i+1]
	}
	return f
}

// Debug logs msg at debug level with alternating key/value pairs.
func Debug(msg string, keyvals ...interface{}) { root.WithFields(fields(keyvals)).Debug(msg) }

// Info logs msg at info level with alternating key/value pairs.
func Info(msg string, keyvals ...interface{}) { root.WithFields(fields(keyvals)).Info(msg) }

// Warn logs msg at warn level with alternating key/value pairs.
func Warn(msg string, keyvals ...interface{}) { root.WithFields(fields(keyvals)).Warn(msg) }

// Error logs msg at error level with alternating key/value pairs.
func Error(msg string, keyvals ...interface{}) { root.WithFields(fields(keyvals)).Error(msg) }

// Crit logs msg at fatal level and terminates the process, matching the
// teacher's log.Crit semantics for unrecoverable startup failures.
func Crit(msg string, keyvals ...interface{}) { root.WithFields(fields(keyvals)).Fatal(msg) }
