// Package logger emits structured JSON logs through logrus. Values whose
// key mentions an email, and email addresses embedded in any other value,
// are masked unless redaction is turned off.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var logrusLevels = map[Level]logrus.Level{
	DEBUG: logrus.DebugLevel,
	INFO:  logrus.InfoLevel,
	WARN:  logrus.WarnLevel,
	ERROR: logrus.ErrorLevel,
}

// ParseLevel maps a config string ("debug", "info", "warn", "error") to a
// Level. Unknown values yield INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

var (
	base      = newBase(os.Stderr)
	redactPII atomic.Bool
)

func init() { redactPII.Store(true) }

func newBase(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "msg",
		},
	})
	return l
}

// SetLevel sets the minimum log level.
func SetLevel(l Level) { base.SetLevel(logrusLevels[l]) }

// SetRedactPII enables or disables PII redaction.
func SetRedactPII(r bool) { redactPII.Store(r) }

// SetOutput redirects log output; tests use it to capture entries.
func SetOutput(w io.Writer) { base.SetOutput(w) }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { entry(fields).Debug(msg) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { entry(fields).Info(msg) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { entry(fields).Warn(msg) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { entry(fields).Error(msg) }

// entry turns alternating key/value pairs into logrus fields. A trailing
// key without a value is dropped.
func entry(fields []interface{}) *logrus.Entry {
	if len(fields) < 2 {
		return logrus.NewEntry(base)
	}
	redact := redactPII.Load()
	lf := make(logrus.Fields, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fields[i+1]
		if s, ok := val.(string); ok && redact {
			val = redactPIIValue(key, s)
		} else if err, ok := val.(error); ok {
			s := err.Error()
			if redact {
				s = redactPIIValue(key, s)
			}
			val = s
		}
		lf[key] = val
	}
	return base.WithFields(lf)
}
