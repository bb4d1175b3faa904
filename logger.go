package auth

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type logrusLogger struct {
	entry *logrus.Entry
}

var _ Logger = logrusLogger{}

// NewLogrusLogger adapts a logrus logger. Key/value arguments become fields.
func NewLogrusLogger(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return logrusLogger{entry: logrus.NewEntry(l).WithField("module", "auth")}
}

func defLogger() Logger {
	return NewLogrusLogger(logrus.StandardLogger())
}

func (l logrusLogger) Debug(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Debug(msg)
}

func (l logrusLogger) Info(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Info(msg)
}

func (l logrusLogger) Warn(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Warn(msg)
}

func (l logrusLogger) Error(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Error(msg)
}

func fields(args []any) logrus.Fields {
	out := make(logrus.Fields, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			out["!BADKEY"] = args[i]
			break
		}
		out[key] = args[i+1]
	}
	return out
}
