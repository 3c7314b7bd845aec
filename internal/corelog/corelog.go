// Package corelog adapts the core's stdlib *log.Logger call sites to
// logrus's structured field logging, the way cmd/root.go configures
// logrus.SetLevel for the rest of the inference-sim CLI. The core packages
// (engine, session, eventbus) only ever see a *log.Logger; Writer bridges
// that interface onto a logrus.Logger so enabling --json-logs does not
// require touching any core package signature.
package corelog

import (
	"log"

	"github.com/sirupsen/logrus"
)

// Writer implements io.Writer by forwarding each log.Logger line to a
// logrus.Logger at Info level, tagged with a component field.
type Writer struct {
	entry *logrus.Entry
}

// NewWriter builds a Writer that logs through base with the given
// component field set (e.g. "engine", "session", "eventbus").
func NewWriter(base *logrus.Logger, component string) *Writer {
	return &Writer{entry: base.WithField("component", component)}
}

func (w *Writer) Write(p []byte) (int, error) {
	msg := string(p)
	if n := len(msg); n > 0 && msg[n-1] == '\n' {
		msg = msg[:n-1]
	}
	w.entry.Info(msg)
	return len(p), nil
}

// NewStdLogger returns a *log.Logger that writes through a logrus.Logger at
// the given level, using logrus's JSON formatter when jsonFormat is true and
// its default text formatter otherwise, for session.New/engine.New call
// sites that take the standard library's logger type.
func NewStdLogger(component string, jsonFormat bool, level logrus.Level) *log.Logger {
	base := logrus.New()
	base.SetLevel(level)
	if jsonFormat {
		base.SetFormatter(&logrus.JSONFormatter{})
	}
	return log.New(NewWriter(base, component), "", 0)
}
