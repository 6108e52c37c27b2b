package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface shared across the server's components. It
// is satisfied by both *logrus.Logger and *logrus.Entry, allowing components
// to receive either a root logger or a pre-tagged entry.
type Logger interface {
	logrus.FieldLogger
	Writer() *io.PipeWriter
}

// Component returns a logger tagged with the given component name. It is the
// conventional way subsystems derive their loggers from the root logger.
func Component(log Logger, name string) Logger {
	return log.WithField("component", name)
}
