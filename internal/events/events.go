// Package events records course lifecycle events. Logging is append-only and
// best-effort: a failed event must never block the operation that emitted it.
package events

import "github.com/sirupsen/logrus"

// Kind identifies a lifecycle event
type Kind string

const (
	CourseCreated Kind = "course_created"
	CourseDeleted Kind = "course_deleted"
)

// Logger is the event sink consumed by the engine
type Logger interface {
	Log(kind Kind, courseTitle string)
}

// LogrusLogger writes events to the application log
type LogrusLogger struct {
	logger *logrus.Logger
}

// NewLogrusLogger creates an event logger on top of the application logger
func NewLogrusLogger(logger *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{logger: logger}
}

// Log records one event
func (l *LogrusLogger) Log(kind Kind, courseTitle string) {
	l.logger.WithFields(logrus.Fields{
		"event":  string(kind),
		"course": courseTitle,
	}).Info("Course event")
}
