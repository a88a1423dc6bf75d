package util

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger keeps the "instance | message" layout used across the services on
// top of a logrus logger.
type Logger struct {
	std *logrus.Logger
}

func New() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return &Logger{std: l}
}

// NewWithLevel builds a logger filtered at level ("debug", "info", ...).
// Unknown levels fall back to info.
func NewWithLevel(level string) *Logger {
	l := New()
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.std.SetLevel(parsed)
	return l
}

// NewDiscard returns a logger that drops everything. Used by tests.
func NewDiscard() *Logger {
	l := New()
	l.std.SetOutput(io.Discard)
	return l
}

func (l *Logger) Debug(instance, message string) {
	l.entry(instance).Debug(message)
}

func (l *Logger) Info(instance, message string) {
	l.entry(instance).Info(message)
}

func (l *Logger) Warn(instance, message string) {
	l.entry(instance).Warn(message)
}

func (l *Logger) Error(instance string, err error) {
	l.entry(instance).WithError(err).Error(err.Error())
}

func (l *Logger) Fatal(instance string, err error) {
	l.entry(instance).WithError(err).Fatal(err.Error())
}

func (l *Logger) OK(instance, message string) {
	l.entry(instance).WithField("ok", true).Info(message)
}

func (l *Logger) HTTP(status int, elapsed time.Duration, host, method, path string) {
	l.std.WithFields(logrus.Fields{
		"status":  status,
		"elapsed": elapsed.String(),
		"host":    host,
		"method":  method,
	}).Info(path)
}

func (l *Logger) entry(instance string) *logrus.Entry {
	return l.std.WithField("instance", instance)
}
