package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NullLogger discards everything. Tests use it where output does not matter.
type NullLogger struct{}

func NewNullLogger() Logger {
	return &NullLogger{}
}

func (n *NullLogger) WithFields(fields map[string]interface{}) Logger { return n }
func (n *NullLogger) WithField(key string, value interface{}) Logger  { return n }
func (n *NullLogger) WithError(err error) Logger                      { return n }
func (n *NullLogger) Debug(args ...interface{})                       {}
func (n *NullLogger) Info(args ...interface{})                        {}
func (n *NullLogger) Warn(args ...interface{})                        {}
func (n *NullLogger) Error(args ...interface{})                       {}
func (n *NullLogger) Log(level logrus.Level, args ...interface{})     {}
func (n *NullLogger) Debugf(format string, args ...interface{})       {}
func (n *NullLogger) Infof(format string, args ...interface{})        {}
func (n *NullLogger) Warnf(format string, args ...interface{})        {}
func (n *NullLogger) Errorf(format string, args ...interface{})       {}

func (n *NullLogger) Writer(level logrus.Level) io.WriteCloser {
	return nopCloser{io.Discard}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
