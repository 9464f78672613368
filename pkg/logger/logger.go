// Package logger provides the run-wide file logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	globalLogger *logrus.Logger
	logFile      *os.File
	mu           sync.Mutex
)

// Fields is a set of structured fields attached to an entry.
type Fields = logrus.Fields

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = f
	globalLogger = newLogger(f)

	return nil
}

// InitWriter initializes the global logger on an arbitrary writer.
func InitWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = newLogger(w)
}

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
	})
	return l
}

// SetLevel changes the minimum level (debug, info, warn, error).
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger != nil {
		globalLogger.SetLevel(lvl)
	}
	return nil
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = nil
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	logf(logrus.InfoLevel, nil, format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	logf(logrus.DebugLevel, nil, format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	logf(logrus.ErrorLevel, nil, format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	logf(logrus.WarnLevel, nil, format, v...)
}

// Entry logs with a fixed set of fields, e.g. the device serial and screen.
type Entry struct {
	fields Fields
}

// WithFields returns an Entry that attaches fields to every message.
func WithFields(fields Fields) *Entry {
	return &Entry{fields: fields}
}

// WithFields returns a copy of e with additional fields.
func (e *Entry) WithFields(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{fields: merged}
}

// Info logs an info message with the entry's fields.
func (e *Entry) Info(format string, v ...interface{}) {
	logf(logrus.InfoLevel, e.fields, format, v...)
}

// Debug logs a debug message with the entry's fields.
func (e *Entry) Debug(format string, v ...interface{}) {
	logf(logrus.DebugLevel, e.fields, format, v...)
}

// Warn logs a warning message with the entry's fields.
func (e *Entry) Warn(format string, v ...interface{}) {
	logf(logrus.WarnLevel, e.fields, format, v...)
}

// Error logs an error message with the entry's fields.
func (e *Entry) Error(format string, v ...interface{}) {
	logf(logrus.ErrorLevel, e.fields, format, v...)
}

func logf(level logrus.Level, fields Fields, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger == nil {
		return
	}
	if fields != nil {
		globalLogger.WithFields(fields).Logf(level, format, v...)
		return
	}
	globalLogger.Logf(level, format, v...)
}

// GetWriter returns the underlying writer for use by subprocess output.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}
