package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"fractureapi/internal/config"

	"github.com/sirupsen/logrus"
)

// Logger provides leveled logging (debug/info/warning/error) to stdout and
// per-level log files.
type Logger struct {
	entry *logrus.Logger
	hook  *levelFileHook
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) *Logger {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	hook, err := newLevelFileHook(config.LogDirectory)
	if err != nil {
		log.Fatalf("Failed to open log files: %v", err)
	}

	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(parseLevel(config.LogLevel))
	l.AddHook(hook)

	return &Logger{entry: l, hook: hook}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{entry: l}
}

func parseLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.entry.Debugf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.entry.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.entry.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
}

// Close closes the log files.
func (l *Logger) Close() error {
	if l.hook == nil {
		return nil
	}
	return l.hook.Close()
}

// levelFileHook mirrors entries into info.log, warning.log and error.log.
type levelFileHook struct {
	files     map[logrus.Level]*os.File
	formatter logrus.Formatter
	mu        sync.Mutex
}

func newLevelFileHook(dir string) (*levelFileHook, error) {
	names := map[logrus.Level]string{
		logrus.InfoLevel:  "info.log",
		logrus.WarnLevel:  "warning.log",
		logrus.ErrorLevel: "error.log",
	}

	hook := &levelFileHook{
		files:     make(map[logrus.Level]*os.File),
		formatter: &logrus.TextFormatter{FullTimestamp: true, DisableColors: true},
	}
	for level, name := range names {
		file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			hook.Close()
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		hook.files[level] = file
	}
	return hook, nil
}

func (h *levelFileHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel}
}

func (h *levelFileHook) Fire(e *logrus.Entry) error {
	level := e.Level
	if level < logrus.ErrorLevel {
		level = logrus.ErrorLevel
	}
	file, ok := h.files[level]
	if !ok {
		return nil
	}

	line, err := h.formatter.Format(e)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = file.Write(line)
	return err
}

func (h *levelFileHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for level, file := range h.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(h.files, level)
	}
	return firstErr
}
