// Package logger provides the leveled logger shared by the server and the
// client CLI.
//
// Lines are written as
//
//	2006-01-02 15:04:05.000 [LEVEL] [prefix] message
//
// to a log file, an io.Writer or both.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelNone disables all logging
	LevelNone
)

// String returns string representation of log level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name case-insensitively. Unknown names map to
// LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "none", "off":
		return LevelNone
	default:
		return LevelInfo
	}
}

// Logger is a leveled, prefixed logger. Loggers derived with WithPrefix
// share the sink of their parent.
type Logger struct {
	mu     sync.RWMutex
	level  Level
	out    *log.Logger
	prefix string
	file   *os.File
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// New creates a logger writing to the file at logPath. An empty path or
// LevelNone yields a disabled logger.
func New(level Level, logPath string, prefix string) (*Logger, error) {
	return Open(level, logPath, nil, prefix)
}

// NewWriter creates a logger writing to w.
func NewWriter(level Level, w io.Writer, prefix string) *Logger {
	if w == nil || level == LevelNone {
		return discard(prefix)
	}
	return &Logger{level: level, out: log.New(w, "", 0), prefix: prefix}
}

// Open creates a logger writing to the file at logPath and, when mirror is
// non-nil, to mirror as well.
func Open(level Level, logPath string, mirror io.Writer, prefix string) (*Logger, error) {
	if level == LevelNone || (logPath == "" && mirror == nil) {
		return discard(prefix), nil
	}
	if logPath == "" {
		return NewWriter(level, mirror, prefix), nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var w io.Writer = file
	if mirror != nil {
		w = io.MultiWriter(file, mirror)
	}
	return &Logger{level: level, out: log.New(w, "", 0), prefix: prefix, file: file}, nil
}

func discard(prefix string) *Logger {
	return &Logger{level: LevelNone, out: log.New(io.Discard, "", 0), prefix: prefix}
}

// Init opens a logger and installs it as the global logger. The previous
// global logger is closed.
func Init(level Level, logPath string, mirror io.Writer) error {
	l, err := Open(level, logPath, mirror, "")
	if err != nil {
		return err
	}
	if prev := SetGlobal(l); prev != nil {
		prev.Close()
	}
	return nil
}

// SetGlobal replaces the global logger and returns the previous one.
func SetGlobal(l *Logger) *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	prev := globalLogger
	globalLogger = l
	return prev
}

// Global returns the global logger. It discards everything until Init or
// SetGlobal is called.
func Global() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = discard("")
	}
	return globalLogger
}

// WithPrefix creates a logger with an additional prefix
func (l *Logger) WithPrefix(prefix string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.prefix != "" {
		prefix = l.prefix + ":" + prefix
	}
	return &Logger{level: l.level, out: l.out, prefix: prefix}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level != LevelNone && level >= l.level
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}

	prefix := ""
	if l.prefix != "" {
		prefix = "[" + l.prefix + "] "
	}
	l.out.Printf("%s [%s] %s%s",
		time.Now().Format("2006-01-02 15:04:05.000"), level, prefix, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Close closes the log file, if any. Derived loggers do not own the file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Debug logs a debug message using the global logger
func Debug(format string, args ...interface{}) {
	Global().Debug(format, args...)
}

// Info logs an informational message using the global logger
func Info(format string, args ...interface{}) {
	Global().Info(format, args...)
}

// Warn logs a warning message using the global logger
func Warn(format string, args ...interface{}) {
	Global().Warn(format, args...)
}

// Error logs an error message using the global logger
func Error(format string, args ...interface{}) {
	Global().Error(format, args...)
}
