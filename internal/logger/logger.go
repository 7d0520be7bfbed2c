// Package logger provides leveled logging over the standard log package.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	}
	return "info"
}

// ParseLevel maps a LOG_LEVEL value to a Level. Unknown values are info.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	}
	return InfoLevel
}

type leveled struct {
	level  Level
	logger *log.Logger
}

var (
	mu  sync.RWMutex
	std = &leveled{level: InfoLevel, logger: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)}
)

// Init sets the level of the package logger.
func Init(level string) {
	mu.Lock()
	std.level = ParseLevel(level)
	mu.Unlock()
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	std.logger.SetOutput(w)
	mu.Unlock()
}

// Enabled reports whether messages at level l are written.
func Enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return std.level <= l
}

func output(l Level, tag, format string, args ...interface{}) {
	if !Enabled(l) {
		return
	}
	msg := fmt.Sprintf("["+tag+"] "+format, args...)
	_ = std.logger.Output(3, msg)
}

func Debug(format string, args ...interface{}) {
	output(DebugLevel, "DEBUG", format, args...)
}

func Info(format string, args ...interface{}) {
	output(InfoLevel, "INFO", format, args...)
}

func Warn(format string, args ...interface{}) {
	output(WarnLevel, "WARN", format, args...)
}

func Error(format string, args ...interface{}) {
	output(ErrorLevel, "ERROR", format, args...)
}

func Fatal(format string, args ...interface{}) {
	_ = std.logger.Output(2, fmt.Sprintf("[FATAL] "+format, args...))
	os.Exit(1)
}
