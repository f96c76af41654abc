// Package logger provides the level-filtered logger used across the batch engine.
// It writes through the standard `log` package so that output stays compatible with
// anything that already captures the process log stream.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel is a type representing the logging level.
// Smaller numbers indicate more detailed log levels.
type LogLevel int

const (
	// LevelDebug is used for detailed debugging information (per-chunk progress, SQL).
	LevelDebug LogLevel = iota
	// LevelInfo is used for lifecycle messages (job and step start/end).
	LevelInfo
	// LevelWarn is used for recoverable anomalies.
	LevelWarn
	// LevelError is used for failures that end a step or a job.
	LevelError
	// LevelFatal is used right before the process exits.
	LevelFatal
)

var (
	mu       sync.RWMutex
	logLevel = LevelInfo
	std      = log.New(os.Stderr, "", log.LstdFlags)
)

// ParseLevel converts a level name ("DEBUG", "INFO", "WARN", "ERROR", "FATAL",
// case-insensitive) into a LogLevel. The boolean is false for unknown names.
func ParseLevel(level string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "TRACE":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	}
	return LevelInfo, false
}

// SetLogLevel sets the global log level.
// An unknown value falls back to INFO and reports it on the log itself.
func SetLogLevel(level string) {
	lvl, ok := ParseLevel(level)
	mu.Lock()
	logLevel = lvl
	mu.Unlock()
	if !ok {
		Warnf("Unknown log level '%s' specified. Defaulting to INFO level.", level)
	}
}

// GetLogLevel returns the current global log level.
func GetLogLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return logLevel
}

// SetOutput redirects all log output to w. Tests use it to capture messages.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

func enabled(lvl LogLevel) bool {
	mu.RLock()
	defer mu.RUnlock()
	return logLevel <= lvl
}

func output(prefix, format string, v ...interface{}) {
	_ = std.Output(3, prefix+fmt.Sprintf(format, v...))
}

// Debugf formats and outputs a DEBUG level log message.
func Debugf(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		output("[DEBUG] ", format, v...)
	}
}

// Infof formats and outputs an INFO level log message.
func Infof(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		output("[INFO] ", format, v...)
	}
}

// Warnf formats and outputs a WARN level log message.
func Warnf(format string, v ...interface{}) {
	if enabled(LevelWarn) {
		output("[WARN] ", format, v...)
	}
}

// Errorf formats and outputs an ERROR level log message.
func Errorf(format string, v ...interface{}) {
	if enabled(LevelError) {
		output("[ERROR] ", format, v...)
	}
}

// Fatalf outputs a FATAL level log message and terminates the program with os.Exit(1).
func Fatalf(format string, v ...interface{}) {
	output("[FATAL] ", format, v...)
	os.Exit(1)
}
