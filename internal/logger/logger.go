// Package logger provides leveled diagnostic logging on stderr.
//
// User-facing progress goes through the output package on stdout; this
// package is for operational detail an operator needs when a run fails:
// which command ran, which phase was entered, what a tool printed.
//
// # Log Levels
//
// Debug, Info, Warn and Error. Init(false) shows Warn and Error only;
// Init(true), driven by --verbose, shows everything.
//
// # Usage
//
//	logger.Debug("running %s", cmdline)
//	logger.Warn("domain %s does not resolve", domain)
//
// Context that belongs to every line of a run is attached with With:
//
//	log := logger.With("domain", "example.com").With("run", runID)
//	log.Info("phase entered", "phase", "BootstrapConfigLive")
//
// # Output Format
//
//	[LEVEL] YYYY-MM-DD HH:MM:SS message key=value ...
//	[INFO] 2026-10-16 10:30:45 phase entered domain=example.com phase=BootstrapConfigLive
//
// Keys are sorted so lines are stable across runs.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents a logging severity level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
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
	default:
		return "UNKNOWN"
	}
}

// sink is the destination shared by a logger and its children.
type sink struct {
	mu     sync.Mutex
	level  Level
	output io.Writer
	now    func() time.Time
}

// Logger writes leveled lines, optionally carrying fixed fields.
type Logger struct {
	sink   *sink
	fields map[string]interface{}
}

// Global logger instance.
var std = &Logger{sink: &sink{
	level:  LevelWarn, // Default: only warnings and errors
	output: os.Stderr,
	now:    time.Now,
}}

// New creates a standalone logger writing to w at level.
func New(w io.Writer, level Level) *Logger {
	return &Logger{sink: &sink{level: level, output: w, now: time.Now}}
}

// Init initializes the global logger with the specified verbosity.
func Init(verbose bool) {
	if verbose {
		SetLevel(LevelDebug)
	} else {
		SetLevel(LevelWarn)
	}
}

// SetLevel sets the minimum log level for the global logger.
func SetLevel(level Level) {
	std.sink.mu.Lock()
	defer std.sink.mu.Unlock()
	std.sink.level = level
}

// SetOutput sets the output destination for the global logger.
func SetOutput(w io.Writer) {
	std.sink.mu.Lock()
	defer std.sink.mu.Unlock()
	std.sink.output = w
}

// GetLevel returns the current log level.
func GetLevel() Level {
	std.sink.mu.Lock()
	defer std.sink.mu.Unlock()
	return std.sink.level
}

// Default returns the global logger.
func Default() *Logger {
	return std
}

// With returns a child logger that adds key=value to every line.
func (l *Logger) With(key string, value interface{}) *Logger {
	fields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Logger{sink: l.sink, fields: fields}
}

// With returns a child of the global logger.
func With(key string, value interface{}) *Logger {
	return std.With(key, value)
}

// write emits one line; kv are alternating keys and values.
func (l *Logger) write(level Level, msg string, kv []interface{}) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level {
		return
	}

	fields := make(map[string]interface{}, len(l.fields)+len(kv)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}

	// Sort field keys for consistent output
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", level.String(), s.now().Format("2006-01-02 15:04:05"), msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	b.WriteByte('\n')
	_, _ = io.WriteString(s.output, b.String())
}

// Debug logs msg with key/value pairs at debug level.
func (l *Logger) Debug(msg string, kv ...interface{}) { l.write(LevelDebug, msg, kv) }

// Info logs msg with key/value pairs at info level.
func (l *Logger) Info(msg string, kv ...interface{}) { l.write(LevelInfo, msg, kv) }

// Warn logs msg with key/value pairs at warn level.
func (l *Logger) Warn(msg string, kv ...interface{}) { l.write(LevelWarn, msg, kv) }

// Error logs msg with key/value pairs at error level.
func (l *Logger) Error(msg string, kv ...interface{}) { l.write(LevelError, msg, kv) }

// Debug logs a formatted debug message on the global logger.
func Debug(format string, args ...interface{}) {
	std.write(LevelDebug, fmt.Sprintf(format, args...), nil)
}

// Info logs a formatted informational message on the global logger.
func Info(format string, args ...interface{}) {
	std.write(LevelInfo, fmt.Sprintf(format, args...), nil)
}

// Warn logs a formatted warning on the global logger.
func Warn(format string, args ...interface{}) {
	std.write(LevelWarn, fmt.Sprintf(format, args...), nil)
}

// Error logs a formatted error on the global logger.
func Error(format string, args ...interface{}) {
	std.write(LevelError, fmt.Sprintf(format, args...), nil)
}

// LogError logs err with a context message. Nil errors are ignored.
func LogError(err error, msg string) {
	if err == nil {
		return
	}
	std.write(LevelError, fmt.Sprintf("%s: %v", msg, err), nil)
}
