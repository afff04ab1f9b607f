// Package gwlog is the gateway's small logging wrapper: a Logger around
// the standard library's log.Logger with Debugf/Infof/Errorf, matching the
// teacher's ConsoleLogger/LogEntry style rather than pulling in a
// structured-logging library the reference stack never uses.
package gwlog

import (
	"log"
	"os"
	"strings"
)

// Logger wraps a standard library logger with a debug gate. Request-scoped
// context (session key, upstream URL, variant index) is interpolated
// directly into the message rather than carried as structured fields.
type Logger struct {
	out   *log.Logger
	debug bool
}

// New builds a Logger writing to os.Stderr.
func New(debug bool) *Logger {
	return &Logger{
		out:   log.New(os.Stderr, "", log.LstdFlags),
		debug: debug,
	}
}

// FromEnv builds a Logger whose debug gate honors RSP4COPILOT_DEBUG
// (1/true/yes/on, case-insensitive).
func FromEnv() *Logger {
	return New(parseBoolFlag(os.Getenv("RSP4COPILOT_DEBUG")))
}

func parseBoolFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Debugf logs only when the debug gate is on.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.out.Printf("DEBUG "+format, args...)
}

// Infof always logs.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.out.Printf("INFO "+format, args...)
}

// Errorf always logs.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.out.Printf("ERROR "+format, args...)
}

// Default is the package-level logger most callers reach for, built once
// from the environment at package init.
var Default = FromEnv()

func Debugf(format string, args ...interface{}) { Default.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { Default.Infof(format, args...) }
func Errorf(format string, args ...interface{}) { Default.Errorf(format, args...) }
