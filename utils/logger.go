package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Logger provides leveled logging throughout the application.
type Logger struct {
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
	debug *log.Logger
	color bool
}

// NewLogger creates a new Logger writing to stdout/stderr.
func NewLogger() *Logger {
	flags := 0
	return &Logger{
		info:  log.New(os.Stdout, "", flags),
		warn:  log.New(os.Stdout, "", flags),
		err:   log.New(os.Stderr, "", flags),
		debug: log.New(os.Stdout, "", flags),
		color: true,
	}
}

// NewLoggerTo sends every level to w without color codes.
func NewLoggerTo(w io.Writer) *Logger {
	l := log.New(w, "", 0)
	return &Logger{info: l, warn: l, err: l, debug: l}
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() *Logger {
	return NewLoggerTo(io.Discard)
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) tag(level, color string) string {
	if !l.color {
		return fmt.Sprintf("%-5s", level)
	}
	return fmt.Sprintf("\033[%sm%-5s\033[0m", color, level)
}

func (l *Logger) Info(format string, args ...any) {
	l.info.Printf(fmt.Sprintf("[%s] %s %s\n", l.timestamp(), l.tag("INFO", "32"), format), args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.warn.Printf(fmt.Sprintf("[%s] %s %s\n", l.timestamp(), l.tag("WARN", "33"), format), args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.err.Printf(fmt.Sprintf("[%s] %s %s\n", l.timestamp(), l.tag("ERROR", "31"), format), args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.debug.Printf(fmt.Sprintf("[%s] %s %s\n", l.timestamp(), l.tag("DEBUG", "36"), format), args...)
}

// Writer exposes the info stream, e.g. for HTTP access logs.
func (l *Logger) Writer() io.Writer {
	return l.info.Writer()
}
