package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	corelogger "github.com/kilianp07/carprice/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// Options controls the output of loggers created by New.
type Options struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Format is "console" or "json". Empty means APP_ENV decides.
	Format string
	// Out defaults to stderr so command output on stdout stays clean.
	Out io.Writer

	// File, when set and Out is nil, sends logs to a size rotated file.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	mu      sync.RWMutex
	current = Options{}
	rotator *lumberjack.Logger
)

// Configure sets the options used by subsequent calls to New. A rotating
// file opened by a previous call is closed.
func Configure(o Options) error {
	var next *lumberjack.Logger
	if o.Out == nil && o.File != "" {
		if err := os.MkdirAll(filepath.Dir(o.File), 0o755); err != nil {
			return err
		}
		next = &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAgeDays,
		}
		o.Out = next
	}
	mu.Lock()
	prev := rotator
	current, rotator = o, next
	mu.Unlock()
	if prev != nil {
		return prev.Close()
	}
	return nil
}

// Close flushes and closes the log file, if any. Loggers created earlier
// reopen it on their next write.
func Close() error {
	mu.RLock()
	r := rotator
	mu.RUnlock()
	if r == nil {
		return nil
	}
	return r.Close()
}

// New returns a Logger for the given component.
func New(component string) Logger {
	mu.RLock()
	o := current
	mu.RUnlock()
	return NewZerologLogger(component, o)
}
