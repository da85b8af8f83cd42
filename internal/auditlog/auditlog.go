// Package auditlog appends timestamped, leveled entries for every decision,
// prompt, and remote-call outcome of a run. The trail is the operator-facing
// record; diagnostic logging goes through slog separately.
package auditlog

import (
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level classifies an audit entry.
type Level string

const (
	Info    Level = "INFO"
	Success Level = "SUCCESS"
	Warning Level = "WARNING"
	Error   Level = "ERROR"
)

// Log writes audit entries to a single destination. Safe for use from the
// single control thread plus deferred cleanup paths.
type Log struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	Clock  func() time.Time
}

// New wraps an arbitrary writer, for tests and stdout trails.
func New(w io.Writer) *Log {
	return &Log{w: w, Clock: time.Now}
}

// Open appends to a rotating file at path.
func Open(path string) *Log {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		Compress:   true,
	}
	return &Log{w: lj, closer: lj, Clock: time.Now}
}

// Append writes one formatted entry.
func (l *Log) Append(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := l.Clock().Format(time.DateTime)
	fmt.Fprintf(l.w, "%s [%s] %s\n", ts, level, fmt.Sprintf(format, args...))
}

func (l *Log) Info(format string, args ...any)    { l.Append(Info, format, args...) }
func (l *Log) Success(format string, args ...any) { l.Append(Success, format, args...) }
func (l *Log) Warning(format string, args ...any) { l.Append(Warning, format, args...) }
func (l *Log) Error(format string, args ...any)   { l.Append(Error, format, args...) }

// Close flushes the underlying file, if any.
func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
