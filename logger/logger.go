// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package logger provides the leveled Logger used throughout roaring32.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

const RFC3339UsecTz0 = "2006-01-02T15:04:05.000000Z07:00"

// Ensure implementations satisfy the interface.
var (
	_ Logger = &nopLogger{}
	_ Logger = &standardLogger{}
	_ Logger = &LogfLogger{}
	_ Logger = &BufferLogger{}
)

// Logger represents an interface for a shared logger.
type Logger interface {
	Printf(format string, v ...interface{})
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	Panicf(format string, v ...interface{})
	// WithPrefix returns a Logger with the same configuration as this
	// one whose messages all carry the given prefix.
	WithPrefix(prefix string) Logger
}

const (
	LevelPanic = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

// LevelPrefix returns the fixed-width tag printed ahead of a message.
func LevelPrefix(level int) string {
	return [...]string{"PANIC: ", "ERROR: ", "WARN:  ", "INFO:  ", "DEBUG: "}[level]
}

var StderrLogger Logger = NewStandardLogger(os.Stderr)

// NopLogger discards everything. Bitmaps use it unless told otherwise.
var NopLogger Logger = &nopLogger{}

type nopLogger struct{}

func (*nopLogger) Printf(format string, v ...interface{}) {}
func (*nopLogger) Debugf(format string, v ...interface{}) {}
func (*nopLogger) Infof(format string, v ...interface{})  {}
func (*nopLogger) Warnf(format string, v ...interface{})  {}
func (*nopLogger) Errorf(format string, v ...interface{}) {}
func (*nopLogger) Panicf(format string, v ...interface{}) {}
func (n *nopLogger) WithPrefix(string) Logger             { return n }

// standardLogger is a leveled Logger on top of log.Logger.
type standardLogger struct {
	logger    *log.Logger
	verbosity int
	prefix    string
	w         io.Writer
}

// utcWriter stamps each line in UTC with microsecond resolution.
type utcWriter struct {
	w io.Writer
}

func (u utcWriter) Write(p []byte) (int, error) {
	return fmt.Fprintf(u.w, "%s %s", time.Now().UTC().Format(RFC3339UsecTz0), p)
}

func newStandardLogger(w io.Writer, verbosity int, prefix string) *standardLogger {
	l := log.New(utcWriter{w: w}, prefix, 0)
	return &standardLogger{
		logger:    l,
		verbosity: verbosity,
		prefix:    prefix,
		w:         w,
	}
}

// NewStandardLogger logs at info level and above to w.
func NewStandardLogger(w io.Writer) Logger {
	return newStandardLogger(w, LevelInfo, "")
}

// NewVerboseLogger logs everything, including debug output, to w.
func NewVerboseLogger(w io.Writer) Logger {
	return newStandardLogger(w, LevelDebug, "")
}

func (s *standardLogger) printf(level int, format string, v ...interface{}) {
	if level > s.verbosity {
		return
	}
	s.logger.Printf(LevelPrefix(level)+format, v...)
}

func (s *standardLogger) Printf(format string, v ...interface{}) { s.printf(LevelInfo, format, v...) }
func (s *standardLogger) Debugf(format string, v ...interface{}) { s.printf(LevelDebug, format, v...) }
func (s *standardLogger) Infof(format string, v ...interface{})  { s.printf(LevelInfo, format, v...) }
func (s *standardLogger) Warnf(format string, v ...interface{})  { s.printf(LevelWarn, format, v...) }
func (s *standardLogger) Errorf(format string, v ...interface{}) { s.printf(LevelError, format, v...) }
func (s *standardLogger) Panicf(format string, v ...interface{}) { s.printf(LevelPanic, format, v...) }

func (s *standardLogger) WithPrefix(prefix string) Logger {
	return newStandardLogger(s.w, s.verbosity, s.prefix+prefix)
}

// Logfer is anything with a Logf method, like testing.T or testing.B.
type Logfer interface {
	Logf(format string, v ...interface{})
}

// LogfLogger adapts a Logfer to Logger, mostly for tests.
type LogfLogger struct {
	wrapped Logfer
	prefix  string
}

func NewLogfLogger(l Logfer) *LogfLogger {
	return &LogfLogger{wrapped: l}
}

func (ll *LogfLogger) logf(level int, format string, v ...interface{}) {
	ll.wrapped.Logf(ll.prefix+LevelPrefix(level)+format, v...)
}

func (ll *LogfLogger) Printf(format string, v ...interface{}) { ll.logf(LevelInfo, format, v...) }
func (ll *LogfLogger) Debugf(format string, v ...interface{}) { ll.logf(LevelDebug, format, v...) }
func (ll *LogfLogger) Infof(format string, v ...interface{})  { ll.logf(LevelInfo, format, v...) }
func (ll *LogfLogger) Warnf(format string, v ...interface{})  { ll.logf(LevelWarn, format, v...) }
func (ll *LogfLogger) Errorf(format string, v ...interface{}) { ll.logf(LevelError, format, v...) }
func (ll *LogfLogger) Panicf(format string, v ...interface{}) { ll.logf(LevelPanic, format, v...) }

func (ll *LogfLogger) WithPrefix(prefix string) Logger {
	return &LogfLogger{wrapped: ll.wrapped, prefix: ll.prefix + prefix}
}

// BufferLogger holds log messages in memory so tests can inspect them.
// Debug output is kept too.
type BufferLogger struct {
	mu     *sync.Mutex
	buf    *bytes.Buffer
	prefix string
}

// NewBufferLogger returns a new, empty BufferLogger.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{mu: &sync.Mutex{}, buf: &bytes.Buffer{}}
}

func (b *BufferLogger) logf(level int, format string, v ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(b.buf, b.prefix+LevelPrefix(level)+format+"\n", v...)
}

func (b *BufferLogger) Printf(format string, v ...interface{}) { b.logf(LevelInfo, format, v...) }
func (b *BufferLogger) Debugf(format string, v ...interface{}) { b.logf(LevelDebug, format, v...) }
func (b *BufferLogger) Infof(format string, v ...interface{})  { b.logf(LevelInfo, format, v...) }
func (b *BufferLogger) Warnf(format string, v ...interface{})  { b.logf(LevelWarn, format, v...) }
func (b *BufferLogger) Errorf(format string, v ...interface{}) { b.logf(LevelError, format, v...) }
func (b *BufferLogger) Panicf(format string, v ...interface{}) { b.logf(LevelPanic, format, v...) }

// WithPrefix shares the underlying buffer with the returned logger.
func (b *BufferLogger) WithPrefix(prefix string) Logger {
	return &BufferLogger{mu: b.mu, buf: b.buf, prefix: b.prefix + prefix}
}

// String returns everything logged so far.
func (b *BufferLogger) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
