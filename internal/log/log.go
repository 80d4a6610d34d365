// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log is a small leveled-logging facade adapted from the
// teacher's own saferwall/pe/log helper: a Logger interface any host
// can implement, a std writer, a level Filter, and a Helper that adds
// Debugf/Infof/Warnf/Errorf sugar. No other package of this module
// imports it.
package log

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level is a logging severity.
type Level int8

// Severities, low to high.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

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
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal sink every component writes through.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger writes "time level msg" lines to an io.Writer.
type stdLogger struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdLogger returns a Logger that writes to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{out: w}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.out, "%s %s %v\n",
		time.Now().Format(time.RFC3339), level, fmt.Sprint(keyvals...))
	return err
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// FilterLevel drops any record below level.
func FilterLevel(level Level) FilterOption {
	return func(f *Filter) { f.level = level }
}

// Filter wraps a Logger, dropping records below a configured level.
type Filter struct {
	logger Logger
	level  Level
}

// NewFilter builds a level-filtering Logger.
func NewFilter(logger Logger, opts ...FilterOption) Logger {
	f := &Filter{logger: logger, level: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.logger.Log(level, keyvals...)
}

// Helper adds printf-style sugar on top of a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, format string, args ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	h.logger.Log(level, fmt.Sprintf(format, args...))
}

// Debugf logs at debug level.
func (h *Helper) Debugf(format string, args ...interface{}) { h.log(LevelDebug, format, args...) }

// Infof logs at info level.
func (h *Helper) Infof(format string, args ...interface{}) { h.log(LevelInfo, format, args...) }

// Warnf logs at warn level.
func (h *Helper) Warnf(format string, args ...interface{}) { h.log(LevelWarn, format, args...) }

// Errorf logs at error level.
func (h *Helper) Errorf(format string, args ...interface{}) { h.log(LevelError, format, args...) }

// Debug logs args at debug level.
func (h *Helper) Debug(args ...interface{}) { h.log(LevelDebug, "%s", fmt.Sprint(args...)) }

// Warn logs args at warn level.
func (h *Helper) Warn(args ...interface{}) { h.log(LevelWarn, "%s", fmt.Sprint(args...)) }
