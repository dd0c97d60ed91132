// Package klog is the firmware console logger: syslog severities, a
// threshold and a component prefix on top of a hal.Logger sink.
package klog

import (
	"fmt"
	"sync/atomic"

	"watch/hal"
)

// Logger filters by severity and tags lines with a component. The zero value
// discards everything.
type Logger struct {
	sink       hal.Logger
	structured hal.LevelLogger
	threshold  *atomic.Uint32
	component  string
}

// New logs to sink every message at threshold or more severe.
func New(sink hal.Logger, threshold hal.LogLevel) *Logger {
	l := &Logger{sink: sink, threshold: new(atomic.Uint32)}
	l.structured, _ = sink.(hal.LevelLogger)
	l.threshold.Store(uint32(threshold))
	return l
}

// With returns a logger for component sharing the sink and threshold.
func (l *Logger) With(component string) *Logger {
	c := *l
	c.component = component
	return &c
}

// SetLevel changes the threshold of l and every logger derived from it.
func (l *Logger) SetLevel(level hal.LogLevel) {
	if l.threshold != nil {
		l.threshold.Store(uint32(level))
	}
}

// Level returns the current threshold.
func (l *Logger) Level() hal.LogLevel {
	if l.threshold == nil {
		return hal.LogEmerg
	}
	return hal.LogLevel(l.threshold.Load())
}

// Enabled reports whether a message at level would be written.
func (l *Logger) Enabled(level hal.LogLevel) bool {
	return l.sink != nil && l.threshold != nil && uint32(level) <= l.threshold.Load()
}

// Log writes msg at level.
func (l *Logger) Log(level hal.LogLevel, msg string) {
	if !l.Enabled(level) {
		return
	}
	if l.structured != nil {
		l.structured.WriteLevel(level, l.component, msg)
		return
	}
	if l.component != "" {
		msg = l.component + ": " + msg
	}
	l.sink.WriteLineString("[" + level.String() + "] " + msg)
}

// Logf formats and writes at level. Arguments are not evaluated into a
// string when the level is filtered.
func (l *Logger) Logf(level hal.LogLevel, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	l.Log(level, fmt.Sprintf(format, args...))
}

func (l *Logger) Emergf(format string, args ...any)  { l.Logf(hal.LogEmerg, format, args...) }
func (l *Logger) Alertf(format string, args ...any)  { l.Logf(hal.LogAlert, format, args...) }
func (l *Logger) Critf(format string, args ...any)   { l.Logf(hal.LogCrit, format, args...) }
func (l *Logger) Errorf(format string, args ...any)  { l.Logf(hal.LogErr, format, args...) }
func (l *Logger) Warnf(format string, args ...any)   { l.Logf(hal.LogWarning, format, args...) }
func (l *Logger) Noticef(format string, args ...any) { l.Logf(hal.LogNotice, format, args...) }
func (l *Logger) Infof(format string, args ...any)   { l.Logf(hal.LogInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...any)  { l.Logf(hal.LogDebug, format, args...) }
