package klog

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"watch/hal"
)

// Sometimes throttles a repeating message. Suppressed messages are counted
// and the count is appended to the next one that gets through.
type Sometimes struct {
	l       *Logger
	lim     *rate.Limiter
	now     func() time.Time
	dropped atomic.Uint32
}

// Sometimes allows one message per every, with bursts of up to burst.
func (l *Logger) Sometimes(every time.Duration, burst int) *Sometimes {
	if burst < 1 {
		burst = 1
	}
	return &Sometimes{l: l, lim: rate.NewLimiter(rate.Every(every), burst), now: time.Now}
}

// Logf writes the message if the rate allows it.
func (s *Sometimes) Logf(level hal.LogLevel, format string, args ...any) {
	if !s.l.Enabled(level) {
		return
	}
	if !s.lim.AllowN(s.now(), 1) {
		s.dropped.Add(1)
		return
	}
	msg := fmt.Sprintf(format, args...)
	if n := s.dropped.Swap(0); n > 0 {
		msg = fmt.Sprintf("%s (%d suppressed)", msg, n)
	}
	s.l.Log(level, msg)
}

// Dropped returns the number of messages suppressed since the last one
// written.
func (s *Sometimes) Dropped() uint32 { return s.dropped.Load() }
