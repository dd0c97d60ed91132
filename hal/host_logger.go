//go:build !tinygo

package hal

import (
	"bytes"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "15:04:05.000"

// hostLogger is the console sink of the simulated UART. Lines written through
// the plain Logger methods come out at info level; klog passes its severity
// through WriteLevel.
type hostLogger struct {
	zl zerolog.Logger
}

func newHostLogger(w io.Writer, noColor bool) *hostLogger {
	if w == nil {
		w = os.Stdout
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat, NoColor: noColor}
	zl := zerolog.New(cw).Level(zerolog.TraceLevel).With().Timestamp().Logger()
	return &hostLogger{zl: zl}
}

func (l *hostLogger) WriteLineString(s string) { l.zl.Info().Msg(s) }

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.zl.Info().Msg(string(bytes.TrimRight(b, "\r\n")))
}

func (l *hostLogger) WriteLevel(level LogLevel, component, msg string) {
	e := l.zl.WithLevel(zerologLevel(level))
	if e == nil {
		return
	}
	if level <= LogCrit {
		e.Str("severity", level.String())
	}
	if component != "" {
		e.Str("component", component)
	}
	e.Msg(msg)
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch {
	case level <= LogErr:
		return zerolog.ErrorLevel
	case level == LogWarning:
		return zerolog.WarnLevel
	case level == LogDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
