package telemetry

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Logger exposes the logging capabilities required by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapZerolog adapts a zerolog logger to the Logger interface. Messages are
// written at info level unless they start with a bracketed tag such as
// "[backpressure]", which is lifted into a "component" field and logged at
// warn level.
func WrapZerolog(logger zerolog.Logger) Logger {
	return &zerologAdapter{logger: logger}
}

type zerologAdapter struct {
	logger zerolog.Logger
}

func (l *zerologAdapter) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if component, rest, ok := splitTag(msg); ok {
		l.logger.Warn().Str("component", component).Msg(rest)
		return
	}
	l.logger.Info().Msg(msg)
}

// Zerolog returns the wrapped logger so callers can emit structured fields.
func (l *zerologAdapter) Zerolog() zerolog.Logger {
	return l.logger
}

func splitTag(msg string) (string, string, bool) {
	if len(msg) < 3 || msg[0] != '[' {
		return "", msg, false
	}
	for i := 1; i < len(msg); i++ {
		if msg[i] == ']' {
			rest := msg[i+1:]
			if len(rest) > 0 && rest[0] == ' ' {
				rest = rest[1:]
			}
			return msg[1:i], rest, true
		}
	}
	return "", msg, false
}

// Nop discards everything.
func Nop() Logger {
	return LoggerFunc(func(string, ...any) {})
}

// Metrics exposes the telemetry methods required by server components.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// Tee fans metric updates out to every non-nil target.
func Tee(targets ...Metrics) Metrics {
	filtered := make([]Metrics, 0, len(targets))
	for _, target := range targets {
		if target != nil {
			filtered = append(filtered, target)
		}
	}
	return tee(filtered)
}

type tee []Metrics

func (t tee) Add(key string, delta uint64) {
	for _, target := range t {
		target.Add(key, delta)
	}
}

func (t tee) Store(key string, value uint64) {
	for _, target := range t {
		target.Store(key, value)
	}
}
