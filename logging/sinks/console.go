package sinks

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"arena/server/logging"
)

// ConsoleSink renders events as structured zerolog lines.
type ConsoleSink struct {
	logger zerolog.Logger
}

func NewConsoleSink(logger zerolog.Logger) *ConsoleSink {
	return &ConsoleSink{logger: logger.With().Str("component", "events").Logger()}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	entry := s.logger.WithLevel(zerologLevel(event.Severity)).
		Str("type", string(event.Type)).
		Uint64("tick", event.Tick).
		Str("actor", formatEntity(event.Actor))
	if event.Category != "" {
		entry = entry.Str("category", event.Category)
	}
	if targets := formatTargets(event.Targets); targets != "" {
		entry = entry.Str("targets", targets)
	}
	if event.Payload != nil {
		entry = entry.Interface("payload", event.Payload)
	}
	if len(event.Extra) > 0 {
		entry = entry.Fields(event.Extra)
	}
	entry.Msg(string(event.Type))
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func zerologLevel(sev logging.Severity) zerolog.Level {
	switch sev {
	case logging.SeverityDebug:
		return zerolog.DebugLevel
	case logging.SeverityWarn:
		return zerolog.WarnLevel
	case logging.SeverityError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return string(ref.Kind) + ":" + ref.ID
}

func formatTargets(targets []logging.EntityRef) string {
	if len(targets) == 0 {
		return ""
	}
	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		parts = append(parts, formatEntity(target))
	}
	return strings.Join(parts, ",")
}
