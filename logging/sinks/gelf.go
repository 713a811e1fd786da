package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Graylog2/go-gelf/gelf"

	"arena/server/logging"
)

// GelfSink ships events to Graylog over UDP.
type GelfSink struct {
	writer *gelf.Writer
	host   string
}

func NewGelfSink(address string) (*GelfSink, error) {
	writer, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("connect graylog %s: %w", address, err)
	}
	host, _ := os.Hostname()
	return &GelfSink{writer: writer, host: host}, nil
}

func (s *GelfSink) Write(event logging.Event) error {
	return s.writer.WriteMessage(gelfMessage(event, s.host))
}

func (s *GelfSink) Close(context.Context) error {
	return s.writer.Close()
}

func gelfMessage(event logging.Event, host string) *gelf.Message {
	extra := map[string]interface{}{
		"_type":  string(event.Type),
		"_tick":  event.Tick,
		"_actor": formatEntity(event.Actor),
	}
	if event.Category != "" {
		extra["_category"] = event.Category
	}
	if targets := formatTargets(event.Targets); targets != "" {
		extra["_targets"] = targets
	}
	for k, v := range event.Extra {
		extra["_"+k] = v
	}
	full := ""
	if event.Payload != nil {
		if data, err := json.Marshal(event.Payload); err == nil {
			full = string(data)
		}
	}
	return &gelf.Message{
		Version:  "1.1",
		Host:     host,
		Short:    string(event.Type),
		Full:     full,
		TimeUnix: float64(event.Time.UnixNano()) / 1e9,
		Level:    syslogLevel(event.Severity),
		Facility: "arena",
		Extra:    extra,
	}
}

// syslogLevel maps severities onto the syslog levels GELF expects.
func syslogLevel(sev logging.Severity) int32 {
	switch sev {
	case logging.SeverityDebug:
		return 7
	case logging.SeverityWarn:
		return 4
	case logging.SeverityError:
		return 3
	default:
		return 6
	}
}
