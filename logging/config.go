package logging

import "time"

type Config struct {
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	DropWarnInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
	}
}

// ParseSeverity maps a level name to a Severity, defaulting to info.
func ParseSeverity(level string) Severity {
	switch level {
	case "debug", "trace":
		return SeverityDebug
	case "warn", "warning":
		return SeverityWarn
	case "error", "fatal", "panic":
		return SeverityError
	default:
		return SeverityInfo
	}
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
