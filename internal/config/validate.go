package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// FieldError pins a validation failure to a configuration field so the
// error notification can name it.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// FieldFromError extracts the offending field name when err carries one.
func FieldFromError(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return ""
}

// Validate checks the fully merged configuration.
func Validate(cfg Config) error {
	if cfg.Source == "" {
		return &FieldError{Field: "source", Reason: "required"}
	}
	if cfg.Destination == "" {
		return &FieldError{Field: "destination", Reason: "required"}
	}
	if cfg.Source == cfg.Destination {
		return &FieldError{Field: "destination", Reason: "must differ from source"}
	}
	if isSubpath(cfg.Source, cfg.Destination) {
		return &FieldError{Field: "destination", Reason: "must not nest inside source"}
	}
	if isSubpath(cfg.Destination, cfg.Source) {
		return &FieldError{Field: "source", Reason: "must not nest inside destination"}
	}

	switch cfg.Trigger {
	case TriggerPointer, TriggerChord:
	default:
		return &FieldError{Field: "trigger", Reason: fmt.Sprintf("must be %q or %q", TriggerPointer, TriggerChord)}
	}

	if cfg.ArmTimeout < 0 {
		return &FieldError{Field: "arm_timeout", Reason: "must not be negative"}
	}
	if cfg.Cooldown < 0 {
		return &FieldError{Field: "cooldown", Reason: "must not be negative"}
	}
	if cfg.MaxOpenFiles < 0 {
		return &FieldError{Field: "max_open_files", Reason: "must not be negative"}
	}

	if cfg.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
			return &FieldError{Field: "listen", Reason: fmt.Sprintf("invalid host:port: %v", err)}
		}
	}

	if cfg.Sysmon.Enabled && cfg.Sysmon.Interval <= 0 {
		return &FieldError{Field: "sysmon.interval", Reason: "must be positive"}
	}

	if cfg.Fleet.Enabled {
		if cfg.Fleet.RedisAddr == "" {
			return &FieldError{Field: "fleet.redis_addr", Reason: "required when fleet is enabled"}
		}
		if cfg.Fleet.Interval <= 0 {
			return &FieldError{Field: "fleet.interval", Reason: "must be positive"}
		}
		if cfg.Fleet.TTL <= cfg.Fleet.Interval {
			return &FieldError{Field: "fleet.ttl", Reason: "must exceed fleet.interval"}
		}
	}

	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.Endpoint == "" {
			return &FieldError{Field: "telemetry.endpoint", Reason: "required when telemetry is enabled"}
		}
		switch cfg.Telemetry.Protocol {
		case "grpc", "http":
		default:
			return &FieldError{Field: "telemetry.protocol", Reason: `must be "grpc" or "http"`}
		}
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return &FieldError{Field: "telemetry.sample_ratio", Reason: "must be within [0, 1]"}
	}

	return nil
}

// isSubpath reports whether child lives inside parent.
func isSubpath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}
