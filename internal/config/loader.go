// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path returns the config file path the loader reads from.
func (l *Loader) Path() string { return l.configPath }

// Load loads configuration in Strict Validated Order:
// defaults -> parse file (strict) -> apply env -> normalize -> validate.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)

	normalize(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields cause an error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	// Reject multiple documents or trailing content.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

// mergeEnvConfig applies LIFEBOAT_* environment overrides (highest priority).
func (l *Loader) mergeEnvConfig(cfg *Config) {
	cfg.Source = ParseString("LIFEBOAT_SOURCE", cfg.Source)
	cfg.Destination = ParseString("LIFEBOAT_DESTINATION", cfg.Destination)
	cfg.Extensions = ParseStringSlice("LIFEBOAT_EXTENSIONS", cfg.Extensions)
	cfg.Trigger = ParseString("LIFEBOAT_TRIGGER", cfg.Trigger)
	cfg.ArmTimeout = ParseDuration("LIFEBOAT_ARM_TIMEOUT", cfg.ArmTimeout)
	cfg.Cooldown = ParseDuration("LIFEBOAT_COOLDOWN", cfg.Cooldown)
	cfg.MaxOpenFiles = ParseInt("LIFEBOAT_MAX_OPEN_FILES", cfg.MaxOpenFiles)
	cfg.Listen = ParseString("LIFEBOAT_LISTEN", cfg.Listen)
	cfg.Once = ParseBool("LIFEBOAT_ONCE", cfg.Once)

	cfg.Log.Level = ParseString("LIFEBOAT_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = ParseString("LIFEBOAT_LOG_FORMAT", cfg.Log.Format)

	cfg.Notify.Desktop = ParseBool("LIFEBOAT_NOTIFY_DESKTOP", cfg.Notify.Desktop)
	cfg.Notify.Sound = ParseBool("LIFEBOAT_NOTIFY_SOUND", cfg.Notify.Sound)
	cfg.Notify.SoundsDir = ParseString("LIFEBOAT_SOUNDS_DIR", cfg.Notify.SoundsDir)

	cfg.Sysmon.Enabled = ParseBool("LIFEBOAT_SYSMON_ENABLED", cfg.Sysmon.Enabled)
	cfg.Sysmon.Interval = ParseDuration("LIFEBOAT_SYSMON_INTERVAL", cfg.Sysmon.Interval)
	cfg.Sysmon.Dir = ParseString("LIFEBOAT_SYSMON_DIR", cfg.Sysmon.Dir)

	cfg.History.Dir = ParseString("LIFEBOAT_HISTORY_DIR", cfg.History.Dir)

	cfg.Fleet.Enabled = ParseBool("LIFEBOAT_FLEET_ENABLED", cfg.Fleet.Enabled)
	cfg.Fleet.RedisAddr = ParseString("LIFEBOAT_FLEET_REDIS_ADDR", cfg.Fleet.RedisAddr)
	cfg.Fleet.Node = ParseString("LIFEBOAT_FLEET_NODE", cfg.Fleet.Node)
	cfg.Fleet.Interval = ParseDuration("LIFEBOAT_FLEET_INTERVAL", cfg.Fleet.Interval)
	cfg.Fleet.TTL = ParseDuration("LIFEBOAT_FLEET_TTL", cfg.Fleet.TTL)

	cfg.Telemetry.Enabled = ParseBool("LIFEBOAT_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Endpoint = ParseString("LIFEBOAT_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Protocol = ParseString("LIFEBOAT_OTEL_PROTOCOL", cfg.Telemetry.Protocol)
	cfg.Telemetry.SampleRatio = ParseFloat("LIFEBOAT_OTEL_SAMPLE_RATIO", cfg.Telemetry.SampleRatio)
	cfg.Telemetry.Insecure = ParseBool("LIFEBOAT_OTEL_INSECURE", cfg.Telemetry.Insecure)
}

// normalize canonicalizes fields after all layers are merged.
func normalize(cfg *Config) {
	if cfg.Source != "" {
		if abs, err := filepath.Abs(cfg.Source); err == nil {
			cfg.Source = abs
		}
	}
	if cfg.Destination != "" {
		if abs, err := filepath.Abs(cfg.Destination); err == nil {
			cfg.Destination = abs
		}
	}
	cfg.Extensions = NormalizeExtensions(cfg.Extensions)
	cfg.Trigger = strings.ToLower(strings.TrimSpace(cfg.Trigger))
}

// NormalizeExtensions lowercases entries and guarantees a leading dot, so
// "PDF" and ".pdf" configure the same filter.
func NormalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		return nil
	}
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
