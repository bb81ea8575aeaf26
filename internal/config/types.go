// SPDX-License-Identifier: MIT

package config

import "time"

// Trigger selects which recognizer arms the backup.
const (
	TriggerPointer = "pointer"
	TriggerChord   = "chord"
)

// Config is the resolved daemon configuration.
type Config struct {
	// Source is the directory tree to back up.
	Source string
	// Destination is the rescue target; reports land here too.
	Destination string
	// Extensions is the keep-list for the copy filter. Empty means all
	// files. Entries are normalized to a leading dot, lowercase.
	Extensions []string
	// Trigger is "pointer" (screen-perimeter gesture) or "chord"
	// (ctrl+alt+b plus clicks).
	Trigger string
	// ArmTimeout disarms a pending activation after this duration.
	// Zero keeps the arm until confirmed or canceled.
	ArmTimeout time.Duration
	// Cooldown swallows input after a run finishes.
	Cooldown time.Duration
	// MaxOpenFiles bounds copy concurrency. Zero derives the bound from
	// RLIMIT_NOFILE.
	MaxOpenFiles int
	// Listen is the control API address. Empty disables the API.
	Listen string
	// Once exits the daemon after the first completed run.
	Once bool

	Log       LogConfig
	Notify    NotifyConfig
	Sysmon    SysmonConfig
	History   HistoryConfig
	Fleet     FleetConfig
	Telemetry TelemetryConfig

	// Version is stamped from the binary, not the file.
	Version string
}

// LogConfig controls the zerolog base logger.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // auto, json, console
}

// NotifyConfig controls the user-facing feedback channels.
type NotifyConfig struct {
	Desktop   bool   // desktop notifications via notify-send
	Sound     bool   // beeps via paplay/aplay
	SoundsDir string // directory holding positive-beep.wav / negative-beep.wav
}

// SysmonConfig controls the CPU usage sampler.
type SysmonConfig struct {
	Enabled  bool
	Interval time.Duration
	Dir      string // cpu_log_<ts>.txt directory
}

// HistoryConfig controls the run history store.
type HistoryConfig struct {
	// Dir holds history.db. Empty resolves to the user state dir
	// ($XDG_STATE_HOME/lifeboat); ":memory:" keeps history in memory
	// (tests).
	Dir string
}

// FleetConfig controls the optional Redis status publisher.
type FleetConfig struct {
	Enabled   bool
	RedisAddr string
	Node      string // defaults to the hostname
	Interval  time.Duration
	TTL       time.Duration
}

// TelemetryConfig controls OpenTelemetry trace export.
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	Protocol    string // grpc or http
	SampleRatio float64
	Insecure    bool
}

// Defaults returns the built-in configuration every load starts from.
func Defaults() Config {
	return Config{
		Trigger:    TriggerPointer,
		Cooldown:   5 * time.Second,
		Listen:     "127.0.0.1:8484",
		Log:        LogConfig{Level: "info", Format: "auto"},
		Notify:     NotifyConfig{Desktop: true, Sound: true},
		Sysmon:     SysmonConfig{Enabled: true, Interval: time.Second, Dir: "log"},
		Fleet:      FleetConfig{Interval: 30 * time.Second, TTL: 90 * time.Second},
		Telemetry:  TelemetryConfig{Protocol: "grpc", SampleRatio: 1.0},
		Extensions: nil,
	}
}
