package config

import (
	"fmt"
	"time"
)

// FileConfig mirrors the YAML schema. Pointer fields distinguish "absent"
// from zero values; durations arrive as strings ("5s") and are parsed during
// merge.
type FileConfig struct {
	Source       *string  `yaml:"source"`
	Destination  *string  `yaml:"destination"`
	Extensions   []string `yaml:"extensions"`
	Trigger      *string  `yaml:"trigger"`
	ArmTimeout   *string  `yaml:"arm_timeout"`
	Cooldown     *string  `yaml:"cooldown"`
	MaxOpenFiles *int     `yaml:"max_open_files"`
	Listen       *string  `yaml:"listen"`
	Once         *bool    `yaml:"once"`

	Log       *FileLog       `yaml:"log"`
	Notify    *FileNotify    `yaml:"notify"`
	Sysmon    *FileSysmon    `yaml:"sysmon"`
	History   *FileHistory   `yaml:"history"`
	Fleet     *FileFleet     `yaml:"fleet"`
	Telemetry *FileTelemetry `yaml:"telemetry"`
}

// FileLog mirrors the log section.
type FileLog struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

// FileNotify mirrors the notify section.
type FileNotify struct {
	Desktop   *bool   `yaml:"desktop"`
	Sound     *bool   `yaml:"sound"`
	SoundsDir *string `yaml:"sounds_dir"`
}

// FileSysmon mirrors the sysmon section.
type FileSysmon struct {
	Enabled  *bool   `yaml:"enabled"`
	Interval *string `yaml:"interval"`
	Dir      *string `yaml:"dir"`
}

// FileHistory mirrors the history section.
type FileHistory struct {
	Dir *string `yaml:"dir"`
}

// FileFleet mirrors the fleet section.
type FileFleet struct {
	Enabled   *bool   `yaml:"enabled"`
	RedisAddr *string `yaml:"redis_addr"`
	Node      *string `yaml:"node"`
	Interval  *string `yaml:"interval"`
	TTL       *string `yaml:"ttl"`
}

// FileTelemetry mirrors the telemetry section.
type FileTelemetry struct {
	Enabled     *bool    `yaml:"enabled"`
	Endpoint    *string  `yaml:"endpoint"`
	Protocol    *string  `yaml:"protocol"`
	SampleRatio *float64 `yaml:"sample_ratio"`
	Insecure    *bool    `yaml:"insecure"`
}

// mergeFileConfig applies the file layer on top of defaults.
func mergeFileConfig(cfg *Config, f *FileConfig) error {
	setString(&cfg.Source, f.Source)
	setString(&cfg.Destination, f.Destination)
	if f.Extensions != nil {
		cfg.Extensions = f.Extensions
	}
	setString(&cfg.Trigger, f.Trigger)
	if err := setDuration(&cfg.ArmTimeout, f.ArmTimeout, "arm_timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Cooldown, f.Cooldown, "cooldown"); err != nil {
		return err
	}
	setInt(&cfg.MaxOpenFiles, f.MaxOpenFiles)
	setString(&cfg.Listen, f.Listen)
	setBool(&cfg.Once, f.Once)

	if f.Log != nil {
		setString(&cfg.Log.Level, f.Log.Level)
		setString(&cfg.Log.Format, f.Log.Format)
	}
	if f.Notify != nil {
		setBool(&cfg.Notify.Desktop, f.Notify.Desktop)
		setBool(&cfg.Notify.Sound, f.Notify.Sound)
		setString(&cfg.Notify.SoundsDir, f.Notify.SoundsDir)
	}
	if f.Sysmon != nil {
		setBool(&cfg.Sysmon.Enabled, f.Sysmon.Enabled)
		if err := setDuration(&cfg.Sysmon.Interval, f.Sysmon.Interval, "sysmon.interval"); err != nil {
			return err
		}
		setString(&cfg.Sysmon.Dir, f.Sysmon.Dir)
	}
	if f.History != nil {
		setString(&cfg.History.Dir, f.History.Dir)
	}
	if f.Fleet != nil {
		setBool(&cfg.Fleet.Enabled, f.Fleet.Enabled)
		setString(&cfg.Fleet.RedisAddr, f.Fleet.RedisAddr)
		setString(&cfg.Fleet.Node, f.Fleet.Node)
		if err := setDuration(&cfg.Fleet.Interval, f.Fleet.Interval, "fleet.interval"); err != nil {
			return err
		}
		if err := setDuration(&cfg.Fleet.TTL, f.Fleet.TTL, "fleet.ttl"); err != nil {
			return err
		}
	}
	if f.Telemetry != nil {
		setBool(&cfg.Telemetry.Enabled, f.Telemetry.Enabled)
		setString(&cfg.Telemetry.Endpoint, f.Telemetry.Endpoint)
		setString(&cfg.Telemetry.Protocol, f.Telemetry.Protocol)
		if f.Telemetry.SampleRatio != nil {
			cfg.Telemetry.SampleRatio = *f.Telemetry.SampleRatio
		}
		setBool(&cfg.Telemetry.Insecure, f.Telemetry.Insecure)
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string, field string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return &FieldError{Field: field, Reason: fmt.Sprintf("invalid duration %q", *src)}
	}
	*dst = d
	return nil
}
