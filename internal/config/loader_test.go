package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lifeboat.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// minimal returns a config body that passes validation.
func minimal(t *testing.T) (string, string, string) {
	t.Helper()
	src := t.TempDir()
	dst := t.TempDir()
	return "source: " + src + "\ndestination: " + dst + "\n", src, dst
}

func TestLoadDefaults(t *testing.T) {
	body, src, dst := minimal(t)
	path := writeConfig(t, body)

	cfg, err := NewLoader(path, "test").Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Source != src || cfg.Destination != dst {
		t.Errorf("paths = %q -> %q, want %q -> %q", cfg.Source, cfg.Destination, src, dst)
	}
	if cfg.Trigger != TriggerPointer {
		t.Errorf("Trigger = %q, want %q", cfg.Trigger, TriggerPointer)
	}
	if cfg.Cooldown != 5*time.Second {
		t.Errorf("Cooldown = %v, want 5s", cfg.Cooldown)
	}
	if cfg.Listen != "127.0.0.1:8484" {
		t.Errorf("Listen = %q, want default", cfg.Listen)
	}
	if !cfg.Notify.Desktop || !cfg.Notify.Sound {
		t.Error("notify channels should default to enabled")
	}
	if cfg.Version != "test" {
		t.Errorf("Version = %q, want test", cfg.Version)
	}
}

func TestLoadFileLayer(t *testing.T) {
	body, _, _ := minimal(t)
	body += strings.Join([]string{
		"extensions: [pdf, .TXT]",
		"trigger: chord",
		"arm_timeout: 90s",
		"cooldown: 1s",
		"max_open_files: 128",
		"once: true",
		"log: { level: debug }",
		"sysmon: { interval: 2s }",
	}, "\n")
	path := writeConfig(t, body)

	cfg, err := NewLoader(path, "test").Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if diff := cmp.Diff([]string{".pdf", ".txt"}, cfg.Extensions); diff != "" {
		t.Errorf("Extensions mismatch (-want +got):\n%s", diff)
	}
	if cfg.Trigger != TriggerChord {
		t.Errorf("Trigger = %q, want chord", cfg.Trigger)
	}
	if cfg.ArmTimeout != 90*time.Second {
		t.Errorf("ArmTimeout = %v, want 90s", cfg.ArmTimeout)
	}
	if cfg.Cooldown != time.Second {
		t.Errorf("Cooldown = %v, want 1s", cfg.Cooldown)
	}
	if cfg.MaxOpenFiles != 128 {
		t.Errorf("MaxOpenFiles = %d, want 128", cfg.MaxOpenFiles)
	}
	if !cfg.Once {
		t.Error("Once should be true")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Sysmon.Interval != 2*time.Second {
		t.Errorf("Sysmon.Interval = %v, want 2s", cfg.Sysmon.Interval)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	body, _, _ := minimal(t)
	body += "trigger: chord\ncooldown: 1s\n"
	path := writeConfig(t, body)

	t.Setenv("LIFEBOAT_TRIGGER", "pointer")
	t.Setenv("LIFEBOAT_COOLDOWN", "7s")
	t.Setenv("LIFEBOAT_EXTENSIONS", "jpg, PNG")

	cfg, err := NewLoader(path, "test").Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Trigger != TriggerPointer {
		t.Errorf("Trigger = %q, want pointer (env wins)", cfg.Trigger)
	}
	if cfg.Cooldown != 7*time.Second {
		t.Errorf("Cooldown = %v, want 7s (env wins)", cfg.Cooldown)
	}
	if diff := cmp.Diff([]string{".jpg", ".png"}, cfg.Extensions); diff != "" {
		t.Errorf("Extensions mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	body, _, _ := minimal(t)
	body += "path_orig_backup: /somewhere\n"
	path := writeConfig(t, body)

	_, err := NewLoader(path, "test").Load()
	if err == nil {
		t.Fatal("expected strict parse error for unknown key")
	}
	if !strings.Contains(err.Error(), "strict config parse error") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	body, _, _ := minimal(t)
	body += "arm_timeout: ninety\n"
	path := writeConfig(t, body)

	_, err := NewLoader(path, "test").Load()
	if err == nil {
		t.Fatal("expected duration parse error")
	}
	if FieldFromError(err) != "arm_timeout" {
		t.Errorf("FieldFromError = %q, want arm_timeout", FieldFromError(err))
	}
}

func TestLoadRejectsTrailingDocuments(t *testing.T) {
	body, _, _ := minimal(t)
	body += "---\nsource: /other\n"
	path := writeConfig(t, body)

	_, err := NewLoader(path, "test").Load()
	if err == nil {
		t.Fatal("expected multiple-document error")
	}
}

func TestLoadRejectsNonYAMLExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lifeboat.toml")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLoader(path, "test").Load(); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("LIFEBOAT_SOURCE", t.TempDir())
	t.Setenv("LIFEBOAT_DESTINATION", t.TempDir())

	cfg, err := NewLoader(path, "test").Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Trigger != TriggerPointer {
		t.Errorf("Trigger = %q, want default", cfg.Trigger)
	}
}

func TestNormalizeExtensions(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil stays nil", nil, nil},
		{"adds dots", []string{"pdf", "txt"}, []string{".pdf", ".txt"}},
		{"keeps dots", []string{".pdf"}, []string{".pdf"}},
		{"lowercases", []string{".PDF", "TXT"}, []string{".pdf", ".txt"}},
		{"drops empties", []string{"", "  ", "md"}, []string{".md"}},
		{"all empty collapses to nil", []string{"", " "}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, NormalizeExtensions(tt.in)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
