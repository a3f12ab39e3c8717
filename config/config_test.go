package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recap.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Enabled {
		t.Error("enabled should default to true")
	}
	if cfg.DefaultMode != "continuous" {
		t.Errorf("default_mode = %q", cfg.DefaultMode)
	}
	if cfg.SegmentDuration() != 10*time.Second {
		t.Errorf("segment duration = %v", cfg.SegmentDuration())
	}
	if cfg.BufferMax() != 5*time.Minute {
		t.Errorf("buffer max = %v", cfg.BufferMax())
	}
	if cfg.Format != "wav" {
		t.Errorf("format = %q", cfg.Format)
	}
	if cfg.Hotkey != "ctrl+shift+space" {
		t.Errorf("hotkey = %q", cfg.Hotkey)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if cfg.WindowMinutes != 1 {
		t.Errorf("window_minutes = %d", cfg.WindowMinutes)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
default_mode: push-to-talk
segment_duration_ms: 15000
window_minutes: 3
format: flac
send_audio_directly: true
instruction_prompt: "summarize what was said"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultMode != "push-to-talk" {
		t.Errorf("default_mode = %q", cfg.DefaultMode)
	}
	if cfg.SegmentDurationMs != 15000 {
		t.Errorf("segment_duration_ms = %d", cfg.SegmentDurationMs)
	}
	if cfg.WindowMinutes != 3 {
		t.Errorf("window_minutes = %d", cfg.WindowMinutes)
	}
	if !cfg.SendAudioDirectly {
		t.Error("send_audio_directly not applied")
	}
	if cfg.InstructionPrompt == "" {
		t.Error("instruction_prompt not applied")
	}
}

func TestSegmentDurationClamped(t *testing.T) {
	for _, tt := range []struct {
		raw  int
		want int
	}{
		{1000, 5000},
		{5000, 5000},
		{30000, 30000},
		{90000, 30000},
	} {
		path := writeConfig(t, "segment_duration_ms: "+strconv.Itoa(tt.raw))
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%d): %v", tt.raw, err)
		}
		if cfg.SegmentDurationMs != tt.want {
			t.Errorf("clamp(%d) = %d, want %d", tt.raw, cfg.SegmentDurationMs, tt.want)
		}
	}
}

func TestInvalidWindowRejected(t *testing.T) {
	path := writeConfig(t, "window_minutes: 2")
	if _, err := Load(path); err == nil {
		t.Error("expected error for window_minutes=2")
	}
}

func TestInvalidModeRejected(t *testing.T) {
	path := writeConfig(t, "default_mode: telepathy")
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestInvalidFormatRejected(t *testing.T) {
	path := writeConfig(t, "format: ogg")
	if _, err := Load(path); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestHotkeyOverride(t *testing.T) {
	path := writeConfig(t, "hotkey: ctrl+alt+r")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hotkey != "ctrl+alt+r" {
		t.Errorf("hotkey = %q", cfg.Hotkey)
	}
}

func TestInvalidHotkeyRejected(t *testing.T) {
	path := writeConfig(t, "hotkey: space") // no modifier
	if _, err := Load(path); err == nil {
		t.Error("expected error for modifier-less hotkey")
	}
}
