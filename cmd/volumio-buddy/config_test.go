package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "volumio-buddy.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if len(cfg.Encoders) != 2 || cfg.Encoders[0].Role != RoleVolume || cfg.Encoders[1].Role != RoleTrack {
		t.Fatalf("unexpected default encoders %+v", cfg.Encoders)
	}
}

func TestLoadConfigFile_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
volumio:
  host: volumio.local
display:
  modal_duration_ms: 1500
popups:
  - lines: ["ip: {}"]
    args:
      - provider: net.ip
`)
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Volumio.Host != "volumio.local" {
		t.Fatalf("host not applied: %q", cfg.Volumio.Host)
	}
	if cfg.Volumio.Port != defaultVolumioPort {
		t.Fatalf("port default lost: %d", cfg.Volumio.Port)
	}
	if got := cfg.ToDisplayOptions().ModalDuration; got != 1500*time.Millisecond {
		t.Fatalf("modal duration = %v", got)
	}
	if len(cfg.Popups) != 1 || cfg.Popups[0].Args[0].Provider != "net.ip" {
		t.Fatalf("popups not decoded: %+v", cfg.Popups)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadConfigFile_RejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "volumio:\n  hots: typo\n")
	if _, err := LoadConfigFile(path); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestLoadConfigFile_RejectsTrailingDocument(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: debug\n---\nlogging:\n  level: info\n")
	if _, err := LoadConfigFile(path); err == nil || !strings.Contains(err.Error(), "trailing") {
		t.Fatalf("expected trailing document error, got %v", err)
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()
	host := "10.0.0.2"
	pull := "down"
	noDisplay := true
	port := 0
	FlagOverrides{VolumioHost: &host, Pull: &pull, NoDisplay: &noDisplay, StatusPort: &port}.Apply(&cfg)

	if cfg.Volumio.Host != host {
		t.Fatalf("host override not applied")
	}
	for _, e := range cfg.Encoders {
		if e.Pull != "down" {
			t.Fatalf("pull override not applied to encoder %s", e.Name)
		}
	}
	if cfg.Display.Enabled {
		t.Fatalf("display should be disabled")
	}
	if cfg.Status.Port != 0 {
		t.Fatalf("zero-valued override must still apply")
	}
}

func TestConfig_ValidateErrors(t *testing.T) {
	text := "x"
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty host", func(c *Config) { c.Volumio.Host = "" }, "volumio.host"},
		{"bad role", func(c *Config) { c.Encoders[0].Role = "bass" }, "role"},
		{"same pins", func(c *Config) { c.Encoders[0].PinB = c.Encoders[0].PinA }, "must differ"},
		{"dup encoder", func(c *Config) { c.Encoders[1].Name = c.Encoders[0].Name }, "duplicated"},
		{"bad pull", func(c *Config) { c.Buttons[0].Pull = "sideways" }, "pull"},
		{"bad action", func(c *Config) { c.Buttons[0].Action = "eject" }, "action"},
		{"bad edge", func(c *Config) { c.Buttons[0].Edge = "none" }, "edge"},
		{"odd height", func(c *Config) { c.Display.Height = 60 }, "multiple of 8"},
		{"popup lines", func(c *Config) { c.Popups = []PopupConfig{{Lines: []string{"a", "b", "c"}}} }, "1 or 2"},
		{"popup provider", func(c *Config) {
			c.Popups = []PopupConfig{{Lines: []string{"{}"}, Args: []PopupArgConfig{{Provider: "cpu.temp"}}}}
		}, "unknown provider"},
		{"popup both", func(c *Config) {
			c.Popups = []PopupConfig{{Lines: []string{"{}"}, Args: []PopupArgConfig{{Text: &text, Provider: "net.ip"}}}}
		}, "either"},
		{"battery popup", func(c *Config) {
			c.Battery.Enabled = false
			c.Popups = []PopupConfig{{Lines: []string{"{}%"}, Args: []PopupArgConfig{{Provider: "battery.level"}}}}
		}, "requires battery.enabled"},
		{"battery thresholds", func(c *Config) { c.Battery.Enabled = true; c.Battery.Low = 5 }, "battery"},
		{"led pins", func(c *Config) { c.LED.Enabled = true; c.LED.Blue = "" }, "led"},
		{"multiplier", func(c *Config) { c.Rotary.VelocityMultiplier = 0 }, "velocity_multiplier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/logo.png"); got != filepath.Join(home, "logo.png") {
		t.Fatalf("got %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Fatalf("absolute path changed: %q", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"debug": slog.LevelDebug, "WARNING": slog.LevelWarn, "error": slog.LevelError} {
		got, err := parseLogLevel(in)
		if err != nil || got != want {
			t.Fatalf("parseLogLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := parseLogLevel("loud"); err == nil {
		t.Fatalf("expected error")
	}
}
