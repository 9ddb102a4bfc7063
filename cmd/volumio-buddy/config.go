package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the volumio-buddy daemon.
//
// Defaults and validation live here so the rest of the code can assume a
// well-formed config.
type Config struct {
	Volumio  VolumioConfig    `yaml:"volumio"`
	Display  DisplayConfig    `yaml:"display"`
	Encoders []EncoderConfig  `yaml:"encoders"`
	Buttons  []ButtonConfig   `yaml:"buttons"`
	Input    InputConfig      `yaml:"input"`
	Rotary   RotaryFileConfig `yaml:"rotary"`
	Battery  BatteryConfig    `yaml:"battery"`
	LED      LEDConfig        `yaml:"led"`
	Network  NetworkConfig    `yaml:"network"`
	Popups   []PopupConfig    `yaml:"popups"`
	IPC      IPCConfig        `yaml:"ipc"`
	Status   StatusConfig     `yaml:"status"`
	Logging  LoggingConfig    `yaml:"logging"`
}

type VolumioConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	MaxRetries int    `yaml:"max_retries"`
	RetryMS    int    `yaml:"retry_ms"`
}

type DisplayConfig struct {
	Enabled          bool    `yaml:"enabled"`
	Bus              string  `yaml:"bus"` // empty picks the first I2C bus
	Width            int     `yaml:"width"`
	Height           int     `yaml:"height"`
	Rotated          bool    `yaml:"rotated"`
	Font             string  `yaml:"font"` // "basic", "inconsolata" or a .ttf/.otf path
	FontSize         float64 `yaml:"font_size"`
	Logo             string  `yaml:"logo,omitempty"`
	UpdateIntervalMS int     `yaml:"update_interval_ms"`
	ModalDurationMS  int     `yaml:"modal_duration_ms"`
	PopupTimeoutMS   int     `yaml:"popup_timeout_ms,omitempty"` // 0 means 4x modal duration
	ScrollStep       int     `yaml:"scroll_step"`
}

// EncoderConfig describes one rotary encoder wired to two GPIO pins.
type EncoderConfig struct {
	Name       string `yaml:"name"`
	Role       string `yaml:"role"` // "volume" or "track"
	PinA       string `yaml:"pin_a"`
	PinB       string `yaml:"pin_b"`
	Pull       string `yaml:"pull,omitempty"`
	DebounceMS int    `yaml:"debounce_ms"`
}

// ButtonConfig describes one push button.
type ButtonConfig struct {
	Name       string `yaml:"name"`
	Pin        string `yaml:"pin"`
	Action     string `yaml:"action"`
	Pull       string `yaml:"pull,omitempty"`
	Edge       string `yaml:"edge,omitempty"`
	DebounceMS int    `yaml:"debounce_ms"`
}

// InputConfig lists evdev devices (rotary-encoder / gpio-keys overlays).
type InputConfig struct {
	Devices []string `yaml:"devices,omitempty"`
}

// RotaryFileConfig is the YAML form of RotaryConfig.
type RotaryFileConfig struct {
	VelocityWindowMS   int `yaml:"velocity_window_ms"`
	VelocityThreshold  int `yaml:"velocity_threshold"`
	VelocityMultiplier int `yaml:"velocity_multiplier"`
}

type BatteryConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Bus             string   `yaml:"bus"`
	Address         int      `yaml:"address"`
	ShuntOhms       float64  `yaml:"shunt_ohms"`
	Cells           int      `yaml:"cells"`
	Full            float64  `yaml:"full"`
	Low             float64  `yaml:"low"`
	Warn            float64  `yaml:"warn"`
	Empty           float64  `yaml:"empty"`
	PollIntervalMS  int      `yaml:"poll_interval_ms"`
	ShutdownCommand []string `yaml:"shutdown_command,omitempty"`
}

// LEDConfig configures the optional RGB status LED.
type LEDConfig struct {
	Enabled bool   `yaml:"enabled"`
	Red     string `yaml:"red"`
	Green   string `yaml:"green"`
	Blue    string `yaml:"blue"`
}

type NetworkConfig struct {
	HostapdConf       string `yaml:"hostapd_conf"`
	WpaSupplicantConf string `yaml:"wpa_supplicant_conf"`
}

// PopupConfig is one rotating menu popup.
type PopupConfig struct {
	Lines []string         `yaml:"lines"`
	Args  []PopupArgConfig `yaml:"args,omitempty"`
}

// PopupArgConfig is either a literal text or a named provider.
type PopupArgConfig struct {
	Text     *string `yaml:"text,omitempty"`
	Provider string  `yaml:"provider,omitempty"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type StatusConfig struct {
	Port int `yaml:"port"` // 0 disables the status server
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Encoder roles.
const (
	RoleVolume = "volume"
	RoleTrack  = "track"
)

// buttonActions maps button action names to the action type they send.
var buttonActions = map[string]string{
	"toggle_play": TypeTogglePlay,
	"play":        TypePlay,
	"pause":       TypePause,
	"stop":        TypeStop,
	"next":        TypeNext,
	"previous":    TypePrevious,
	"volume_up":   TypeVolumeUp,
	"volume_down": TypeVolumeDown,
	"popup":       TypeShowPopup,
}

// popupProviderNames are the provider names accepted in popups[].args.
var popupProviderNames = map[string]bool{
	"battery.level":      true,
	"battery.voltage":    true,
	"wifi.ssid":          true,
	"net.ip":             true,
	"hotspot.ssid":       true,
	"hotspot.passphrase": true,
	"hostname":           true,
}

// DefaultConfig returns a fully-populated Config with defaults. Pin names
// follow the BCM numbering of the original two-encoder board.
func DefaultConfig() Config {
	return Config{
		Volumio: VolumioConfig{
			Host:       defaultVolumioHost,
			Port:       defaultVolumioPort,
			MaxRetries: defaultVolumioMaxRetries,
			RetryMS:    defaultVolumioRetryMS,
		},
		Display: DisplayConfig{
			Enabled:          true,
			Width:            defaultDisplayWidth,
			Height:           defaultDisplayHeight,
			Font:             "basic",
			FontSize:         defaultFontSize,
			UpdateIntervalMS: int(defaultUpdateInterval / time.Millisecond),
			ModalDurationMS:  int(defaultModalDuration / time.Millisecond),
			ScrollStep:       defaultScrollStep,
		},
		Encoders: []EncoderConfig{
			{Name: "volume", Role: RoleVolume, PinA: "GPIO27", PinB: "GPIO5", DebounceMS: defaultRotaryDebounceMS},
			{Name: "track", Role: RoleTrack, PinA: "GPIO23", PinB: "GPIO24", DebounceMS: defaultRotaryDebounceMS},
		},
		Buttons: []ButtonConfig{
			{Name: "play", Pin: "GPIO17", Action: "toggle_play", DebounceMS: defaultButtonDebounceMS},
			{Name: "menu", Pin: "GPIO4", Action: "popup", DebounceMS: defaultButtonDebounceMS},
		},
		Rotary: RotaryFileConfig{
			VelocityWindowMS:   defaultRotaryVelocityWindowMS,
			VelocityThreshold:  defaultRotaryVelocityThreshold,
			VelocityMultiplier: defaultRotaryVelocityMultiplier,
		},
		Battery: BatteryConfig{
			Enabled:        false,
			Address:        defaultBatteryI2CAddr,
			ShuntOhms:      defaultBatteryShuntOhms,
			Cells:          defaultBatteryCells,
			Full:           defaultBatteryFull,
			Low:            defaultBatteryLow,
			Warn:           defaultBatteryWarn,
			Empty:          defaultBatteryEmpty,
			PollIntervalMS: defaultBatteryPollMS,
		},
		LED: LEDConfig{
			Red:   "GPIO13",
			Green: "GPIO12",
			Blue:  "GPIO6",
		},
		Network: NetworkConfig{
			HostapdConf:       "/etc/hostapd/hostapd.conf",
			WpaSupplicantConf: "/etc/wpa_supplicant/wpa_supplicant.conf",
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/volumio-buddy.sock",
		},
		Status: StatusConfig{
			Port: 3010,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected to catch typos.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds pointers for flags that were explicitly set. nil
// means "not set"; main.go decides which flags exist.
type FlagOverrides struct {
	LogLevel    *string
	VolumioHost *string
	VolumioPort *int
	IPCSocket   *string
	StatusPort  *int
	Pull        *string
	NoDisplay   *bool
}

// Apply merges the overrides into cfg. A non-nil pointer is applied even if
// it holds a zero value.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.VolumioHost != nil {
		cfg.Volumio.Host = *o.VolumioHost
	}
	if o.VolumioPort != nil {
		cfg.Volumio.Port = *o.VolumioPort
	}
	if o.IPCSocket != nil {
		cfg.IPC.SocketPath = *o.IPCSocket
	}
	if o.StatusPort != nil {
		cfg.Status.Port = *o.StatusPort
	}
	if o.Pull != nil {
		for i := range cfg.Encoders {
			cfg.Encoders[i].Pull = *o.Pull
		}
		for i := range cfg.Buttons {
			cfg.Buttons[i].Pull = *o.Pull
		}
	}
	if o.NoDisplay != nil && *o.NoDisplay {
		cfg.Display.Enabled = false
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	// Volumio
	if c.Volumio.Host == "" {
		return errors.New("volumio.host must not be empty")
	}
	if c.Volumio.Port <= 0 || c.Volumio.Port > 65535 {
		return errors.New("volumio.port must be between 1 and 65535")
	}
	if c.Volumio.MaxRetries < 1 {
		return errors.New("volumio.max_retries must be >= 1")
	}
	if c.Volumio.RetryMS <= 0 {
		return errors.New("volumio.retry_ms must be > 0")
	}

	// Display
	if c.Display.Enabled {
		if c.Display.Width <= 0 || c.Display.Height <= 0 {
			return errors.New("display.width and display.height must be > 0")
		}
		if c.Display.Height%8 != 0 {
			return errors.New("display.height must be a multiple of 8")
		}
	}
	if c.Display.FontSize <= 0 {
		return errors.New("display.font_size must be > 0")
	}
	if c.Display.UpdateIntervalMS <= 0 {
		return errors.New("display.update_interval_ms must be > 0")
	}
	if c.Display.ModalDurationMS <= 0 {
		return errors.New("display.modal_duration_ms must be > 0")
	}
	if c.Display.PopupTimeoutMS < 0 {
		return errors.New("display.popup_timeout_ms must be >= 0")
	}
	if c.Display.ScrollStep <= 0 {
		return errors.New("display.scroll_step must be > 0")
	}

	// Encoders
	names := make(map[string]bool)
	for i, e := range c.Encoders {
		if e.Name == "" {
			return fmt.Errorf("encoders[%d].name must not be empty", i)
		}
		if names[e.Name] {
			return fmt.Errorf("encoders[%d].name %q is duplicated", i, e.Name)
		}
		names[e.Name] = true
		if e.Role != RoleVolume && e.Role != RoleTrack {
			return fmt.Errorf("encoders[%d].role must be %q or %q", i, RoleVolume, RoleTrack)
		}
		if e.PinA == "" || e.PinB == "" {
			return fmt.Errorf("encoders[%d]: pin_a and pin_b are required", i)
		}
		if e.PinA == e.PinB {
			return fmt.Errorf("encoders[%d]: pin_a and pin_b must differ", i)
		}
		if _, err := parsePull(e.Pull); err != nil {
			return fmt.Errorf("encoders[%d]: %w", i, err)
		}
		if e.DebounceMS < 0 {
			return fmt.Errorf("encoders[%d].debounce_ms must be >= 0", i)
		}
	}

	// Buttons
	for i, b := range c.Buttons {
		if b.Pin == "" {
			return fmt.Errorf("buttons[%d].pin must not be empty", i)
		}
		if _, ok := buttonActions[b.Action]; !ok {
			return fmt.Errorf("buttons[%d].action %q is unknown", i, b.Action)
		}
		if _, err := parsePull(b.Pull); err != nil {
			return fmt.Errorf("buttons[%d]: %w", i, err)
		}
		if _, err := parseEdge(b.Edge); err != nil {
			return fmt.Errorf("buttons[%d]: %w", i, err)
		}
		if b.DebounceMS < 0 {
			return fmt.Errorf("buttons[%d].debounce_ms must be >= 0", i)
		}
	}

	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}

	// Rotary
	if c.Rotary.VelocityWindowMS < 0 {
		return errors.New("rotary.velocity_window_ms must be >= 0")
	}
	if c.Rotary.VelocityThreshold < 0 {
		return errors.New("rotary.velocity_threshold must be >= 0")
	}
	if c.Rotary.VelocityMultiplier < 1 {
		return errors.New("rotary.velocity_multiplier must be >= 1")
	}

	// Battery
	if c.Battery.Enabled {
		if c.Battery.Cells <= 0 {
			return errors.New("battery.cells must be > 0")
		}
		if !(c.Battery.Empty <= c.Battery.Low && c.Battery.Low < c.Battery.Full) {
			return errors.New("battery thresholds must satisfy empty <= low < full")
		}
		if c.Battery.Warn < c.Battery.Empty || c.Battery.Warn > c.Battery.Full {
			return errors.New("battery.warn must be between battery.empty and battery.full")
		}
		if c.Battery.ShuntOhms <= 0 {
			return errors.New("battery.shunt_ohms must be > 0")
		}
		if c.Battery.PollIntervalMS <= 0 {
			return errors.New("battery.poll_interval_ms must be > 0")
		}
	}

	// LED
	if c.LED.Enabled && (c.LED.Red == "" || c.LED.Green == "" || c.LED.Blue == "") {
		return errors.New("led.enabled is true but led.red, led.green or led.blue is empty")
	}

	// Popups
	for i, p := range c.Popups {
		if len(p.Lines) < 1 || len(p.Lines) > 2 {
			return fmt.Errorf("popups[%d].lines must have 1 or 2 entries", i)
		}
		for j, a := range p.Args {
			switch {
			case a.Text != nil && a.Provider != "":
				return fmt.Errorf("popups[%d].args[%d]: set either text or provider, not both", i, j)
			case a.Text == nil && a.Provider == "":
				return fmt.Errorf("popups[%d].args[%d]: text or provider is required", i, j)
			case a.Provider != "" && !popupProviderNames[a.Provider]:
				return fmt.Errorf("popups[%d].args[%d]: unknown provider %q", i, j, a.Provider)
			case isBatteryProvider(a.Provider) && !c.Battery.Enabled:
				return fmt.Errorf("popups[%d].args[%d]: provider %q requires battery.enabled", i, j, a.Provider)
			}
		}
	}

	// Status server
	if c.Status.Port < 0 || c.Status.Port > 65535 {
		return errors.New("status.port must be between 0 and 65535")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// ToRotaryConfig converts the YAML rotary section for the reducer.
func (c *Config) ToRotaryConfig() RotaryConfig {
	return RotaryConfig{
		VelocityWindow:     time.Duration(c.Rotary.VelocityWindowMS) * time.Millisecond,
		VelocityThreshold:  c.Rotary.VelocityThreshold,
		VelocityMultiplier: c.Rotary.VelocityMultiplier,
	}
}

// ToBatteryPolicy converts the YAML battery section.
func (c *Config) ToBatteryPolicy() BatteryPolicy {
	return BatteryPolicy{
		Cells: c.Battery.Cells,
		Full:  c.Battery.Full,
		Low:   c.Battery.Low,
		Warn:  c.Battery.Warn,
		Empty: c.Battery.Empty,
	}
}

// ToDisplayOptions converts the YAML display section.
func (c *Config) ToDisplayOptions() DisplayOptions {
	return DisplayOptions{
		ModalDuration: time.Duration(c.Display.ModalDurationMS) * time.Millisecond,
		PopupTimeout:  time.Duration(c.Display.PopupTimeoutMS) * time.Millisecond,
		ScrollStep:    c.Display.ScrollStep,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
