package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
)

// Recognized ddc_loss_action values.
const (
	LossDoNothing = "do_nothing"
	LossSwitchToA = "switch_to_a"
	LossSwitchToB = "switch_to_b"
)

// PersonaConfig is one persona's profile.
type PersonaConfig struct {
	Name string `yaml:"name"`
	// Triggers are the VCP 0x60 input codes that select this persona.
	Triggers []uint32 `yaml:"triggers"`
	// AudioDevice is a substring of the playback device to select.
	AudioDevice string `yaml:"audio_device,omitempty"`
	// WindowMonitor is where new windows go: none, primary, secondary, or a
	// monitor ID or friendly name.
	WindowMonitor string `yaml:"window_monitor"`
	// AppWindowMonitor is where the daemon's own window goes; empty leaves it.
	AppWindowMonitor string `yaml:"app_window_monitor,omitempty"`
}

// LoggingConfig configures the daemon logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is auto (pretty on a terminal, JSON otherwise), text or json.
	Format string `yaml:"format"`
	// File, when set, receives a JSON copy of every record.
	File string `yaml:"file,omitempty"`
	// MaxSizeMB is the size at which File is rotated.
	MaxSizeMB int `yaml:"max_size_mb,omitempty"`
	// MaxFiles is the number of rotated files kept.
	MaxFiles int `yaml:"max_files,omitempty"`
	// OTel also sends records to the global OpenTelemetry logger provider.
	OTel bool `yaml:"otel,omitempty"`
}

// Config is the effective configuration.
type Config struct {
	PersonaA PersonaConfig `yaml:"persona_a"`
	PersonaB PersonaConfig `yaml:"persona_b"`

	PollInterval  time.Duration `yaml:"poll_interval"`
	DDCAutoDetect bool          `yaml:"ddc_auto_detect"`
	DDCLossAction string        `yaml:"ddc_loss_action"`
	// DDCMonitor selects the watched monitor by substring; empty means primary.
	DDCMonitor string `yaml:"ddc_monitor,omitempty"`
	// DDCBuses maps monitor IDs to i2c device nodes, bypassing discovery.
	DDCBuses map[string]string `yaml:"ddc_buses,omitempty"`

	// ExcludedProcesses and ExcludedClasses extend the built-in lists.
	ExcludedProcesses []string `yaml:"excluded_processes,omitempty"`
	ExcludedClasses   []string `yaml:"excluded_classes,omitempty"`
	SafeMargin        int      `yaml:"safe_margin"`

	ToggleHotkey string `yaml:"toggle_hotkey"`
	// LastPersona is written by the daemon after every switch.
	LastPersona string `yaml:"last_persona,omitempty"`
	WatchConfig bool   `yaml:"watch_config"`

	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		PersonaA: PersonaConfig{
			Name:          "Desktop",
			Triggers:      []uint32{15, 16, 27},
			WindowMonitor: "none",
		},
		PersonaB: PersonaConfig{
			Name:          "Console",
			Triggers:      []uint32{17, 18},
			WindowMonitor: "secondary",
		},
		PollInterval:  5 * time.Second,
		DDCAutoDetect: true,
		DDCLossAction: LossSwitchToB,
		SafeMargin:    10,
		ToggleHotkey:  "Control-Mod1-s",
		WatchConfig:   true,
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "auto",
			MaxSizeMB: 10,
			MaxFiles:  3,
		},
	}
}

// EquivalentForReload reports whether c and other differ only in fields the
// daemon rewrites itself.
func (c *Config) EquivalentForReload(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	a, b := *c, *other
	a.LastPersona, b.LastPersona = "", ""
	return a.PersonaA.equal(b.PersonaA) && a.PersonaB.equal(b.PersonaB) &&
		a.PollInterval == b.PollInterval &&
		a.DDCAutoDetect == b.DDCAutoDetect &&
		a.DDCLossAction == b.DDCLossAction &&
		a.DDCMonitor == b.DDCMonitor &&
		mapsEqual(a.DDCBuses, b.DDCBuses) &&
		slices.Equal(a.ExcludedProcesses, b.ExcludedProcesses) &&
		slices.Equal(a.ExcludedClasses, b.ExcludedClasses) &&
		a.SafeMargin == b.SafeMargin &&
		a.ToggleHotkey == b.ToggleHotkey &&
		a.WatchConfig == b.WatchConfig &&
		a.Logging == b.Logging
}

func (p PersonaConfig) equal(o PersonaConfig) bool {
	return p.Name == o.Name && slices.Equal(p.Triggers, o.Triggers) &&
		p.AudioDevice == o.AudioDevice && p.WindowMonitor == o.WindowMonitor &&
		p.AppWindowMonitor == o.AppWindowMonitor
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	if err := validatePersona("persona_a", c.PersonaA); err != nil {
		return err
	}
	if err := validatePersona("persona_b", c.PersonaB); err != nil {
		return err
	}
	if c.PollInterval < 500*time.Millisecond {
		return &ValidationError{Path: "poll_interval", Err: fmt.Errorf("poll_interval must be at least 500ms")}
	}
	switch c.DDCLossAction {
	case LossDoNothing, LossSwitchToA, LossSwitchToB:
	default:
		return &ValidationError{Path: "ddc_loss_action", Err: fmt.Errorf("ddc_loss_action must be one of: %s, %s, %s", LossDoNothing, LossSwitchToA, LossSwitchToB)}
	}
	for id, dev := range c.DDCBuses {
		if strings.TrimSpace(id) == "" {
			return &ValidationError{Path: "ddc_buses", Err: fmt.Errorf("ddc_buses contains an empty monitor id")}
		}
		if strings.TrimSpace(dev) == "" {
			return &ValidationError{Path: "ddc_buses." + id, Err: fmt.Errorf("device path must not be empty")}
		}
	}
	if c.SafeMargin < 0 {
		return &ValidationError{Path: "safe_margin", Err: fmt.Errorf("safe_margin must be >= 0")}
	}
	switch strings.ToLower(c.LastPersona) {
	case "", "a", "b":
	default:
		return &ValidationError{Path: "last_persona", Err: fmt.Errorf("last_persona must be a or b")}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Path: "logging.level", Err: fmt.Errorf("logging.level must be one of: debug, info, warn, error")}
	}
	switch c.Logging.Format {
	case "auto", "text", "json":
	default:
		return &ValidationError{Path: "logging.format", Err: fmt.Errorf("logging.format must be one of: auto, text, json")}
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxFiles < 0 {
		return &ValidationError{Path: "logging", Err: fmt.Errorf("max_size_mb and max_files must be >= 0")}
	}

	for _, w := range c.validationWarnings() {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	return nil
}

func validatePersona(path string, p PersonaConfig) error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Path: path + ".name", Err: fmt.Errorf("name is required")}
	}
	for _, code := range p.Triggers {
		if code == 0 || code > 0xFFFF {
			return &ValidationError{Path: path + ".triggers", Err: fmt.Errorf("trigger %d is not a valid input code", code)}
		}
	}
	if strings.TrimSpace(p.WindowMonitor) == "" {
		return &ValidationError{Path: path + ".window_monitor", Err: fmt.Errorf("window_monitor is required (use none to disable)")}
	}
	return nil
}

func (c *Config) validationWarnings() []string {
	var warnings []string
	var shared []string
	for _, code := range c.PersonaB.Triggers {
		if slices.Contains(c.PersonaA.Triggers, code) {
			shared = append(shared, fmt.Sprint(code))
		}
	}
	if len(shared) > 0 {
		warnings = append(warnings, fmt.Sprintf("triggers %s are claimed by both personas; persona_b wins", strings.Join(shared, ", ")))
	}
	if len(c.PersonaA.Triggers) == 0 && len(c.PersonaB.Triggers) == 0 && c.DDCAutoDetect {
		warnings = append(warnings, "ddc_auto_detect is on but no persona has triggers")
	}
	return warnings
}
