package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		// Not present.
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawPersona struct {
	Name             *string   `yaml:"name"`
	Triggers         *[]uint32 `yaml:"triggers"`
	AudioDevice      *string   `yaml:"audio_device"`
	WindowMonitor    *string   `yaml:"window_monitor"`
	AppWindowMonitor *string   `yaml:"app_window_monitor"`
}

type RawLogging struct {
	Level     *string `yaml:"level"`
	Format    *string `yaml:"format"`
	File      *string `yaml:"file"`
	MaxSizeMB *int    `yaml:"max_size_mb"`
	MaxFiles  *int    `yaml:"max_files"`
	OTel      *bool   `yaml:"otel"`
}

// RawConfig mirrors the YAML file. Nil fields were not set.
type RawConfig struct {
	Include IncludeList `yaml:"include"`

	PersonaA *RawPersona `yaml:"persona_a"`
	PersonaB *RawPersona `yaml:"persona_b"`

	PollInterval  *time.Duration    `yaml:"poll_interval"`
	DDCAutoDetect *bool             `yaml:"ddc_auto_detect"`
	DDCLossAction *string           `yaml:"ddc_loss_action"`
	DDCMonitor    *string           `yaml:"ddc_monitor"`
	DDCBuses      map[string]string `yaml:"ddc_buses"`

	ExcludedProcesses *[]string `yaml:"excluded_processes"`
	ExcludedClasses   *[]string `yaml:"excluded_classes"`
	SafeMargin        *int      `yaml:"safe_margin"`

	ToggleHotkey *string `yaml:"toggle_hotkey"`
	LastPersona  *string `yaml:"last_persona"`
	WatchConfig  *bool   `yaml:"watch_config"`

	Logging *RawLogging `yaml:"logging"`
}

func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c
	out.Include = nil

	if overlay.PersonaA != nil {
		out.PersonaA = mergeRawPersona(out.PersonaA, *overlay.PersonaA)
	}
	if overlay.PersonaB != nil {
		out.PersonaB = mergeRawPersona(out.PersonaB, *overlay.PersonaB)
	}
	if overlay.PollInterval != nil {
		out.PollInterval = overlay.PollInterval
	}
	if overlay.DDCAutoDetect != nil {
		out.DDCAutoDetect = overlay.DDCAutoDetect
	}
	if overlay.DDCLossAction != nil {
		out.DDCLossAction = overlay.DDCLossAction
	}
	if overlay.DDCMonitor != nil {
		out.DDCMonitor = overlay.DDCMonitor
	}
	if overlay.DDCBuses != nil {
		if out.DDCBuses == nil {
			out.DDCBuses = make(map[string]string, len(overlay.DDCBuses))
		} else {
			copied := make(map[string]string, len(out.DDCBuses)+len(overlay.DDCBuses))
			for k, v := range out.DDCBuses {
				copied[k] = v
			}
			out.DDCBuses = copied
		}
		for k, v := range overlay.DDCBuses {
			out.DDCBuses[k] = v
		}
	}
	if overlay.ExcludedProcesses != nil {
		out.ExcludedProcesses = overlay.ExcludedProcesses
	}
	if overlay.ExcludedClasses != nil {
		out.ExcludedClasses = overlay.ExcludedClasses
	}
	if overlay.SafeMargin != nil {
		out.SafeMargin = overlay.SafeMargin
	}
	if overlay.ToggleHotkey != nil {
		out.ToggleHotkey = overlay.ToggleHotkey
	}
	if overlay.LastPersona != nil {
		out.LastPersona = overlay.LastPersona
	}
	if overlay.WatchConfig != nil {
		out.WatchConfig = overlay.WatchConfig
	}
	if overlay.Logging != nil {
		out.Logging = mergeRawLogging(out.Logging, *overlay.Logging)
	}
	return out
}

func mergeRawPersona(base *RawPersona, overlay RawPersona) *RawPersona {
	out := RawPersona{}
	if base != nil {
		out = *base
	}
	if overlay.Name != nil {
		out.Name = overlay.Name
	}
	if overlay.Triggers != nil {
		out.Triggers = overlay.Triggers
	}
	if overlay.AudioDevice != nil {
		out.AudioDevice = overlay.AudioDevice
	}
	if overlay.WindowMonitor != nil {
		out.WindowMonitor = overlay.WindowMonitor
	}
	if overlay.AppWindowMonitor != nil {
		out.AppWindowMonitor = overlay.AppWindowMonitor
	}
	return &out
}

func mergeRawLogging(base *RawLogging, overlay RawLogging) *RawLogging {
	out := RawLogging{}
	if base != nil {
		out = *base
	}
	if overlay.Level != nil {
		out.Level = overlay.Level
	}
	if overlay.Format != nil {
		out.Format = overlay.Format
	}
	if overlay.File != nil {
		out.File = overlay.File
	}
	if overlay.MaxSizeMB != nil {
		out.MaxSizeMB = overlay.MaxSizeMB
	}
	if overlay.MaxFiles != nil {
		out.MaxFiles = overlay.MaxFiles
	}
	if overlay.OTel != nil {
		out.OTel = overlay.OTel
	}
	return &out
}
