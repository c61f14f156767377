package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// BuildEffectiveConfig applies raw on top of DefaultConfig.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.PersonaA != nil {
		applyPersona(&cfg.PersonaA, *raw.PersonaA)
	}
	if raw.PersonaB != nil {
		applyPersona(&cfg.PersonaB, *raw.PersonaB)
	}
	if raw.PollInterval != nil {
		cfg.PollInterval = *raw.PollInterval
	}
	if raw.DDCAutoDetect != nil {
		cfg.DDCAutoDetect = *raw.DDCAutoDetect
	}
	if raw.DDCLossAction != nil {
		cfg.DDCLossAction = normalizeLossAction(*raw.DDCLossAction)
	}
	if raw.DDCMonitor != nil {
		cfg.DDCMonitor = strings.TrimSpace(*raw.DDCMonitor)
	}
	if len(raw.DDCBuses) > 0 {
		cfg.DDCBuses = mergeStringMap(cfg.DDCBuses, raw.DDCBuses)
	}
	if raw.ExcludedProcesses != nil {
		cfg.ExcludedProcesses = trimAll(*raw.ExcludedProcesses)
	}
	if raw.ExcludedClasses != nil {
		cfg.ExcludedClasses = trimAll(*raw.ExcludedClasses)
	}
	if raw.SafeMargin != nil {
		cfg.SafeMargin = *raw.SafeMargin
	}
	if raw.ToggleHotkey != nil {
		cfg.ToggleHotkey = strings.TrimSpace(*raw.ToggleHotkey)
	}
	if raw.LastPersona != nil {
		cfg.LastPersona = strings.ToLower(strings.TrimSpace(*raw.LastPersona))
	}
	if raw.WatchConfig != nil {
		cfg.WatchConfig = *raw.WatchConfig
	}
	if raw.Logging != nil {
		applyLogging(&cfg.Logging, *raw.Logging)
	}

	return cfg, nil
}

func applyPersona(p *PersonaConfig, raw RawPersona) {
	if raw.Name != nil {
		p.Name = strings.TrimSpace(*raw.Name)
	}
	if raw.Triggers != nil {
		p.Triggers = append([]uint32(nil), (*raw.Triggers)...)
	}
	if raw.AudioDevice != nil {
		p.AudioDevice = strings.TrimSpace(*raw.AudioDevice)
	}
	if raw.WindowMonitor != nil {
		p.WindowMonitor = strings.TrimSpace(*raw.WindowMonitor)
	}
	if raw.AppWindowMonitor != nil {
		p.AppWindowMonitor = strings.TrimSpace(*raw.AppWindowMonitor)
	}
}

func applyLogging(l *LoggingConfig, raw RawLogging) {
	if raw.Level != nil {
		l.Level = strings.ToLower(strings.TrimSpace(*raw.Level))
	}
	if raw.Format != nil {
		l.Format = strings.ToLower(strings.TrimSpace(*raw.Format))
	}
	if raw.File != nil {
		l.File = strings.TrimSpace(*raw.File)
	}
	if raw.MaxSizeMB != nil {
		l.MaxSizeMB = *raw.MaxSizeMB
	}
	if raw.MaxFiles != nil {
		l.MaxFiles = *raw.MaxFiles
	}
	if raw.OTel != nil {
		l.OTel = *raw.OTel
	}
}

// normalizeLossAction accepts the legacy CamelCase spellings too.
func normalizeLossAction(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "do_nothing", "donothing", "nothing":
		return LossDoNothing
	case "switch_to_a", "switchtomodea", "a":
		return LossSwitchToA
	case "switch_to_b", "switchtomodeb", "b":
		return LossSwitchToB
	default:
		return strings.TrimSpace(s)
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mergeStringMap(base map[string]string, overlay map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
