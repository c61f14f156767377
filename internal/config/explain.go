package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Explain returns the effective value at the given YAML path and its source.
//
// Paths follow the file layout, for example:
//
//	poll_interval
//	ddc_loss_action
//	persona_a.triggers
//	persona_b.window_monitor
//	ddc_buses.DP-1
//	logging.level
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}

	// Exact-path file source wins, then the nearest file-set ancestor.
	for p := path; p != ""; p = parentPath(p) {
		if src, ok := res.Sources[p]; ok {
			return value, src, nil
		}
	}

	if strings.HasPrefix(path, "persona_a") || strings.HasPrefix(path, "persona_b") {
		return value, Source{Kind: SourceBuiltin, Name: "persona profile"}, nil
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func parentPath(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return ""
}

func lookupValue(cfg *Config, path string) (any, error) {
	tree, err := configTree(cfg)
	if err != nil {
		return nil, err
	}

	var cur any = tree
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		next, ok := m[part]
		if !ok {
			if omittedWhenEmpty(path) {
				return "", nil
			}
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		cur = next
	}
	return cur, nil
}

// configTree renders cfg as generic YAML values keyed by field tag.
func configTree(cfg *Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	tree := map[string]any{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return tree, nil
}

// omittedWhenEmpty reports whether path names a string field the encoder
// drops when it is empty.
func omittedWhenEmpty(path string) bool {
	switch path {
	case "ddc_monitor", "last_persona", "logging.file",
		"persona_a.audio_device", "persona_b.audio_device",
		"persona_a.app_window_monitor", "persona_b.app_window_monitor":
		return true
	}
	return false
}
