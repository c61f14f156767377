package ddc

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultSysfsRoot is where DRM connectors are listed on Linux.
const DefaultSysfsRoot = "/sys/class/drm"

// BusLocator maps display IDs (XRandR output names) to i2c-dev device nodes.
type BusLocator struct {
	// SysfsRoot defaults to DefaultSysfsRoot.
	SysfsRoot string
	// DevRoot defaults to /dev.
	DevRoot string
	// Overrides maps a display ID to a device path and bypasses discovery.
	Overrides map[string]string
}

// Locate returns the i2c device nodes wired to the connector named id.
func (l BusLocator) Locate(id string) ([]string, error) {
	if dev, ok := l.Overrides[id]; ok && dev != "" {
		return []string{dev}, nil
	}

	root := l.SysfsRoot
	if root == "" {
		root = DefaultSysfsRoot
	}
	devRoot := l.DevRoot
	if devRoot == "" {
		devRoot = "/dev"
	}

	connectors, err := filepath.Glob(filepath.Join(root, "card*-*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(connectors)

	want := normalizeConnector(id)
	var buses []string
	for _, dir := range connectors {
		name := filepath.Base(dir)
		i := strings.Index(name, "-")
		if i < 0 || normalizeConnector(name[i+1:]) != want {
			continue
		}
		if bus := connectorBus(dir); bus != "" {
			buses = append(buses, filepath.Join(devRoot, bus))
		}
	}
	if len(buses) == 0 {
		return nil, fmt.Errorf("no i2c bus found for %q under %s", id, root)
	}
	return buses, nil
}

// connectorBus finds the i2c adapter of a DRM connector, preferring the
// ddc link over an i2c-N child directory.
func connectorBus(dir string) string {
	if target, err := filepath.EvalSymlinks(filepath.Join(dir, "ddc")); err == nil {
		if base := filepath.Base(target); strings.HasPrefix(base, "i2c-") {
			return base
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "i2c-") {
			return e.Name()
		}
	}
	return ""
}

// normalizeConnector folds XRandR and DRM connector spellings together:
// HDMI-1 and HDMI-A-1 name the same port.
func normalizeConnector(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.Replace(n, "HDMI-A-", "HDMI-", 1)
	n = strings.Replace(n, "DVI-D-", "DVI-", 1)
	n = strings.Replace(n, "DVI-I-", "DVI-", 1)
	return n
}
