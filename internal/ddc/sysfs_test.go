package ddc

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func mkConnector(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return dir
}

func TestBusLocatorDDCLink(t *testing.T) {
	root := t.TempDir()
	adapter := filepath.Join(root, "devices", "i2c-5")
	if err := os.MkdirAll(adapter, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	dir := mkConnector(t, root, "card0-HDMI-A-1")
	if err := os.Symlink(adapter, filepath.Join(dir, "ddc")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	got, err := BusLocator{SysfsRoot: root, DevRoot: "/dev"}.Locate("HDMI-1")
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if want := []string{"/dev/i2c-5"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Locate() = %v, want %v", got, want)
	}
}

func TestBusLocatorI2CChild(t *testing.T) {
	root := t.TempDir()
	dir := mkConnector(t, root, "card1-DP-2")
	if err := os.MkdirAll(filepath.Join(dir, "i2c-9"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	mkConnector(t, root, "card1-DP-1")

	got, err := BusLocator{SysfsRoot: root, DevRoot: "/dev"}.Locate("dp-2")
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if want := []string{"/dev/i2c-9"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Locate() = %v, want %v", got, want)
	}
}

func TestBusLocatorOverride(t *testing.T) {
	l := BusLocator{SysfsRoot: t.TempDir(), Overrides: map[string]string{"HDMI-1": "/dev/i2c-3"}}
	got, err := l.Locate("HDMI-1")
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if len(got) != 1 || got[0] != "/dev/i2c-3" {
		t.Fatalf("Locate() = %v", got)
	}
}

func TestBusLocatorMissing(t *testing.T) {
	root := t.TempDir()
	mkConnector(t, root, "card0-eDP-1")
	if _, err := (BusLocator{SysfsRoot: root}).Locate("HDMI-1"); err == nil {
		t.Fatalf("Locate() expected error for unknown connector")
	}
}

func TestNormalizeConnector(t *testing.T) {
	tests := map[string]string{
		"HDMI-A-1": "HDMI-1",
		"hdmi-1":   "HDMI-1",
		"DVI-D-1":  "DVI-1",
		"DP-3":     "DP-3",
		" eDP-1 ":  "EDP-1",
	}
	for in, want := range tests {
		if got := normalizeConnector(in); got != want {
			t.Fatalf("normalizeConnector(%q) = %q, want %q", in, got, want)
		}
	}
}
