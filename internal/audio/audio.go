// Package audio switches the default playback device.
package audio

import (
	"context"
	"log/slog"
	"strings"
)

// Device is one playback sink.
type Device struct {
	ID      string // backend identifier, e.g. the PulseAudio sink name
	Name    string // human readable description
	Default bool
}

// Matches reports whether substr appears in the device's ID or name,
// ignoring case.
func (d Device) Matches(substr string) bool {
	needle := strings.ToLower(strings.TrimSpace(substr))
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(d.Name), needle) || strings.Contains(strings.ToLower(d.ID), needle)
}

// Find returns the first device matching substr.
func Find(devices []Device, substr string) (Device, bool) {
	for _, d := range devices {
		if d.Matches(substr) {
			return d, true
		}
	}
	return Device{}, false
}

// Noop accepts every switch request without doing anything. It is used
// where no audio backend is available.
type Noop struct {
	Logger *slog.Logger
}

// SwitchDefaultPlaybackDevice logs the request and reports no match.
func (n Noop) SwitchDefaultPlaybackDevice(_ context.Context, substr string) (bool, error) {
	if n.Logger != nil {
		n.Logger.Debug("audio switching unavailable", "device", substr)
	}
	return false, nil
}

// Devices returns no devices.
func (Noop) Devices(context.Context) ([]Device, error) { return nil, nil }
