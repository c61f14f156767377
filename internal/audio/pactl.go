package audio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Pactl drives PulseAudio or PipeWire through the pactl CLI.
type Pactl struct {
	Binary string
	Run    Runner
}

// NewPactl returns a Pactl using the pactl binary on $PATH.
func NewPactl() *Pactl {
	return &Pactl{Binary: "pactl", Run: execRunner}
}

// Available reports whether the pactl binary can be found.
func (p *Pactl) Available() bool {
	_, err := exec.LookPath(p.binary())
	return err == nil
}

func (p *Pactl) binary() string {
	if p.Binary == "" {
		return "pactl"
	}
	return p.Binary
}

func (p *Pactl) run(ctx context.Context, args ...string) ([]byte, error) {
	run := p.Run
	if run == nil {
		run = execRunner
	}
	out, err := run(ctx, p.binary(), args...)
	if err != nil {
		return nil, fmt.Errorf("pactl %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// Devices lists playback sinks, marking the current default.
func (p *Pactl) Devices(ctx context.Context) ([]Device, error) {
	out, err := p.run(ctx, "list", "sinks")
	if err != nil {
		return nil, err
	}
	devices := parseSinks(out)

	if def, err := p.run(ctx, "get-default-sink"); err == nil {
		name := strings.TrimSpace(string(def))
		for i := range devices {
			devices[i].Default = devices[i].ID == name
		}
	}
	return devices, nil
}

// SwitchDefaultPlaybackDevice makes the first sink matching substr the
// default. It reports false when no sink matches.
func (p *Pactl) SwitchDefaultPlaybackDevice(ctx context.Context, substr string) (bool, error) {
	devices, err := p.Devices(ctx)
	if err != nil {
		return false, err
	}
	d, ok := Find(devices, substr)
	if !ok {
		return false, nil
	}
	if d.Default {
		return true, nil
	}
	if _, err := p.run(ctx, "set-default-sink", d.ID); err != nil {
		return false, err
	}
	return true, nil
}

// parseSinks reads the block format of `pactl list sinks`.
func parseSinks(out []byte) []Device {
	var devices []Device
	var cur *Device

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Sink #"):
			devices = append(devices, Device{})
			cur = &devices[len(devices)-1]
		case cur == nil:
		case strings.HasPrefix(trimmed, "Name:") && cur.ID == "":
			cur.ID = strings.TrimSpace(strings.TrimPrefix(trimmed, "Name:"))
		case strings.HasPrefix(trimmed, "Description:") && cur.Name == "":
			cur.Name = strings.TrimSpace(strings.TrimPrefix(trimmed, "Description:"))
		}
	}

	kept := devices[:0]
	for _, d := range devices {
		if d.ID != "" {
			if d.Name == "" {
				d.Name = d.ID
			}
			kept = append(kept, d)
		}
	}
	return kept
}
