package mode

import (
	"fmt"
	"slices"
	"strings"
)

// Persona is one of the two parties sharing the rig.
type Persona int

const (
	PersonaA Persona = iota
	PersonaB
)

// Other returns the opposite persona.
func (p Persona) Other() Persona {
	if p == PersonaA {
		return PersonaB
	}
	return PersonaA
}

// Valid reports whether p is A or B.
func (p Persona) Valid() bool {
	return p == PersonaA || p == PersonaB
}

func (p Persona) String() string {
	switch p {
	case PersonaA:
		return "a"
	case PersonaB:
		return "b"
	default:
		return fmt.Sprintf("persona(%d)", int(p))
	}
}

// ParsePersona accepts "a"/"b" in any case, plus the "mode_a"/"mode_b" and
// "persona_a"/"persona_b" spellings used in config.
func ParsePersona(s string) (Persona, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "mode_")
	v = strings.TrimPrefix(v, "persona_")
	switch v {
	case "a":
		return PersonaA, nil
	case "b":
		return PersonaB, nil
	}
	return 0, fmt.Errorf("unknown persona %q (want a or b)", s)
}

// Profile is the per-persona configuration.
type Profile struct {
	Name string
	// Triggers are the VCP 0x60 codes that select this persona.
	Triggers []uint32
	// AudioDevice is matched as a case-insensitive substring; empty skips audio.
	AudioDevice string
	// WindowMonitor selects where new windows go: none, primary, secondary, or
	// a monitor ID or friendly name.
	WindowMonitor string
	// AppWindowMonitor selects where the daemon's own window goes.
	AppWindowMonitor string
}

// Triggered reports whether code is one of the profile's triggers.
func (p Profile) Triggered(code uint32) bool {
	return slices.Contains(p.Triggers, code)
}

// DefaultProfileA is the desktop persona: DisplayPort or USB-C input, windows
// stay where they open.
func DefaultProfileA() Profile {
	return Profile{
		Name:          "Desktop",
		Triggers:      []uint32{15, 16, 27},
		WindowMonitor: "none",
	}
}

// DefaultProfileB is the console persona: HDMI input, new windows go to the
// secondary display.
func DefaultProfileB() Profile {
	return Profile{
		Name:          "Console",
		Triggers:      []uint32{17, 18},
		WindowMonitor: "secondary",
	}
}

// RecoveryAction is applied when the watched monitor stops answering while
// persona A is active.
type RecoveryAction string

const (
	RecoverDoNothing RecoveryAction = "do_nothing"
	RecoverSwitchToA RecoveryAction = "switch_to_a"
	RecoverSwitchToB RecoveryAction = "switch_to_b"
)

// ParseRecoveryAction validates a configured action.
func ParseRecoveryAction(s string) (RecoveryAction, error) {
	switch a := RecoveryAction(strings.ToLower(strings.TrimSpace(s))); a {
	case RecoverDoNothing, RecoverSwitchToA, RecoverSwitchToB:
		return a, nil
	}
	return "", fmt.Errorf("unknown ddc loss action %q (want do_nothing, switch_to_a or switch_to_b)", s)
}

// overlap returns the trigger codes shared by both profiles.
func overlap(a, b Profile) []uint32 {
	var out []uint32
	for _, c := range b.Triggers {
		if a.Triggered(c) && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
