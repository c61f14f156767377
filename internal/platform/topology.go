package platform

import "strings"

// Monitor selector keywords accepted in configuration.
const (
	SelectorNone      = "none"
	SelectorPrimary   = "primary"
	SelectorMain      = "main"
	SelectorSecondary = "secondary"
)

// ResolveSelector maps a monitor selector onto one of ds.
//
// "primary" (or "main") picks the primary display, "secondary" the first
// non-primary one, and any other value must equal a display ID or friendly
// name. "none" and the empty string never resolve.
func ResolveSelector(ds []Display, selector string) (Display, bool) {
	sel := strings.TrimSpace(selector)
	switch strings.ToLower(sel) {
	case "", SelectorNone:
		return Display{}, false
	case SelectorPrimary, SelectorMain:
		return PrimaryOf(ds)
	case SelectorSecondary:
		for _, d := range ds {
			if !d.Primary {
				return d, true
			}
		}
		return Display{}, false
	}
	for _, d := range ds {
		if d.ID == sel || d.Name == sel {
			return d, true
		}
	}
	return Display{}, false
}

// MatchDisplay returns the first display whose ID or friendly name contains
// substr, compared case-insensitively.
func MatchDisplay(ds []Display, substr string) (Display, bool) {
	needle := strings.ToLower(strings.TrimSpace(substr))
	if needle == "" {
		return Display{}, false
	}
	for _, d := range ds {
		if strings.Contains(strings.ToLower(d.ID), needle) || strings.Contains(strings.ToLower(d.Name), needle) {
			return d, true
		}
	}
	return Display{}, false
}

// PrimaryOf returns the display flagged primary.
func PrimaryOf(ds []Display) (Display, bool) {
	for _, d := range ds {
		if d.Primary {
			return d, true
		}
	}
	return Display{}, false
}

// DisplayContaining returns the display whose bounds contain the point.
func DisplayContaining(ds []Display, x, y int) (Display, bool) {
	for _, d := range ds {
		if d.Bounds.Contains(x, y) {
			return d, true
		}
	}
	return Display{}, false
}

// NormalizeProcessName lowercases a process name and strips a trailing ".exe".
func NormalizeProcessName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(n, ".exe")
}
