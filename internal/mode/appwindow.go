package mode

import (
	"fmt"

	"github.com/1broseidon/screenbridge/internal/platform"
)

// HostWindow moves a known window (the terminal or console hosting the
// daemon) when the persona changes. Backends report window and display
// geometry in the same pixel space, so no DPI conversion is applied.
type HostWindow struct {
	WS platform.WindowSystem
	ID platform.WindowID
}

// MoveTo centers the window in d's work area, restores it if minimized and
// brings it to the foreground.
func (h HostWindow) MoveTo(d platform.Display) error {
	w, err := h.WS.Window(h.ID)
	if err != nil {
		return err
	}
	if w.State == platform.ShowMinimized || !w.Visible {
		if err := h.WS.Restore(h.ID); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}
	x, y := CenterInWorkArea(w.Bounds, d)
	if err := h.WS.Move(h.ID, x, y); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	return h.WS.Activate(h.ID)
}

// CenterInWorkArea returns the top-left position that centers win in the
// display's usable area.
func CenterInWorkArea(win platform.Rect, d platform.Display) (int, int) {
	area := d.Area()
	return area.X + (area.Width-win.Width)/2, area.Y + (area.Height-win.Height)/2
}
