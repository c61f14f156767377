package placement

import "github.com/1broseidon/screenbridge/internal/platform"

// DefaultMargin keeps window shadows from bleeding onto the next display.
const DefaultMargin = 10

// ComputePlacement centers win inside area, inset by margin on every side.
// A window larger than the inset area is shrunk to fit; resize reports
// whether the size changed.
func ComputePlacement(win, area platform.Rect, margin int) (platform.Rect, bool) {
	if margin < 0 {
		margin = 0
	}
	w, h := win.Width, win.Height
	resize := false

	if maxW := area.Width - 2*margin; w > maxW {
		w = maxW
		resize = true
	}
	if maxH := area.Height - 2*margin; h > maxH {
		h = maxH
		resize = true
	}

	x := area.X + (area.Width-w)/2
	y := area.Y + (area.Height-h)/2

	x = max(area.X+margin, min(x, area.X+area.Width-w-margin))
	y = max(area.Y+margin, min(y, area.Y+area.Height-h-margin))

	return platform.Rect{X: x, Y: y, Width: w, Height: h}, resize
}
