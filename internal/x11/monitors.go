package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Geometry is a rectangle in root window coordinates.
type Geometry struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Monitor represents a physical display driven by one RandR CRTC.
type Monitor struct {
	Index    int
	Output   randr.Output
	Name     string // output name, e.g. HDMI-1
	Model    string // EDID monitor name, may be empty
	Primary  bool
	Bounds   Geometry
	WorkArea Geometry
}

// GetMonitors retrieves all active monitors using XRandR. Work areas have
// dock struts (or the EWMH work area) applied.
func (c *Connection) GetMonitors() ([]Monitor, error) {
	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var primary randr.Output
	if reply, err := randr.GetOutputPrimary(c.XUtil.Conn(), c.Root).Reply(); err == nil {
		primary = reply.Output
	}

	var monitors []Monitor
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		output := crtcInfo.Outputs[0]
		name := fmt.Sprintf("Monitor%d", i)
		if outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), output, resources.ConfigTimestamp).Reply(); err == nil {
			name = string(outputInfo.Name)
		}

		bounds := Geometry{
			X:      int(crtcInfo.X),
			Y:      int(crtcInfo.Y),
			Width:  int(crtcInfo.Width),
			Height: int(crtcInfo.Height),
		}
		isPrimary := false
		for _, o := range crtcInfo.Outputs {
			if o == primary && primary != 0 {
				isPrimary = true
			}
		}

		monitors = append(monitors, Monitor{
			Index:    i,
			Output:   output,
			Name:     name,
			Model:    c.monitorModel(output),
			Primary:  isPrimary,
			Bounds:   bounds,
			WorkArea: bounds,
		})
	}

	// With no primary output configured, the monitor at the origin acts as primary.
	if primary == 0 {
		for i := range monitors {
			if monitors[i].Bounds.X == 0 && monitors[i].Bounds.Y == 0 {
				monitors[i].Primary = true
				break
			}
		}
	}

	c.applyWorkAreas(monitors)
	return monitors, nil
}

func (c *Connection) monitorModel(output randr.Output) string {
	atom, err := c.internAtom("EDID")
	if err != nil {
		return ""
	}
	prop, err := randr.GetOutputProperty(c.XUtil.Conn(), output, atom, xproto.AtomAny, 0, 128, false, false).Reply()
	if err != nil || prop == nil {
		return ""
	}
	return ParseEDIDName(prop.Data)
}

func (c *Connection) applyWorkAreas(monitors []Monitor) {
	struts, rootWidth, rootHeight, ok := c.dockStrutPartials()
	if ok && len(struts) > 0 {
		for i := range monitors {
			monitors[i].WorkArea = workAreaFromStruts(monitors[i].Bounds, rootWidth, rootHeight, struts)
		}
		return
	}

	workArea, err := ewmh.WorkareaGet(c.XUtil)
	if err != nil || len(workArea) == 0 {
		return
	}
	desktopIndex := 0
	if currentDesktop, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil {
		if int(currentDesktop) >= 0 && int(currentDesktop) < len(workArea) {
			desktopIndex = int(currentDesktop)
		}
	}
	wa := workArea[desktopIndex]
	area := Geometry{X: int(wa.X), Y: int(wa.Y), Width: int(wa.Width), Height: int(wa.Height)}
	for i := range monitors {
		if isect, ok := intersect(monitors[i].Bounds, area); ok {
			monitors[i].WorkArea = isect
		}
	}
}

// dockStrutPartials collects the struts of every dock window. Docks that only
// set _NET_WM_STRUT are widened to span the whole root window.
func (c *Connection) dockStrutPartials() ([]ewmh.WmStrutPartial, int, int, bool) {
	rootGeom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return nil, 0, 0, false
	}
	rootWidth := int(rootGeom.Width)
	rootHeight := int(rootGeom.Height)

	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return nil, 0, 0, false
	}

	var out []ewmh.WmStrutPartial
	for _, windowID := range clients {
		types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
		if err != nil || !containsString(types, "_NET_WM_WINDOW_TYPE_DOCK") {
			continue
		}

		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, windowID); err == nil {
			out = append(out, *sp)
			continue
		}
		if s, err := ewmh.WmStrutGet(c.XUtil, windowID); err == nil {
			out = append(out, ewmh.WmStrutPartial{
				Left:       s.Left,
				Right:      s.Right,
				Top:        s.Top,
				Bottom:     s.Bottom,
				LeftEndY:   uint(rootHeight - 1),
				RightEndY:  uint(rootHeight - 1),
				TopEndX:    uint(rootWidth - 1),
				BottomEndX: uint(rootWidth - 1),
			})
		}
	}
	return out, rootWidth, rootHeight, true
}

// workAreaFromStruts shrinks bounds by every strut that overlaps it.
func workAreaFromStruts(bounds Geometry, rootWidth, rootHeight int, struts []ewmh.WmStrutPartial) Geometry {
	var left, right, top, bottom int
	for _, sp := range struts {
		if sp.Top > 0 {
			band := Geometry{X: int(sp.TopStartX), Y: 0, Width: int(sp.TopEndX) + 1 - int(sp.TopStartX), Height: int(sp.Top)}
			if isect, ok := intersect(bounds, band); ok {
				top = max(top, isect.Height)
			}
		}
		if sp.Bottom > 0 {
			band := Geometry{X: int(sp.BottomStartX), Y: rootHeight - int(sp.Bottom), Width: int(sp.BottomEndX) + 1 - int(sp.BottomStartX), Height: int(sp.Bottom)}
			if isect, ok := intersect(bounds, band); ok {
				bottom = max(bottom, isect.Height)
			}
		}
		if sp.Left > 0 {
			band := Geometry{X: 0, Y: int(sp.LeftStartY), Width: int(sp.Left), Height: int(sp.LeftEndY) + 1 - int(sp.LeftStartY)}
			if isect, ok := intersect(bounds, band); ok {
				left = max(left, isect.Width)
			}
		}
		if sp.Right > 0 {
			band := Geometry{X: rootWidth - int(sp.Right), Y: int(sp.RightStartY), Width: int(sp.Right), Height: int(sp.RightEndY) + 1 - int(sp.RightStartY)}
			if isect, ok := intersect(bounds, band); ok {
				right = max(right, isect.Width)
			}
		}
	}

	area := Geometry{
		X:      bounds.X + left,
		Y:      bounds.Y + top,
		Width:  max(bounds.Width-left-right, 1),
		Height: max(bounds.Height-top-bottom, 1),
	}
	return area
}

func intersect(a, b Geometry) (Geometry, bool) {
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.Width, b.X+b.Width)
	y2 := min(a.Y+a.Height, b.Y+b.Height)
	if x2 <= x1 || y2 <= y1 {
		return Geometry{}, false
	}
	return Geometry{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}, true
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
