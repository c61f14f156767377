package platform

import "errors"

var (
	// ErrWindowGone is returned when a window handle no longer refers to a live window.
	ErrWindowGone = errors.New("window no longer exists")
	// ErrNoPrimary is returned when the topology has no primary display.
	ErrNoPrimary = errors.New("no primary display")
	// ErrUnsupported is returned by backends that cannot provide an operation.
	ErrUnsupported = errors.New("operation not supported on this platform")
)

// WindowID is a platform-neutral window identifier.
type WindowID uint64

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Right returns the exclusive right edge.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Center returns the center point of the rect.
func (r Rect) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Contains reports whether the point lies inside the rect.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Display is a snapshot of one physical display. Snapshots are re-queried on
// every enumeration and must not be cached across topology changes.
type Display struct {
	ID       string // stable device path or output name
	Name     string // friendly name, may equal ID
	Bounds   Rect
	WorkArea Rect // usable area; empty when the platform cannot tell
	Primary  bool
	Handle   uintptr // native handle (HMONITOR, RandR output)
	Scale    float64 // DPI scale relative to 96 dpi; 0 means unknown
}

// Area returns the work area when known, else the full bounds.
func (d Display) Area() Rect {
	if !d.WorkArea.Empty() {
		return d.WorkArea
	}
	return d.Bounds
}

// ShowState is the window's minimize/maximize state.
type ShowState int

const (
	ShowNormal ShowState = iota
	ShowMinimized
	ShowMaximized
)

func (s ShowState) String() string {
	switch s {
	case ShowMinimized:
		return "minimized"
	case ShowMaximized:
		return "maximized"
	default:
		return "normal"
	}
}

// Window contains metadata and geometry for a window.
type Window struct {
	ID       WindowID
	PID      int
	Process  string // executable name without extension
	Class    string
	Title    string
	Bounds   Rect
	Visible  bool
	TopLevel bool
	State    ShowState
}

// Topology enumerates physical displays.
type Topology interface {
	Displays() ([]Display, error)
	PrimaryDisplay() (Display, error)
}

// WindowSystem abstracts the window operations used for placement.
type WindowSystem interface {
	Window(id WindowID) (Window, error)
	Windows() ([]Window, error)
	Move(id WindowID, x, y int) error
	MoveResize(id WindowID, bounds Rect) error
	Restore(id WindowID) error
	Maximize(id WindowID) error
	Activate(id WindowID) error
	// WatchShown subscribes fn to "window became visible" events. The
	// returned stop func unsubscribes; callbacks already running finish.
	WatchShown(fn func(WindowID)) (stop func(), err error)
}

// Backend is the full native surface used by the daemon.
type Backend interface {
	Topology
	WindowSystem
	// OwnWindow returns the window hosting this process, if any.
	OwnWindow() (WindowID, bool)
	Close()
}

// Native is a Backend that owns an event loop. EventLoop blocks until
// QuitEventLoop is called.
type Native interface {
	Backend
	EventLoop()
	QuitEventLoop()
}
