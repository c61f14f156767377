//go:build linux

package platform

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/1broseidon/screenbridge/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// LinuxBackend wraps an X11 connection behind the platform Backend interface.
type LinuxBackend struct {
	conn *x11.Connection

	mu       sync.Mutex
	watching bool
	nextSub  int
	subs     map[int]func(WindowID)
}

var _ Native = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn, subs: make(map[int]func(WindowID))}
}

// Open connects to the X server named by $DISPLAY.
func Open() (Native, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return NewLinuxBackend(conn), nil
}

// Close disconnects from the X server.
func (b *LinuxBackend) Close() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// EventLoop runs the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// QuitEventLoop makes EventLoop return.
func (b *LinuxBackend) QuitEventLoop() {
	if b != nil && b.conn != nil {
		b.conn.Quit()
	}
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// Displays returns all active displays ordered by position.
func (b *LinuxBackend) Displays() ([]Display, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	monitors, err := conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		displays = append(displays, displayFromMonitor(m))
	}
	sort.SliceStable(displays, func(i, j int) bool {
		if displays[i].Bounds.X != displays[j].Bounds.X {
			return displays[i].Bounds.X < displays[j].Bounds.X
		}
		return displays[i].Bounds.Y < displays[j].Bounds.Y
	})
	return displays, nil
}

// PrimaryDisplay returns the RandR primary output's display.
func (b *LinuxBackend) PrimaryDisplay() (Display, error) {
	displays, err := b.Displays()
	if err != nil {
		return Display{}, err
	}
	if d, ok := PrimaryOf(displays); ok {
		return d, nil
	}
	return Display{}, ErrNoPrimary
}

// Window returns metadata for one window.
func (b *LinuxBackend) Window(id WindowID) (Window, error) {
	conn, err := b.connection()
	if err != nil {
		return Window{}, err
	}
	xid := xproto.Window(id)

	geom, err := conn.WindowGeometry(xid)
	if err != nil {
		return Window{}, fmt.Errorf("window %d: %w", id, ErrWindowGone)
	}

	w := Window{
		ID:       id,
		PID:      conn.WindowPID(xid),
		Class:    conn.WindowClass(xid),
		Title:    conn.WindowTitle(xid),
		Bounds:   Rect{X: geom.X, Y: geom.Y, Width: geom.Width, Height: geom.Height},
		Visible:  conn.IsViewable(xid),
		TopLevel: conn.IsClient(xid) && conn.IsNormalWindow(xid),
	}
	w.Process = ProcessName(w.PID)

	if st, err := conn.GetWindowState(xid); err == nil {
		switch {
		case st.Hidden:
			w.State = ShowMinimized
			w.Visible = false
		case st.Maximized:
			w.State = ShowMaximized
		}
	}
	return w, nil
}

// Windows lists visible, titled top-level windows.
func (b *LinuxBackend) Windows() ([]Window, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	clients, err := conn.ClientList()
	if err != nil {
		return nil, err
	}

	out := make([]Window, 0, len(clients))
	for _, c := range clients {
		w, err := b.Window(WindowID(c))
		if err != nil || !w.Visible || !w.TopLevel || w.Title == "" {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// Move moves a window without resizing it.
func (b *LinuxBackend) Move(id WindowID, x, y int) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.MoveWindow(xproto.Window(id), x, y)
}

// MoveResize moves and resizes a window to the specified bounds.
func (b *LinuxBackend) MoveResize(id WindowID, bounds Rect) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.MoveResizeWindow(xproto.Window(id), bounds.X, bounds.Y, bounds.Width, bounds.Height)
}

// Restore un-maximizes and de-iconifies a window.
func (b *LinuxBackend) Restore(id WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	xid := xproto.Window(id)
	st, err := conn.GetWindowState(xid)
	if err != nil {
		return fmt.Errorf("window %d: %w", id, ErrWindowGone)
	}
	if st.Maximized {
		if err := conn.UnmaximizeWindow(xid); err != nil {
			return err
		}
	}
	if st.Hidden {
		return conn.MapWindow(xid)
	}
	return nil
}

// Maximize maximizes a window in both directions.
func (b *LinuxBackend) Maximize(id WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.MaximizeWindow(xproto.Window(id))
}

// Activate raises and focuses a window.
func (b *LinuxBackend) Activate(id WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.FocusWindow(xproto.Window(id))
}

// WatchShown subscribes fn to newly managed windows. One client-list listener
// is installed on first use and shared by all subscribers.
func (b *LinuxBackend) WatchShown(fn func(WindowID)) (func(), error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.watching {
		if err := conn.WatchClientList(b.dispatchShown); err != nil {
			return nil, fmt.Errorf("failed to watch client list: %w", err)
		}
		b.watching = true
	}
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}, nil
}

func (b *LinuxBackend) dispatchShown(w xproto.Window) {
	b.mu.Lock()
	subs := make([]func(WindowID), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(WindowID(w))
	}
}

// OwnWindow returns the terminal window named by $WINDOWID.
func (b *LinuxBackend) OwnWindow() (WindowID, bool) {
	raw := strings.TrimSpace(os.Getenv("WINDOWID"))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 0, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return WindowID(id), true
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}

func displayFromMonitor(m x11.Monitor) Display {
	name := m.Name
	if m.Model != "" {
		name = m.Model
	}
	return Display{
		ID:       m.Name,
		Name:     name,
		Bounds:   Rect{X: m.Bounds.X, Y: m.Bounds.Y, Width: m.Bounds.Width, Height: m.Bounds.Height},
		WorkArea: Rect{X: m.WorkArea.X, Y: m.WorkArea.Y, Width: m.WorkArea.Width, Height: m.WorkArea.Height},
		Primary:  m.Primary,
		Handle:   uintptr(m.Output),
		Scale:    1,
	}
}
