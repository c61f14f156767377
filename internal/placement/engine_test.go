package placement

import (
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"

	"github.com/1broseidon/screenbridge/internal/platform"
)

type fakeWS struct {
	mu      sync.Mutex
	windows map[platform.WindowID]platform.Window
	calls   []string
	subs    map[int]func(platform.WindowID)
	nextSub int
	moveErr error
}

func newFakeWS(ws ...platform.Window) *fakeWS {
	f := &fakeWS{windows: make(map[platform.WindowID]platform.Window), subs: make(map[int]func(platform.WindowID))}
	for _, w := range ws {
		f.windows[w.ID] = w
	}
	return f
}

func (f *fakeWS) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeWS) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeWS) Window(id platform.WindowID) (platform.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.windows[id]
	if !ok {
		return platform.Window{}, platform.ErrWindowGone
	}
	return w, nil
}

func (f *fakeWS) Windows() ([]platform.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]platform.Window, 0, len(f.windows))
	for _, w := range f.windows {
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeWS) Move(id platform.WindowID, x, y int) error {
	f.record("move")
	if f.moveErr != nil {
		return f.moveErr
	}
	f.mu.Lock()
	w := f.windows[id]
	w.Bounds.X, w.Bounds.Y = x, y
	f.windows[id] = w
	f.mu.Unlock()
	return nil
}

func (f *fakeWS) MoveResize(id platform.WindowID, r platform.Rect) error {
	f.record("moveresize")
	if f.moveErr != nil {
		return f.moveErr
	}
	f.mu.Lock()
	w := f.windows[id]
	w.Bounds = r
	f.windows[id] = w
	f.mu.Unlock()
	return nil
}

func (f *fakeWS) Restore(id platform.WindowID) error {
	f.record("restore")
	f.mu.Lock()
	w := f.windows[id]
	w.State = platform.ShowNormal
	w.Visible = true
	f.windows[id] = w
	f.mu.Unlock()
	return nil
}

func (f *fakeWS) Maximize(id platform.WindowID) error {
	f.record("maximize")
	f.mu.Lock()
	w := f.windows[id]
	w.State = platform.ShowMaximized
	f.windows[id] = w
	f.mu.Unlock()
	return nil
}

func (f *fakeWS) Activate(platform.WindowID) error {
	f.record("activate")
	return nil
}

func (f *fakeWS) WatchShown(fn func(platform.WindowID)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}, nil
}

func (f *fakeWS) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeWS) Show(id platform.WindowID) {
	f.mu.Lock()
	subs := make([]func(platform.WindowID), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(id)
	}
}

type fakeTopo struct {
	displays []platform.Display
}

func (t fakeTopo) Displays() ([]platform.Display, error) { return t.displays, nil }

func (t fakeTopo) PrimaryDisplay() (platform.Display, error) {
	if d, ok := platform.PrimaryOf(t.displays); ok {
		return d, nil
	}
	return platform.Display{}, platform.ErrNoPrimary
}

var (
	primary = platform.Display{
		ID: "DP-1", Name: "Primary", Primary: true,
		Bounds:   platform.Rect{Width: 1920, Height: 1080},
		WorkArea: platform.Rect{Width: 1920, Height: 1040},
	}
	secondary = platform.Display{
		ID: "HDMI-1", Name: "TV",
		Bounds: platform.Rect{X: 1920, Width: 1920, Height: 1080},
	}
	topo = fakeTopo{displays: []platform.Display{primary, secondary}}
)

func appWindow(id platform.WindowID, bounds platform.Rect) platform.Window {
	return platform.Window{ID: id, PID: 4242, Process: "firefox", Class: "firefox", Title: "Mozilla Firefox", Bounds: bounds, Visible: true, TopLevel: true}
}

func newTestEngine(t *testing.T, ws *fakeWS) *Engine {
	t.Helper()
	e, err := New(ws, topo, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(nil, topo, Options{}); err == nil {
		t.Fatalf("New(nil ws) expected error")
	}
}

func TestAutoMoveMovesWindowsFromPrimary(t *testing.T) {
	ws := newFakeWS(appWindow(1, platform.Rect{X: 100, Y: 100, Width: 800, Height: 600}))
	e := newTestEngine(t, ws)

	if _, err := e.Enable(secondary); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	ws.Show(1)

	w, _ := ws.Window(1)
	want := platform.Rect{X: 2480, Y: 240, Width: 800, Height: 600}
	if w.Bounds != want {
		t.Fatalf("bounds = %+v, want %+v", w.Bounds, want)
	}
	if calls := ws.Calls(); !reflect.DeepEqual(calls, []string{"move"}) {
		t.Fatalf("calls = %v, want a single move without resize", calls)
	}
}

func TestAutoMoveSkipsWindows(t *testing.T) {
	shell := appWindow(2, platform.Rect{X: 0, Y: 1040, Width: 1920, Height: 40})
	shell.Class = "Shell_TrayWnd"
	onSecondary := appWindow(3, platform.Rect{X: 2000, Y: 100, Width: 800, Height: 600})
	untitled := appWindow(4, platform.Rect{X: 100, Y: 100, Width: 800, Height: 600})
	untitled.Title = ""

	ws := newFakeWS(shell, onSecondary, untitled)
	e := newTestEngine(t, ws)
	if _, err := e.Enable(secondary); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	ws.Show(2)
	ws.Show(3)
	ws.Show(4)
	ws.Show(99) // unknown window

	if calls := ws.Calls(); len(calls) != 0 {
		t.Fatalf("expected no window operations, got %v", calls)
	}
}

func TestAutoMoveGuard(t *testing.T) {
	ws := newFakeWS(appWindow(1, platform.Rect{X: 100, Y: 100, Width: 800, Height: 600}))
	e := newTestEngine(t, ws)

	first, err := e.Enable(secondary)
	if err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	second, err := e.Enable(secondary)
	if err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if first.Active() {
		t.Fatalf("earlier guard should be disabled by re-enable")
	}
	if ws.Subscribers() != 1 {
		t.Fatalf("subscribers = %d, want 1", ws.Subscribers())
	}

	first.Disable()
	if st := e.Status(); !st.Enabled || st.Target.ID != secondary.ID {
		t.Fatalf("disabling a replaced guard must not affect the current one: %+v", st)
	}

	second.Disable()
	second.Disable()
	if st := e.Status(); st.Enabled {
		t.Fatalf("Status() = %+v, want disabled", st)
	}
	if ws.Subscribers() != 0 {
		t.Fatalf("subscribers = %d, want 0", ws.Subscribers())
	}
	ws.Show(1)
	if calls := ws.Calls(); len(calls) != 0 {
		t.Fatalf("disabled guard moved a window: %v", calls)
	}
}

func TestDisableFromCallback(t *testing.T) {
	ws := newFakeWS(appWindow(1, platform.Rect{X: 100, Y: 100, Width: 800, Height: 600}))
	e := newTestEngine(t, ws)
	guard, err := e.Enable(secondary)
	if err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	stop, _ := ws.WatchShown(func(platform.WindowID) { guard.Disable() })
	defer stop()

	ws.Show(1)
	if guard.Active() {
		t.Fatalf("guard still active after Disable from callback")
	}
}

func TestEnableRequiresTarget(t *testing.T) {
	e := newTestEngine(t, newFakeWS())
	if _, err := e.Enable(platform.Display{}); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("Enable() error = %v, want ErrNoTarget", err)
	}
}

func TestMoveToMonitorResizes(t *testing.T) {
	ws := newFakeWS(appWindow(1, platform.Rect{X: 0, Y: 0, Width: 2000, Height: 1200}))
	e := newTestEngine(t, ws)
	if err := e.MoveToMonitor(1, primary); err != nil {
		t.Fatalf("MoveToMonitor() error = %v", err)
	}
	w, _ := ws.Window(1)
	want := platform.Rect{X: 10, Y: 10, Width: 1900, Height: 1020}
	if w.Bounds != want {
		t.Fatalf("bounds = %+v, want %+v", w.Bounds, want)
	}
}

func TestZeroMarginIsHonoured(t *testing.T) {
	ws := newFakeWS(appWindow(1, platform.Rect{X: 0, Y: 0, Width: 2000, Height: 1200}))
	zero := 0
	e, err := New(ws, topo, Options{Margin: &zero, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.MoveToMonitor(1, primary); err != nil {
		t.Fatalf("MoveToMonitor() error = %v", err)
	}
	w, _ := ws.Window(1)
	want := platform.Rect{X: 0, Y: 0, Width: 1920, Height: 1040}
	if w.Bounds != want {
		t.Fatalf("bounds = %+v, want %+v", w.Bounds, want)
	}
}

func TestMoveToMonitorLogsFailures(t *testing.T) {
	ws := newFakeWS(appWindow(1, platform.Rect{Width: 100, Height: 100}))
	ws.moveErr = errors.New("BadWindow")
	e := newTestEngine(t, ws)
	if err := e.MoveToMonitor(1, secondary); err != nil {
		t.Fatalf("MoveToMonitor() error = %v, want nil after logging", err)
	}
	if err := e.MoveToMonitor(42, secondary); err != nil {
		t.Fatalf("MoveToMonitor(missing) error = %v, want nil after logging", err)
	}
}

func TestActivateAndMovePreservesMaximize(t *testing.T) {
	w := appWindow(1, platform.Rect{X: 0, Y: 0, Width: 800, Height: 600})
	w.State = platform.ShowMaximized
	ws := newFakeWS(w)
	e := newTestEngine(t, ws)

	if err := e.ActivateAndMoveToMonitor(1, secondary); err != nil {
		t.Fatalf("ActivateAndMoveToMonitor() error = %v", err)
	}
	want := []string{"restore", "move", "maximize", "activate"}
	if calls := ws.Calls(); !reflect.DeepEqual(calls, want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	got, _ := ws.Window(1)
	if got.State != platform.ShowMaximized {
		t.Fatalf("state = %v, want maximized", got.State)
	}
	if cx, cy := got.Bounds.Center(); !secondary.Bounds.Contains(cx, cy) {
		t.Fatalf("window %+v not on secondary", got.Bounds)
	}
}

func TestActivateAndMoveNormalWindow(t *testing.T) {
	ws := newFakeWS(appWindow(1, platform.Rect{X: 0, Y: 0, Width: 800, Height: 600}))
	e := newTestEngine(t, ws)
	if err := e.ActivateAndMoveToMonitor(1, secondary); err != nil {
		t.Fatalf("ActivateAndMoveToMonitor() error = %v", err)
	}
	want := []string{"restore", "move", "activate"}
	if calls := ws.Calls(); !reflect.DeepEqual(calls, want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
}

func TestActivateWindowRestoresMinimized(t *testing.T) {
	w := appWindow(1, platform.Rect{Width: 800, Height: 600})
	w.State = platform.ShowMinimized
	ws := newFakeWS(w)
	e := newTestEngine(t, ws)
	if err := e.ActivateWindow(1); err != nil {
		t.Fatalf("ActivateWindow() error = %v", err)
	}
	if calls := ws.Calls(); !reflect.DeepEqual(calls, []string{"restore", "activate"}) {
		t.Fatalf("calls = %v", calls)
	}
}

func TestAddExcludedProcess(t *testing.T) {
	ws := newFakeWS(appWindow(1, platform.Rect{X: 100, Y: 100, Width: 800, Height: 600}))
	e := newTestEngine(t, ws)
	e.AddExcludedProcess("Firefox.exe")
	if _, err := e.Enable(secondary); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	ws.Show(1)
	if calls := ws.Calls(); len(calls) != 0 {
		t.Fatalf("excluded process was moved: %v", calls)
	}
}
