// Package placement moves application windows between displays.
package placement

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/1broseidon/screenbridge/internal/platform"
)

// ErrNoTarget is returned when a placement is requested without a display.
var ErrNoTarget = errors.New("no target display")

// Options configures an Engine. Nil fields select the defaults.
type Options struct {
	// Margin is the safe-area inset in pixels; zero is a valid inset.
	Margin            *int
	ExcludedProcesses []string
	ExcludedClasses   []string
	ClassAllowlist    map[string][]string
	Logger            *slog.Logger
}

// Engine redirects newly shown windows onto a target display and performs
// on-demand moves.
type Engine struct {
	ws     platform.WindowSystem
	topo   platform.Topology
	filter *Filter
	margin int
	logger *slog.Logger

	mu     sync.Mutex
	active *AutoMove

	winMu    sync.Mutex
	winLocks map[platform.WindowID]*windowLock
}

type windowLock struct {
	mu   sync.Mutex
	refs int
}

// Status is a snapshot of the auto-move configuration.
type Status struct {
	Enabled bool
	Target  platform.Display
}

// New creates an engine. ws and topo are required.
func New(ws platform.WindowSystem, topo platform.Topology, opts Options) (*Engine, error) {
	if ws == nil || topo == nil {
		return nil, fmt.Errorf("placement: window system and topology are required")
	}
	processes := opts.ExcludedProcesses
	if processes == nil {
		processes = DefaultExcludedProcesses
	}
	classes := opts.ExcludedClasses
	if classes == nil {
		classes = DefaultExcludedClasses
	}
	allow := opts.ClassAllowlist
	if allow == nil {
		allow = DefaultClassAllowlist
	}
	margin := DefaultMargin
	if opts.Margin != nil {
		margin = max(*opts.Margin, 0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	filter := NewFilter(processes, classes, allow)
	filter.SkipPID(os.Getpid())

	return &Engine{
		ws:       ws,
		topo:     topo,
		filter:   filter,
		margin:   margin,
		logger:   logger,
		winLocks: make(map[platform.WindowID]*windowLock),
	}, nil
}

// AutoMove is the guard returned by Enable. Disable is idempotent and safe to
// call from any goroutine, including a shown-window callback.
type AutoMove struct {
	engine   *Engine
	target   platform.Display
	stop     func()
	once     sync.Once
	disabled atomic.Bool
}

// Target returns the display new windows are moved to.
func (a *AutoMove) Target() platform.Display { return a.target }

// Active reports whether the guard still redirects windows.
func (a *AutoMove) Active() bool { return !a.disabled.Load() }

// Disable removes the subscription. Later calls do nothing.
func (a *AutoMove) Disable() {
	a.release()
	e := a.engine
	e.mu.Lock()
	if e.active == a {
		e.active = nil
	}
	e.mu.Unlock()
}

func (a *AutoMove) release() {
	a.once.Do(func() {
		a.disabled.Store(true)
		if a.stop != nil {
			a.stop()
		}
	})
}

// Enable starts redirecting windows that appear on the primary display to
// target. An earlier guard is disabled first.
func (e *Engine) Enable(target platform.Display) (*AutoMove, error) {
	if target.ID == "" {
		return nil, ErrNoTarget
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != nil {
		e.active.release()
		e.active = nil
	}

	guard := &AutoMove{engine: e, target: target}
	stop, err := e.ws.WatchShown(func(id platform.WindowID) {
		e.handleShown(guard, id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to window events: %w", err)
	}
	guard.stop = stop
	e.active = guard

	e.logger.Info("window auto-move enabled", "target", target.ID, "name", target.Name)
	return guard, nil
}

// Disable turns auto-move off. It is a no-op when nothing is enabled.
func (e *Engine) Disable() {
	e.mu.Lock()
	active := e.active
	e.active = nil
	e.mu.Unlock()

	if active != nil {
		active.release()
		e.logger.Info("window auto-move disabled")
	}
}

// Status reports whether auto-move is on and where windows go.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return Status{}
	}
	return Status{Enabled: true, Target: e.active.target}
}

// AddExcludedProcess excludes another process from auto-move.
func (e *Engine) AddExcludedProcess(name string) {
	e.filter.AddProcess(name)
}

// ListWindows returns visible, titled top-level windows.
func (e *Engine) ListWindows() ([]platform.Window, error) {
	return e.ws.Windows()
}

func (e *Engine) handleShown(guard *AutoMove, id platform.WindowID) {
	if !guard.Active() {
		return
	}

	w, err := e.ws.Window(id)
	if err != nil {
		e.logger.Debug("shown window vanished", "window", id, "error", err)
		return
	}
	if ok, reason := e.filter.Allow(w); !ok {
		e.logger.Debug("skipping window", "window", id, "process", w.Process, "class", w.Class, "reason", reason)
		return
	}

	displays, err := e.topo.Displays()
	if err != nil {
		e.logger.Warn("failed to enumerate displays", "error", err)
		return
	}
	primary, ok := platform.PrimaryOf(displays)
	if !ok {
		return
	}
	if cx, cy := w.Bounds.Center(); !primary.Bounds.Contains(cx, cy) {
		return
	}

	target := guard.target
	for _, d := range displays {
		if d.ID == target.ID {
			target = d
			break
		}
	}

	unlock := e.lockWindow(id)
	defer unlock()
	if err := e.place(w, target); err != nil {
		e.logger.Warn("auto-move failed", "window", id, "title", w.Title, "error", err)
		return
	}
	e.logger.Debug("auto-moved window", "window", id, "title", w.Title, "target", target.ID)
}

// MoveToMonitor centers a window on d's usable area. Window failures are
// logged and not returned.
func (e *Engine) MoveToMonitor(id platform.WindowID, d platform.Display) error {
	if d.ID == "" && d.Bounds.Empty() {
		return ErrNoTarget
	}
	unlock := e.lockWindow(id)
	defer unlock()

	w, err := e.ws.Window(id)
	if err != nil {
		e.logger.Warn("move: window unavailable", "window", id, "error", err)
		return nil
	}
	if err := e.place(w, d); err != nil {
		e.logger.Warn("move failed", "window", id, "error", err)
	}
	return nil
}

// ActivateAndMoveToMonitor restores a window, moves it onto d, re-maximizes
// it if it was maximized, and brings it to the foreground.
func (e *Engine) ActivateAndMoveToMonitor(id platform.WindowID, d platform.Display) error {
	if d.ID == "" && d.Bounds.Empty() {
		return ErrNoTarget
	}
	unlock := e.lockWindow(id)
	defer unlock()

	w, err := e.ws.Window(id)
	if err != nil {
		e.logger.Warn("activate: window unavailable", "window", id, "error", err)
		return nil
	}
	wasMaximized := w.State == platform.ShowMaximized

	if err := e.ws.Restore(id); err != nil {
		e.logger.Warn("restore failed", "window", id, "error", err)
	}
	// Restoring changes the rect, so place from the restored geometry.
	if restored, err := e.ws.Window(id); err == nil {
		w = restored
	}
	if err := e.place(w, d); err != nil {
		e.logger.Warn("move failed", "window", id, "error", err)
	}
	if wasMaximized {
		if err := e.ws.Maximize(id); err != nil {
			e.logger.Warn("maximize failed", "window", id, "error", err)
		}
	}
	if err := e.ws.Activate(id); err != nil {
		e.logger.Warn("activate failed", "window", id, "error", err)
	}
	return nil
}

// ActivateWindow restores a hidden or minimized window and focuses it.
func (e *Engine) ActivateWindow(id platform.WindowID) error {
	unlock := e.lockWindow(id)
	defer unlock()

	w, err := e.ws.Window(id)
	if err != nil {
		e.logger.Warn("activate: window unavailable", "window", id, "error", err)
		return nil
	}
	if !w.Visible || w.State == platform.ShowMinimized {
		if err := e.ws.Restore(id); err != nil {
			e.logger.Warn("restore failed", "window", id, "error", err)
		}
	}
	if err := e.ws.Activate(id); err != nil {
		e.logger.Warn("activate failed", "window", id, "error", err)
	}
	return nil
}

func (e *Engine) place(w platform.Window, d platform.Display) error {
	r, resize := ComputePlacement(w.Bounds, d.Area(), e.margin)
	if resize {
		return e.ws.MoveResize(w.ID, r)
	}
	return e.ws.Move(w.ID, r.X, r.Y)
}

func (e *Engine) lockWindow(id platform.WindowID) func() {
	e.winMu.Lock()
	l, ok := e.winLocks[id]
	if !ok {
		l = &windowLock{}
		e.winLocks[id] = l
	}
	l.refs++
	e.winMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.winMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.winLocks, id)
		}
		e.winMu.Unlock()
	}
}
