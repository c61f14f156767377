//go:build windows

package platform

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	shcore   = windows.NewLazySystemDLL("shcore.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procEnumDisplayMonitors  = user32.NewProc("EnumDisplayMonitors")
	procGetMonitorInfoW      = user32.NewProc("GetMonitorInfoW")
	procEnumDisplayDevicesW  = user32.NewProc("EnumDisplayDevicesW")
	procEnumWindows          = user32.NewProc("EnumWindows")
	procIsWindow             = user32.NewProc("IsWindow")
	procIsWindowVisible      = user32.NewProc("IsWindowVisible")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetClassNameW        = user32.NewProc("GetClassNameW")
	procGetWindowRect        = user32.NewProc("GetWindowRect")
	procGetWindowPlacement   = user32.NewProc("GetWindowPlacement")
	procGetAncestor          = user32.NewProc("GetAncestor")
	procSetWindowPos         = user32.NewProc("SetWindowPos")
	procShowWindow           = user32.NewProc("ShowWindow")
	procSetForegroundWindow  = user32.NewProc("SetForegroundWindow")
	procSetWinEventHook      = user32.NewProc("SetWinEventHook")
	procUnhookWinEvent       = user32.NewProc("UnhookWinEvent")
	procGetMessageW          = user32.NewProc("GetMessageW")
	procPostThreadMessageW   = user32.NewProc("PostThreadMessageW")
	procGetDpiForMonitor     = shcore.NewProc("GetDpiForMonitor")
	procGetConsoleWindow     = kernel32.NewProc("GetConsoleWindow")
)

const (
	monitorInfoPrimary = 0x1
	mdtEffectiveDPI    = 0

	gaRoot = 2

	swShow          = 5
	swShowMaximized = 3
	swShowMinimized = 2
	swRestore       = 9

	swpNoSize     = 0x0001
	swpNoZOrder   = 0x0004
	swpNoActivate = 0x0010

	eventObjectShow        = 0x8002
	wineventOutOfContext   = 0x0000
	wineventSkipOwnProcess = 0x0002
	objidWindow            = 0
	wmQuit                 = 0x0012
)

type rect struct {
	Left, Top, Right, Bottom int32
}

func (r rect) toRect() Rect {
	return Rect{X: int(r.Left), Y: int(r.Top), Width: int(r.Right - r.Left), Height: int(r.Bottom - r.Top)}
}

type point struct {
	X, Y int32
}

type monitorInfoExW struct {
	Size    uint32
	Monitor rect
	Work    rect
	Flags   uint32
	Device  [32]uint16
}

type displayDeviceW struct {
	Cb           uint32
	DeviceName   [32]uint16
	DeviceString [128]uint16
	StateFlags   uint32
	DeviceID     [128]uint16
	DeviceKey    [128]uint16
}

type windowPlacement struct {
	Length           uint32
	Flags            uint32
	ShowCmd          uint32
	PtMinPosition    point
	PtMaxPosition    point
	RcNormalPosition rect
}

type msg struct {
	HWnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

// WindowsBackend implements Backend on user32.
type WindowsBackend struct {
	done     chan struct{}
	quitOnce sync.Once

	mu       sync.Mutex
	nextSub  int
	subs     map[int]func(WindowID)
	hookTID  uint32
	hookDone chan struct{}
}

var _ Native = (*WindowsBackend)(nil)

// Only one backend receives WinEvent callbacks at a time; the callback
// trampoline is created once because Windows callbacks are never freed.
var (
	activeHook   atomic.Pointer[WindowsBackend]
	callbackOnce sync.Once
	winEventCB   uintptr
)

// Enumeration callbacks are likewise created once and write into
// package-level buffers guarded by enumMu.
var (
	enumMu        sync.Mutex
	enumOnce      sync.Once
	monitorEnumCB uintptr
	windowEnumCB  uintptr
	enumDisplays  []Display
	enumHWNDs     []uintptr
)

func initEnumCallbacks() {
	enumOnce.Do(func() {
		monitorEnumCB = windows.NewCallback(monitorEnumProc)
		windowEnumCB = windows.NewCallback(windowEnumProc)
	})
}

func monitorEnumProc(hMonitor, hdc, lprc, data uintptr) uintptr {
	var mi monitorInfoExW
	mi.Size = uint32(unsafe.Sizeof(mi))
	if ret, _, _ := procGetMonitorInfoW.Call(hMonitor, uintptr(unsafe.Pointer(&mi))); ret == 0 {
		return 1
	}
	device := windows.UTF16ToString(mi.Device[:])
	enumDisplays = append(enumDisplays, Display{
		ID:       device,
		Name:     friendlyMonitorName(&mi.Device[0], device),
		Bounds:   mi.Monitor.toRect(),
		WorkArea: mi.Work.toRect(),
		Primary:  mi.Flags&monitorInfoPrimary != 0,
		Handle:   hMonitor,
		Scale:    monitorScale(hMonitor),
	})
	return 1
}

func windowEnumProc(hwnd, lparam uintptr) uintptr {
	enumHWNDs = append(enumHWNDs, hwnd)
	return 1
}

// Open returns the user32 backend.
func Open() (Native, error) {
	if err := user32.Load(); err != nil {
		return nil, fmt.Errorf("failed to load user32: %w", err)
	}
	return &WindowsBackend{
		done: make(chan struct{}),
		subs: make(map[int]func(WindowID)),
	}, nil
}

// Close stops the WinEvent hook thread if it is running.
func (b *WindowsBackend) Close() {
	b.mu.Lock()
	b.subs = make(map[int]func(WindowID))
	b.mu.Unlock()
	b.stopHook()
	b.QuitEventLoop()
}

// EventLoop blocks until QuitEventLoop. Hook messages are pumped on their
// own locked thread.
func (b *WindowsBackend) EventLoop() {
	<-b.done
}

// QuitEventLoop makes EventLoop return.
func (b *WindowsBackend) QuitEventLoop() {
	b.quitOnce.Do(func() { close(b.done) })
}

// Displays enumerates monitors via EnumDisplayMonitors.
func (b *WindowsBackend) Displays() ([]Display, error) {
	initEnumCallbacks()

	enumMu.Lock()
	defer enumMu.Unlock()
	enumDisplays = nil
	ret, _, err := procEnumDisplayMonitors.Call(0, 0, monitorEnumCB, 0)
	displays := enumDisplays
	enumDisplays = nil
	if ret == 0 {
		return nil, fmt.Errorf("EnumDisplayMonitors failed: %w", err)
	}
	return displays, nil
}

// PrimaryDisplay returns the monitor flagged MONITORINFOF_PRIMARY.
func (b *WindowsBackend) PrimaryDisplay() (Display, error) {
	displays, err := b.Displays()
	if err != nil {
		return Display{}, err
	}
	if d, ok := PrimaryOf(displays); ok {
		return d, nil
	}
	return Display{}, ErrNoPrimary
}

func friendlyMonitorName(device *uint16, fallback string) string {
	var dd displayDeviceW
	dd.Cb = uint32(unsafe.Sizeof(dd))
	if ret, _, _ := procEnumDisplayDevicesW.Call(uintptr(unsafe.Pointer(device)), 0, uintptr(unsafe.Pointer(&dd)), 0); ret == 0 {
		return fallback
	}
	if name := windows.UTF16ToString(dd.DeviceString[:]); name != "" {
		return name
	}
	return fallback
}

func monitorScale(hMonitor uintptr) float64 {
	if procGetDpiForMonitor.Find() != nil {
		return 1
	}
	var dpiX, dpiY uint32
	if hr, _, _ := procGetDpiForMonitor.Call(hMonitor, mdtEffectiveDPI, uintptr(unsafe.Pointer(&dpiX)), uintptr(unsafe.Pointer(&dpiY))); hr != 0 || dpiX == 0 {
		return 1
	}
	return float64(dpiX) / 96
}

// Window returns metadata for one HWND.
func (b *WindowsBackend) Window(id WindowID) (Window, error) {
	hwnd := uintptr(id)
	if ret, _, _ := procIsWindow.Call(hwnd); ret == 0 {
		return Window{}, fmt.Errorf("window %#x: %w", hwnd, ErrWindowGone)
	}

	var r rect
	if ret, _, err := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&r))); ret == 0 {
		return Window{}, fmt.Errorf("GetWindowRect: %w", err)
	}

	var pid uint32
	_, _ = windows.GetWindowThreadProcessId(windows.HWND(hwnd), &pid)

	visible, _, _ := procIsWindowVisible.Call(hwnd)
	root, _, _ := procGetAncestor.Call(hwnd, gaRoot)

	w := Window{
		ID:       id,
		PID:      int(pid),
		Process:  ProcessName(int(pid)),
		Class:    windowClass(hwnd),
		Title:    windowText(hwnd),
		Bounds:   r.toRect(),
		Visible:  visible != 0,
		TopLevel: root == hwnd,
	}

	var wp windowPlacement
	wp.Length = uint32(unsafe.Sizeof(wp))
	if ret, _, _ := procGetWindowPlacement.Call(hwnd, uintptr(unsafe.Pointer(&wp))); ret != 0 {
		switch wp.ShowCmd {
		case swShowMaximized:
			w.State = ShowMaximized
		case swShowMinimized:
			w.State = ShowMinimized
		}
	}
	return w, nil
}

func windowText(hwnd uintptr) string {
	n, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

func windowClass(hwnd uintptr) string {
	buf := make([]uint16, 256)
	n, _, _ := procGetClassNameW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

// Windows lists visible, titled top-level windows.
func (b *WindowsBackend) Windows() ([]Window, error) {
	initEnumCallbacks()

	enumMu.Lock()
	enumHWNDs = nil
	ret, _, err := procEnumWindows.Call(windowEnumCB, 0)
	hwnds := enumHWNDs
	enumHWNDs = nil
	enumMu.Unlock()
	if ret == 0 {
		return nil, fmt.Errorf("EnumWindows failed: %w", err)
	}

	var out []Window
	for _, hwnd := range hwnds {
		w, err := b.Window(WindowID(hwnd))
		if err == nil && w.Visible && w.TopLevel && w.Title != "" {
			out = append(out, w)
		}
	}
	return out, nil
}

// Move positions a window without changing its size.
func (b *WindowsBackend) Move(id WindowID, x, y int) error {
	ret, _, err := procSetWindowPos.Call(uintptr(id), 0, uintptr(x), uintptr(y), 0, 0, swpNoZOrder|swpNoActivate|swpNoSize)
	if ret == 0 {
		return fmt.Errorf("SetWindowPos: %w", err)
	}
	return nil
}

// MoveResize sets the window rectangle.
func (b *WindowsBackend) MoveResize(id WindowID, bounds Rect) error {
	ret, _, err := procSetWindowPos.Call(uintptr(id), 0,
		uintptr(bounds.X), uintptr(bounds.Y), uintptr(bounds.Width), uintptr(bounds.Height),
		swpNoZOrder|swpNoActivate)
	if ret == 0 {
		return fmt.Errorf("SetWindowPos: %w", err)
	}
	return nil
}

// Restore issues SW_RESTORE.
func (b *WindowsBackend) Restore(id WindowID) error {
	procShowWindow.Call(uintptr(id), swRestore)
	return nil
}

// Maximize issues SW_SHOWMAXIMIZED.
func (b *WindowsBackend) Maximize(id WindowID) error {
	procShowWindow.Call(uintptr(id), swShowMaximized)
	return nil
}

// Activate shows the window and brings it to the foreground.
func (b *WindowsBackend) Activate(id WindowID) error {
	procShowWindow.Call(uintptr(id), swShow)
	if ret, _, err := procSetForegroundWindow.Call(uintptr(id)); ret == 0 {
		return fmt.Errorf("SetForegroundWindow: %w", err)
	}
	return nil
}

// WatchShown subscribes fn to EVENT_OBJECT_SHOW for top-level windows of
// other processes. The hook thread starts with the first subscriber and runs
// until Close, so unsubscribing is safe from inside a callback.
func (b *WindowsBackend) WatchShown(fn func(WindowID)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.hookDone == nil {
		if err := b.startHookLocked(); err != nil {
			return nil, err
		}
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

func (b *WindowsBackend) startHookLocked() error {
	callbackOnce.Do(func() {
		winEventCB = windows.NewCallback(winEventProc)
	})

	ready := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		// SetWinEventHook delivers out-of-context events to the thread that
		// installed it, so the hook and the message loop share one OS thread.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		hook, _, err := procSetWinEventHook.Call(
			eventObjectShow, eventObjectShow,
			0, winEventCB, 0, 0,
			wineventOutOfContext|wineventSkipOwnProcess,
		)
		if hook == 0 {
			ready <- fmt.Errorf("SetWinEventHook failed: %w", err)
			return
		}
		defer procUnhookWinEvent.Call(hook)

		b.mu.Lock()
		b.hookTID = windows.GetCurrentThreadId()
		b.mu.Unlock()
		activeHook.Store(b)
		ready <- nil

		var m msg
		for {
			ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			// 0 is WM_QUIT, -1 is an error.
			if ret == 0 || int32(ret) == -1 {
				break
			}
		}
		activeHook.CompareAndSwap(b, nil)
	}()

	// The hook goroutine takes b.mu to publish its thread id, so wait
	// without holding it.
	b.mu.Unlock()
	err := <-ready
	b.mu.Lock()
	if err != nil {
		return err
	}
	b.hookDone = done
	return nil
}

func (b *WindowsBackend) stopHook() {
	b.mu.Lock()
	tid := b.hookTID
	done := b.hookDone
	b.hookTID = 0
	b.hookDone = nil
	b.mu.Unlock()

	if done == nil {
		return
	}
	if tid != 0 {
		procPostThreadMessageW.Call(uintptr(tid), wmQuit, 0, 0)
	}
	<-done
}

func winEventProc(hook, event, hwnd, idObject, idChild, thread, eventTime uintptr) uintptr {
	if int32(idObject) != objidWindow || hwnd == 0 {
		return 0
	}
	b := activeHook.Load()
	if b == nil {
		return 0
	}
	b.mu.Lock()
	subs := make([]func(WindowID), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(WindowID(hwnd))
	}
	return 0
}

// OwnWindow returns the console window hosting this process.
func (b *WindowsBackend) OwnWindow() (WindowID, bool) {
	if procGetConsoleWindow.Find() != nil {
		return 0, false
	}
	hwnd, _, _ := procGetConsoleWindow.Call()
	if hwnd == 0 {
		return 0, false
	}
	return WindowID(hwnd), true
}
