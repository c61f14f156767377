package daemon

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/screenbridge/internal/config"
	"github.com/1broseidon/screenbridge/internal/ddc"
	"github.com/1broseidon/screenbridge/internal/ipc"
	"github.com/1broseidon/screenbridge/internal/logging"
	"github.com/1broseidon/screenbridge/internal/mode"
	"github.com/1broseidon/screenbridge/internal/platform"
)

type fakeBackend struct {
	mu       sync.Mutex
	displays []platform.Display
	windows  map[platform.WindowID]platform.Window
	moves    []string
	subs     map[int]func(platform.WindowID)
	nextSub  int
	quit     chan struct{}
	quitOnce sync.Once
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		displays: []platform.Display{
			{ID: "DP-1", Name: "DELL U2720Q", Primary: true, Bounds: platform.Rect{Width: 1920, Height: 1080}},
			{ID: "HDMI-1", Name: "LG TV", Bounds: platform.Rect{X: 1920, Width: 1920, Height: 1080}},
		},
		windows: map[platform.WindowID]platform.Window{
			9: {ID: 9, PID: 4242, Process: "firefox", Title: "Firefox", Visible: true, TopLevel: true,
				Bounds: platform.Rect{X: 100, Y: 100, Width: 800, Height: 600}},
		},
		subs: make(map[int]func(platform.WindowID)),
		quit: make(chan struct{}),
	}
}

func (b *fakeBackend) Displays() ([]platform.Display, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]platform.Display(nil), b.displays...), nil
}

func (b *fakeBackend) PrimaryDisplay() (platform.Display, error) {
	ds, _ := b.Displays()
	if d, ok := platform.PrimaryOf(ds); ok {
		return d, nil
	}
	return platform.Display{}, platform.ErrNoPrimary
}

func (b *fakeBackend) Window(id platform.WindowID) (platform.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.windows[id]
	if !ok {
		return platform.Window{}, platform.ErrWindowGone
	}
	return w, nil
}

func (b *fakeBackend) Windows() ([]platform.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []platform.Window
	for _, w := range b.windows {
		out = append(out, w)
	}
	return out, nil
}

func (b *fakeBackend) Move(id platform.WindowID, x, y int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w := b.windows[id]
	w.Bounds.X, w.Bounds.Y = x, y
	b.windows[id] = w
	b.moves = append(b.moves, "move")
	return nil
}

func (b *fakeBackend) MoveResize(id platform.WindowID, r platform.Rect) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w := b.windows[id]
	w.Bounds = r
	b.windows[id] = w
	b.moves = append(b.moves, "resize")
	return nil
}

func (b *fakeBackend) Restore(platform.WindowID) error  { return nil }
func (b *fakeBackend) Maximize(platform.WindowID) error { return nil }
func (b *fakeBackend) Activate(platform.WindowID) error { return nil }

func (b *fakeBackend) WatchShown(fn func(platform.WindowID)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}, nil
}

func (b *fakeBackend) OwnWindow() (platform.WindowID, bool) { return 0, false }
func (b *fakeBackend) Close()                               {}
func (b *fakeBackend) EventLoop()                           { <-b.quit }
func (b *fakeBackend) QuitEventLoop()                       { b.quitOnce.Do(func() { close(b.quit) }) }

func (b *fakeBackend) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

type fakeHandle struct{ input uint16 }

func (h fakeHandle) GetVCP(code byte) (ddc.FeatureReply, error) {
	return ddc.FeatureReply{Code: code, Max: 100, Current: uint32(h.input)}, nil
}

func (h fakeHandle) SetVCP(byte, uint16) error { return nil }

type fakeSession struct{ h ddc.Handle }

func (s fakeSession) Handles() []ddc.Handle { return []ddc.Handle{s.h} }
func (s fakeSession) Close() error          { return nil }

type fakeTransport struct{ input uint16 }

func (t fakeTransport) Open(context.Context, platform.Display) (ddc.Session, error) {
	return fakeSession{h: fakeHandle{input: t.input}}, nil
}

type silentAudio struct{}

func (silentAudio) SwitchDefaultPlaybackDevice(context.Context, string) (bool, error) {
	return true, nil
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	l, err := logging.Setup(config.LoggingConfig{Level: "error", Format: "json"}, io.Discard)
	if err != nil {
		t.Fatalf("logging: %v", err)
	}
	return l
}

func writeFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func startDaemon(t *testing.T, backend *fakeBackend, lines ...string) (*Daemon, *ipc.Client, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "sbd")
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, append([]string{"ddc_auto_detect: false", "watch_config: false"}, lines...)...)
	sock := filepath.Join(dir, "d.sock")

	d, err := New(Options{
		ConfigPath: cfgPath,
		Logger:     testLogger(t),
		Backend:    backend,
		Transport:  fakeTransport{input: 17},
		Audio:      silentAudio{},
		SocketPath: sock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Close)
	return d, ipc.NewClientAt(sock), cfgPath
}

func TestDaemon_SwitchPersistsPersona(t *testing.T) {
	backend := newFakeBackend()
	_, c, cfgPath := startDaemon(t, backend)

	p, err := c.Switch("b")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if p.Persona != "b" || p.Name != "Console" {
		t.Fatalf("unexpected persona %+v", p)
	}

	pid, err := os.ReadFile(filepath.Join(filepath.Dir(cfgPath), "screenbridge.pid"))
	if err != nil {
		t.Fatalf("pid file: %v", err)
	}
	if strings.TrimSpace(string(pid)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file = %q", pid)
	}

	st, err := c.GetStatus()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Persona != "b" || !st.AutoMove || st.AutoMoveTarget != "HDMI-1" {
		t.Fatalf("unexpected status %+v", st)
	}
	if backend.subscribers() != 1 {
		t.Fatalf("expected one shown-window subscription, got %d", backend.subscribers())
	}

	res, err := config.LoadFromPath(cfgPath)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if res.Config.LastPersona != "b" {
		t.Fatalf("expected last_persona b, got %q", res.Config.LastPersona)
	}

	p, err = c.Toggle()
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if p.Persona != "a" {
		t.Fatalf("expected toggle back to a, got %q", p.Persona)
	}
	if backend.subscribers() != 0 {
		t.Fatalf("expected auto-move disabled for persona a")
	}
}

func TestDaemon_ResumesLastPersona(t *testing.T) {
	backend := newFakeBackend()
	d, _, _ := startDaemon(t, backend, "last_persona: b")
	if got := d.Status().Persona; got != "b" {
		t.Fatalf("expected persona b on start, got %q", got)
	}
	if backend.subscribers() != 1 {
		t.Fatalf("expected auto-move applied on start")
	}
}

func TestDaemon_ReadVCPAndMonitors(t *testing.T) {
	_, c, _ := startDaemon(t, newFakeBackend())

	in, err := c.QueryInput("")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if in.Monitor != "DP-1" || in.Kind != "value" || in.Value != 17 || in.Input == "" {
		t.Fatalf("unexpected input %+v", in)
	}

	v, err := c.GetVCP("LG", 0x10)
	if err != nil {
		t.Fatalf("get vcp: %v", err)
	}
	if v.Monitor != "HDMI-1" || v.Max != 100 {
		t.Fatalf("unexpected vcp %+v", v)
	}

	if _, err := c.GetVCP("nope", 0x10); err == nil {
		t.Fatalf("expected unknown monitor error")
	}

	m, err := c.GetMonitors()
	if err != nil {
		t.Fatalf("monitors: %v", err)
	}
	if len(m.Monitors) != 2 || !m.Monitors[0].Primary {
		t.Fatalf("unexpected monitors %+v", m.Monitors)
	}
}

func TestDaemon_WindowsAndMove(t *testing.T) {
	backend := newFakeBackend()
	_, c, _ := startDaemon(t, backend)

	w, err := c.ListWindows()
	if err != nil {
		t.Fatalf("windows: %v", err)
	}
	if len(w.Windows) != 1 || w.Windows[0].Process != "firefox" {
		t.Fatalf("unexpected windows %+v", w.Windows)
	}

	if err := c.MoveWindow(9, "secondary", false); err != nil {
		t.Fatalf("move: %v", err)
	}
	got, _ := backend.Window(9)
	if got.Bounds.X != 1920+560 || got.Bounds.Y != 240 {
		t.Fatalf("expected window centered on HDMI-1, got %+v", got.Bounds)
	}
}

func TestDaemon_ReloadCarriesPersona(t *testing.T) {
	backend := newFakeBackend()
	d, c, cfgPath := startDaemon(t, backend)

	if _, err := c.Switch("b"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	writeFile(t, cfgPath, "ddc_auto_detect: false", "watch_config: false", "safe_margin: 25", "last_persona: b")
	if err := c.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	cfg, _, orch := d.current()
	if cfg.SafeMargin != 25 {
		t.Fatalf("expected new config applied, got margin %d", cfg.SafeMargin)
	}
	if orch.Persona() != mode.PersonaB {
		t.Fatalf("expected persona carried across reload")
	}
	if backend.subscribers() != 1 {
		t.Fatalf("expected exactly one subscription after reload, got %d", backend.subscribers())
	}
}

func TestDaemon_ConcurrentReloadsAndToggles(t *testing.T) {
	backend := newFakeBackend()
	d, _, cfgPath := startDaemon(t, backend)

	toggles := 0
	for i := 0; i < 20; i++ {
		writeFile(t, cfgPath, "ddc_auto_detect: false", "watch_config: false", "safe_margin: "+strconv.Itoa(30+i))

		var wg sync.WaitGroup
		wg.Add(3)
		go func() { defer wg.Done(); _ = d.Reload() }()
		go func() { defer wg.Done(); _ = d.Reload() }()
		go func() {
			defer wg.Done()
			if _, err := d.Toggle(context.Background()); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
		wg.Wait()
		toggles++

		if n := backend.subscribers(); n != 1 {
			t.Fatalf("iteration %d: %d shown-window subscriptions, want 1", i, n)
		}
	}

	want := mode.PersonaA
	if toggles%2 == 1 {
		want = mode.PersonaB
	}
	_, _, orch := d.current()
	if got := orch.Persona(); got != want {
		t.Fatalf("persona = %v after %d toggles, want %v", got, toggles, want)
	}
}

func TestDaemon_ReloadRejectsInvalidConfig(t *testing.T) {
	d, _, cfgPath := startDaemon(t, newFakeBackend())
	writeFile(t, cfgPath, "ddc_loss_action: explode")
	if err := d.Reload(); err == nil {
		t.Fatalf("expected reload error")
	}
	cfg, _, _ := d.current()
	if cfg.DDCLossAction != config.LossSwitchToB {
		t.Fatalf("expected old config kept")
	}
}

func TestDaemon_RunReturnsOnCancel(t *testing.T) {
	d, _, _ := startDaemon(t, newFakeBackend())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestNew_RequiresLogger(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error without logger")
	}
}

func TestPersonaSynchronizer(t *testing.T) {
	var saved []string
	s := NewPersonaSynchronizer("/cfg.yaml", testLogger(t).Logger)
	s.save = func(_, persona string) error {
		saved = append(saved, persona)
		return nil
	}
	s.HandleSwitch(mode.Event{Persona: mode.PersonaB})
	s.HandleSwitch(mode.Event{Persona: mode.PersonaB})
	s.HandleSwitch(mode.Event{Persona: mode.PersonaA})
	if strings.Join(saved, ",") != "b,a" {
		t.Fatalf("unexpected saves %v", saved)
	}

	s.save = func(string, string) error { return errors.New("read-only") }
	s.HandleSwitch(mode.Event{Persona: mode.PersonaB})
	if s.last != "a" {
		t.Fatalf("failed save should not update last, got %q", s.last)
	}

	off := NewPersonaSynchronizer("", testLogger(t).Logger)
	off.save = func(string, string) error {
		t.Fatalf("save called with persistence disabled")
		return nil
	}
	off.HandleSwitch(mode.Event{Persona: mode.PersonaB})
}

func TestTopologyReconciler(t *testing.T) {
	backend := newFakeBackend()
	calls := 0
	r := NewTopologyReconciler(ReconcilerConfig{Logger: testLogger(t).Logger}, backend, func() { calls++ })

	if r.reconcile() {
		t.Fatalf("first pass should only record the layout")
	}
	if r.reconcile() {
		t.Fatalf("unchanged layout reported as changed")
	}

	backend.mu.Lock()
	backend.displays = backend.displays[:1]
	backend.mu.Unlock()
	if !r.reconcile() || calls != 1 {
		t.Fatalf("expected unplug to trigger onChange, calls=%d", calls)
	}
}

func TestFingerprintOrderIndependent(t *testing.T) {
	a := []platform.Display{{ID: "A", Primary: true}, {ID: "B"}}
	b := []platform.Display{{ID: "B"}, {ID: "A", Primary: true}}
	if fingerprint(a) != fingerprint(b) {
		t.Fatalf("fingerprint should not depend on order")
	}
	c := []platform.Display{{ID: "A"}, {ID: "B", Primary: true}}
	if fingerprint(a) == fingerprint(c) {
		t.Fatalf("primary swap should change fingerprint")
	}
}
