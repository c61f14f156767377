package mode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/1broseidon/screenbridge/internal/ddc"
	"github.com/1broseidon/screenbridge/internal/placement"
	"github.com/1broseidon/screenbridge/internal/platform"
)

type fakeAudio struct {
	mu      sync.Mutex
	calls   []string
	ctxErrs []error
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (a *fakeAudio) SwitchDefaultPlaybackDevice(ctx context.Context, substr string) (bool, error) {
	if a.entered != nil {
		a.entered <- struct{}{}
	}
	if a.block != nil {
		<-a.block
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, substr)
	a.ctxErrs = append(a.ctxErrs, ctx.Err())
	return a.err == nil, a.err
}

func (a *fakeAudio) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

type scriptedInputs struct {
	mu      sync.Mutex
	results []ddc.Result
	queried []string
	panics  bool

	calls   atomic.Int32
	block   chan struct{}
	entered chan struct{}
}

func (s *scriptedInputs) QueryInput(_ context.Context, d platform.Display) ddc.Result {
	if s.calls.Add(1) == 1 && s.entered != nil {
		close(s.entered)
	}
	if s.block != nil {
		<-s.block
	}
	if s.panics {
		panic("driver exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queried = append(s.queried, d.ID)
	if len(s.results) == 0 {
		return ddc.Unsupported()
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r
}

func (s *scriptedInputs) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queried)
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

type fakePlacer struct {
	mu       sync.Mutex
	enabled  []string
	disabled int
}

func (p *fakePlacer) Enable(target platform.Display) (*placement.AutoMove, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = append(p.enabled, target.ID)
	return nil, nil
}

func (p *fakePlacer) Disable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disabled++
}

type fakeAppWindow struct {
	moved []string
}

func (w *fakeAppWindow) MoveTo(d platform.Display) error {
	w.moved = append(w.moved, d.ID)
	return nil
}

type countingInvoker struct {
	runs atomic.Int32
}

func (c *countingInvoker) Run(fn func()) {
	c.runs.Add(1)
	fn()
}

var testDisplays = []platform.Display{
	{ID: "DP-1", Name: "DELL U2720Q", Primary: true, Bounds: platform.Rect{Width: 1920, Height: 1080}},
	{ID: "HDMI-1", Name: "LG TV", Bounds: platform.Rect{X: 1920, Width: 1920, Height: 1080}},
}

type harness struct {
	orch   *Orchestrator
	audio  *fakeAudio
	inputs *scriptedInputs
	placer *fakePlacer
	events chan Event
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		audio:  &fakeAudio{},
		inputs: &scriptedInputs{},
		placer: &fakePlacer{},
		events: make(chan Event, 16),
	}
	a := DefaultProfileA()
	a.AudioDevice = "Speakers"
	b := DefaultProfileB()
	b.AudioDevice = "Headphones"
	opts := Options{
		ProfileA:  a,
		ProfileB:  b,
		Audio:     h.audio,
		Inputs:    h.inputs,
		Topology:  fakeTopo{displays: testDisplays},
		Placement: h.placer,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&opts)
	}
	o, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	o.Subscribe(func(ev Event) { h.events <- ev })
	h.orch = o
	return h
}

func (h *harness) script(results ...ddc.Result) {
	h.inputs.mu.Lock()
	h.inputs.results = append(h.inputs.results, results...)
	h.inputs.mu.Unlock()
}

func (h *harness) nextEvent(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-h.events:
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for mode change event")
		return Event{}
	}
}

func (h *harness) noEvent(t *testing.T) {
	t.Helper()
	select {
	case ev := <-h.events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("New() expected error for missing collaborators")
	}
}

func TestNewRejectsUnknownLossAction(t *testing.T) {
	_, err := New(Options{
		Audio: &fakeAudio{}, Inputs: &scriptedInputs{}, Topology: fakeTopo{}, Placement: &fakePlacer{},
		LossAction: "explode",
	})
	if err == nil {
		t.Fatalf("New() expected error for unknown loss action")
	}
}

func TestHDMITriggerSwitchesToB(t *testing.T) {
	h := newHarness(t, nil)
	h.script(ddc.Value(17, 18))

	h.orch.PollOnce(context.Background())

	ev := h.nextEvent(t)
	if ev.Persona != PersonaB || ev.Previous != PersonaA || ev.Reason != ReasonTrigger || ev.ID == "" {
		t.Fatalf("event = %+v", ev)
	}
	if got := h.orch.Persona(); got != PersonaB {
		t.Fatalf("persona = %v, want b", got)
	}
	if calls := h.audio.Calls(); len(calls) != 1 || calls[0] != "Headphones" {
		t.Fatalf("audio calls = %v", calls)
	}
	if len(h.placer.enabled) != 1 || h.placer.enabled[0] != "HDMI-1" {
		t.Fatalf("placement enabled = %v, want [HDMI-1]", h.placer.enabled)
	}
	if st := h.orch.State(); st.LastSwitch.IsZero() || st.Failures != 0 {
		t.Fatalf("state = %+v", st)
	}
}

func TestTwoUnreachablePollsRecoverToB(t *testing.T) {
	h := newHarness(t, nil)
	h.script(ddc.Unreachable(ddc.ErrNoReply), ddc.Unreachable(ddc.ErrNoReply))

	h.orch.PollOnce(context.Background())
	if st := h.orch.State(); st.Persona != PersonaA || st.Failures != 1 {
		t.Fatalf("after first failure state = %+v", st)
	}
	h.noEvent(t)

	h.orch.PollOnce(context.Background())
	ev := h.nextEvent(t)
	if ev.Persona != PersonaB || ev.Reason != ReasonRecovery {
		t.Fatalf("event = %+v", ev)
	}
	if st := h.orch.State(); st.Failures != 0 {
		t.Fatalf("failures = %d, want reset to 0", st.Failures)
	}
}

func TestUnreachableInBDoesNotRecover(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Initial = PersonaB })
	h.script(ddc.Unreachable(nil), ddc.Unreachable(nil), ddc.Unreachable(nil))

	for i := 0; i < 3; i++ {
		h.orch.PollOnce(context.Background())
	}
	h.noEvent(t)
	// The counter resets at the threshold even though B takes no action.
	if st := h.orch.State(); st.Persona != PersonaB || st.Failures != 1 {
		t.Fatalf("state = %+v", st)
	}
}

func TestSwitchResetsFailures(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Initial = PersonaB })
	h.script(ddc.Unreachable(nil), ddc.Unreachable(nil), ddc.Unreachable(nil))

	h.orch.PollOnce(context.Background())
	h.orch.PollOnce(context.Background())
	if err := h.orch.SwitchTo(context.Background(), PersonaA); err != nil {
		t.Fatalf("SwitchTo() error = %v", err)
	}
	h.nextEvent(t)

	// One failure in A is below the threshold.
	h.orch.PollOnce(context.Background())
	h.noEvent(t)
	if st := h.orch.State(); st.Persona != PersonaA || st.Failures != 1 {
		t.Fatalf("state = %+v", st)
	}

	h2 := newHarness(t, nil)
	h2.script(ddc.Unreachable(nil), ddc.Unreachable(nil))
	h2.orch.PollOnce(context.Background())
	h2.orch.Toggle(context.Background())
	h2.orch.Toggle(context.Background())
	h2.nextEvent(t)
	h2.nextEvent(t)
	if st := h2.orch.State(); st.Failures != 0 {
		t.Fatalf("failures after switch = %d, want 0", st.Failures)
	}
	h2.orch.PollOnce(context.Background())
	h2.noEvent(t)
	if st := h2.orch.State(); st.Persona != PersonaA || st.Failures != 1 {
		t.Fatalf("state = %+v", st)
	}
}

func TestRecoveryDoNothingResetsCounter(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.LossAction = RecoverDoNothing })
	h.script(ddc.Unreachable(nil), ddc.Unreachable(nil))

	h.orch.PollOnce(context.Background())
	h.orch.PollOnce(context.Background())
	h.noEvent(t)
	if st := h.orch.State(); st.Persona != PersonaA || st.Failures != 0 {
		t.Fatalf("state = %+v", st)
	}
}

func TestUnsupportedResetsFailures(t *testing.T) {
	h := newHarness(t, nil)
	h.script(ddc.Unreachable(nil), ddc.Unsupported(), ddc.Unreachable(nil))

	for i := 0; i < 3; i++ {
		h.orch.PollOnce(context.Background())
	}
	h.noEvent(t)
	if st := h.orch.State(); st.Persona != PersonaA || st.Failures != 1 {
		t.Fatalf("state = %+v", st)
	}
}

func TestValueResetsFailures(t *testing.T) {
	h := newHarness(t, nil)
	h.script(ddc.Unreachable(nil), ddc.Value(15, 27), ddc.Unreachable(nil))

	for i := 0; i < 3; i++ {
		h.orch.PollOnce(context.Background())
	}
	h.noEvent(t)
	if st := h.orch.State(); st.Failures != 1 {
		t.Fatalf("failures = %d, want 1", st.Failures)
	}
}

func TestUnknownCodeChangesNothing(t *testing.T) {
	h := newHarness(t, nil)
	h.script(ddc.Value(99, 0))
	h.orch.PollOnce(context.Background())
	h.noEvent(t)
}

func TestOverlappingTriggersPreferB(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.ProfileA.Triggers = []uint32{15, 17}
	})
	h.script(ddc.Value(17, 0))
	h.orch.PollOnce(context.Background())
	if ev := h.nextEvent(t); ev.Persona != PersonaB {
		t.Fatalf("event = %+v, want persona b", ev)
	}

	// From B, a shared code keeps B rather than bouncing back to A.
	h.script(ddc.Value(17, 0))
	h.orch.PollOnce(context.Background())
	h.noEvent(t)
}

func TestSwitchToIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.orch.SwitchTo(context.Background(), PersonaA); err != nil {
		t.Fatalf("SwitchTo() error = %v", err)
	}
	h.noEvent(t)
	if calls := h.audio.Calls(); len(calls) != 0 {
		t.Fatalf("audio switched on no-op: %v", calls)
	}

	if err := h.orch.SwitchTo(context.Background(), PersonaB); err != nil {
		t.Fatalf("SwitchTo() error = %v", err)
	}
	h.nextEvent(t)
	if err := h.orch.SwitchTo(context.Background(), PersonaB); err != nil {
		t.Fatalf("SwitchTo() error = %v", err)
	}
	h.noEvent(t)
}

func TestSwitchToRejectsInvalidPersona(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.orch.SwitchTo(context.Background(), Persona(7)); err == nil {
		t.Fatalf("SwitchTo(7) expected error")
	}
}

func TestAudioFailureDoesNotBlockSwitch(t *testing.T) {
	h := newHarness(t, nil)
	h.audio.err = errors.New("pactl: connection refused")

	h.orch.Toggle(context.Background())
	if ev := h.nextEvent(t); ev.Persona != PersonaB {
		t.Fatalf("event = %+v", ev)
	}
	if len(h.placer.enabled) != 1 {
		t.Fatalf("placement not configured after audio failure")
	}
}

func TestWindowTargetNoneDisablesAutoMove(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Initial = PersonaB })
	h.orch.Toggle(context.Background())
	h.nextEvent(t)
	if h.placer.disabled != 1 || len(h.placer.enabled) != 0 {
		t.Fatalf("placer enabled=%v disabled=%d, want disabled once", h.placer.enabled, h.placer.disabled)
	}
}

func TestQueuedToggleIsDeterministic(t *testing.T) {
	h := newHarness(t, nil)
	h.audio.block = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.orch.Toggle(context.Background())
	}()
	// Give the first toggle time to take the switch lock.
	time.Sleep(20 * time.Millisecond)
	go func() {
		defer wg.Done()
		h.orch.Toggle(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)
	close(h.audio.block)
	wg.Wait()

	first, second := h.nextEvent(t), h.nextEvent(t)
	if first.Persona != PersonaB || second.Persona != PersonaA || second.Previous != PersonaB {
		t.Fatalf("events = %+v, %+v; want a->b then b->a", first, second)
	}
	if got := h.orch.Persona(); got != PersonaA {
		t.Fatalf("persona = %v, want a", got)
	}
}

func TestSubscriberMayReenter(t *testing.T) {
	h := newHarness(t, nil)
	var once sync.Once
	h.orch.Subscribe(func(ev Event) {
		once.Do(func() { h.orch.Toggle(context.Background()) })
	})

	done := make(chan struct{})
	go func() {
		h.orch.Toggle(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("re-entrant toggle deadlocked")
	}

	first, second := h.nextEvent(t), h.nextEvent(t)
	if first.Persona != PersonaB || second.Persona != PersonaA {
		t.Fatalf("events out of order: %+v, %+v", first, second)
	}
}

func TestUnsubscribe(t *testing.T) {
	h := newHarness(t, nil)
	var count atomic.Int32
	unsubscribe := h.orch.Subscribe(func(Event) { count.Add(1) })
	h.orch.Toggle(context.Background())
	unsubscribe()
	unsubscribe()
	h.orch.Toggle(context.Background())
	if got := count.Load(); got != 1 {
		t.Fatalf("subscriber called %d times, want 1", got)
	}
}

func TestWatchedMonitorMatchesSubstring(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.MonitorID = "lg" })
	h.orch.PollOnce(context.Background())
	if len(h.inputs.queried) != 1 || h.inputs.queried[0] != "HDMI-1" {
		t.Fatalf("queried = %v, want [HDMI-1]", h.inputs.queried)
	}

	h2 := newHarness(t, func(o *Options) { o.MonitorID = "missing" })
	h2.orch.PollOnce(context.Background())
	if len(h2.inputs.queried) != 1 || h2.inputs.queried[0] != "DP-1" {
		t.Fatalf("queried = %v, want primary fallback [DP-1]", h2.inputs.queried)
	}
}

func TestAppWindowMovedThroughInvoker(t *testing.T) {
	win := &fakeAppWindow{}
	inv := &countingInvoker{}
	h := newHarness(t, func(o *Options) {
		o.ProfileB.AppWindowMonitor = "primary"
		o.AppWindow = win
		o.Invoker = inv
	})
	h.orch.Toggle(context.Background())
	h.nextEvent(t)
	if inv.runs.Load() != 1 || len(win.moved) != 1 || win.moved[0] != "DP-1" {
		t.Fatalf("invoker runs=%d moved=%v", inv.runs.Load(), win.moved)
	}

	// Profile A has no app window target.
	h.orch.Toggle(context.Background())
	h.nextEvent(t)
	if inv.runs.Load() != 1 {
		t.Fatalf("app window moved without a target")
	}
}

func TestPollPanicIsRecovered(t *testing.T) {
	h := newHarness(t, nil)
	h.inputs.panics = true
	h.orch.tick(context.Background())

	h.inputs.panics = false
	h.script(ddc.Value(17, 0))
	h.orch.PollOnce(context.Background())
	if ev := h.nextEvent(t); ev.Persona != PersonaB {
		t.Fatalf("event = %+v", ev)
	}
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.AutoDetect = true
		o.InitialDelay = time.Millisecond
		o.PollInterval = time.Millisecond
	})
	h.orch.Start()
	if !h.orch.Running() {
		t.Fatalf("Running() = false after Start")
	}

	deadline := time.Now().Add(time.Second)
	for h.inputs.Queries() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("poller did not tick")
		}
		time.Sleep(time.Millisecond)
	}

	h.orch.Stop()
	if h.orch.Running() {
		t.Fatalf("Running() = true after Stop")
	}
	n := h.inputs.Queries()
	time.Sleep(10 * time.Millisecond)
	if got := h.inputs.Queries(); got != n {
		t.Fatalf("poll ran after Stop: %d -> %d", n, got)
	}
	h.orch.Close()
}

func TestStartWithoutAutoDetect(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.Start()
	if h.orch.Running() {
		t.Fatalf("poller started with auto-detect off")
	}
}

func TestApplyReenablesActivePersonaPlacement(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Initial = PersonaB })
	h.orch.Apply(context.Background())

	h.placer.mu.Lock()
	enabled := append([]string(nil), h.placer.enabled...)
	h.placer.mu.Unlock()
	if len(enabled) != 1 || enabled[0] != "HDMI-1" {
		t.Fatalf("expected auto-move enabled on HDMI-1, got %v", enabled)
	}
	if len(h.audio.Calls()) != 0 {
		t.Fatalf("Apply should not touch audio")
	}
	select {
	case ev := <-h.events:
		t.Fatalf("Apply should not emit events, got %+v", ev)
	default:
	}
}

func TestSubscribersCalledInOrder(t *testing.T) {
	h := newHarness(t, nil)
	var mu sync.Mutex
	var order []int
	for i := 0; i < 8; i++ {
		h.orch.Subscribe(func(Event) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	h.orch.Toggle(context.Background())
	h.nextEvent(t)

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("delivery order = %v", order)
		}
	}
	if len(order) != 8 {
		t.Fatalf("delivered to %d subscribers, want 8", len(order))
	}
}

func TestStopDoesNotCancelInFlightSwitch(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.AutoDetect = true
		o.InitialDelay = time.Millisecond
		o.PollInterval = time.Hour
	})
	h.audio.block = make(chan struct{})
	h.audio.entered = make(chan struct{}, 1)
	h.script(ddc.Value(17, 0))

	h.orch.Start()
	select {
	case <-h.audio.entered:
	case <-time.After(time.Second):
		t.Fatalf("poll did not start a switch")
	}

	stopped := make(chan struct{})
	go func() {
		h.orch.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatalf("Stop returned before the in-flight switch finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(h.audio.block)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("Stop did not return")
	}

	h.audio.mu.Lock()
	errs := append([]error(nil), h.audio.ctxErrs...)
	h.audio.mu.Unlock()
	if len(errs) != 1 || errs[0] != nil {
		t.Fatalf("audio saw context errors %v, want [nil]", errs)
	}
	if ev := h.nextEvent(t); ev.Persona != PersonaB {
		t.Fatalf("event = %+v", ev)
	}
}

// A hung input query stalls the poller: no further tick runs until it
// returns, and manual switches queue behind it.
func TestHungQueryBlocksNextTick(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.AutoDetect = true
		o.InitialDelay = time.Millisecond
		o.PollInterval = time.Millisecond
	})
	h.inputs.block = make(chan struct{})
	h.inputs.entered = make(chan struct{})

	h.orch.Start()
	defer h.orch.Close()
	select {
	case <-h.inputs.entered:
	case <-time.After(time.Second):
		t.Fatalf("poller did not query")
	}

	toggled := make(chan Persona, 1)
	go func() { toggled <- h.orch.Toggle(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	if got := h.inputs.calls.Load(); got != 1 {
		t.Fatalf("queries while hung = %d, want 1", got)
	}
	select {
	case p := <-toggled:
		t.Fatalf("toggle to %v ran during a hung poll", p)
	default:
	}

	close(h.inputs.block)
	select {
	case p := <-toggled:
		if p != PersonaB {
			t.Fatalf("toggle target = %v, want b", p)
		}
	case <-time.After(time.Second):
		t.Fatalf("queued toggle never ran")
	}
	if ev := h.nextEvent(t); ev.Persona != PersonaB || ev.Reason != ReasonManual {
		t.Fatalf("event = %+v", ev)
	}
}
