// Package mode switches the rig between its two personas.
package mode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/1broseidon/screenbridge/internal/ddc"
	"github.com/1broseidon/screenbridge/internal/platform"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// FailureThreshold is the number of consecutive unreachable polls that
// counts as the monitor having switched away.
const FailureThreshold = 2

// DefaultPollInterval is used when Options.PollInterval is zero.
const DefaultPollInterval = 5 * time.Second

// Reason says what caused a persona switch.
type Reason string

const (
	ReasonManual   Reason = "manual"
	ReasonTrigger  Reason = "trigger"
	ReasonRecovery Reason = "recovery"
)

// Event is delivered to subscribers after a switch has been fully applied.
type Event struct {
	ID       string
	Persona  Persona
	Previous Persona
	Reason   Reason
	Time     time.Time
}

// State is a snapshot of the orchestrator.
type State struct {
	Persona    Persona
	Failures   int
	LastSwitch time.Time
}

// Options configures an Orchestrator. Audio, Inputs, Topology and Placement
// are required.
type Options struct {
	ProfileA Profile
	ProfileB Profile

	// AutoDetect enables input polling in Start.
	AutoDetect   bool
	PollInterval time.Duration
	// InitialDelay is the wait before the first poll; zero means one second.
	InitialDelay time.Duration
	LossAction   RecoveryAction
	// MonitorID selects the watched monitor by substring of its ID or name;
	// empty watches the primary display.
	MonitorID string
	Initial   Persona

	Audio     AudioEndpoint
	Inputs    InputReader
	Topology  platform.Topology
	Placement Placer
	AppWindow AppWindow
	Invoker   UIInvoker
	Logger    *slog.Logger
	Now       func() time.Time
}

// Orchestrator owns the current persona. Switches and polls are serialized
// by one mutex, so a toggle that arrives during a switch is evaluated
// against the post-switch persona.
type Orchestrator struct {
	profiles   [2]Profile
	autoDetect bool
	interval   time.Duration
	delay      time.Duration
	lossAction RecoveryAction
	monitorID  string

	audio     AudioEndpoint
	inputs    InputReader
	topo      platform.Topology
	placer    Placer
	appWindow AppWindow
	invoker   UIInvoker
	logger    *slog.Logger
	now       func() time.Time
	metrics   instruments

	mu         sync.Mutex
	stateMu    sync.RWMutex
	persona    Persona
	failures   int
	lastSwitch time.Time

	evMu     sync.Mutex
	pending  []Event
	draining bool
	subs     []subscriber
	nextSub  int

	pollMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New validates opts and returns an orchestrator in opts.Initial.
func New(opts Options) (*Orchestrator, error) {
	if opts.Audio == nil || opts.Inputs == nil || opts.Topology == nil || opts.Placement == nil {
		return nil, errors.New("mode: audio, inputs, topology and placement are required")
	}
	if !opts.Initial.Valid() {
		return nil, fmt.Errorf("mode: invalid initial persona %v", opts.Initial)
	}
	lossAction := opts.LossAction
	if lossAction == "" {
		lossAction = RecoverSwitchToB
	}
	if _, err := ParseRecoveryAction(string(lossAction)); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		profiles:   [2]Profile{opts.ProfileA, opts.ProfileB},
		autoDetect: opts.AutoDetect,
		interval:   opts.PollInterval,
		delay:      opts.InitialDelay,
		lossAction: lossAction,
		monitorID:  opts.MonitorID,
		audio:      opts.Audio,
		inputs:     opts.Inputs,
		topo:       opts.Topology,
		placer:     opts.Placement,
		appWindow:  opts.AppWindow,
		invoker:    opts.Invoker,
		logger:     opts.Logger,
		now:        opts.Now,
		metrics:    newInstruments(),
		persona:    opts.Initial,
	}
	if o.interval <= 0 {
		o.interval = DefaultPollInterval
	}
	if o.delay <= 0 {
		o.delay = time.Second
	}
	if o.invoker == nil {
		o.invoker = SyncInvoker{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}

	if shared := overlap(opts.ProfileA, opts.ProfileB); len(shared) > 0 {
		o.logger.Warn("trigger inputs claimed by both personas; persona B wins",
			"kind", "configuration_ambiguity", "codes", shared)
	}
	return o, nil
}

// Profile returns the profile of p.
func (o *Orchestrator) Profile(p Persona) Profile {
	return o.profiles[p]
}

// State returns a snapshot without waiting for an in-flight switch.
func (o *Orchestrator) State() State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return State{Persona: o.persona, Failures: o.failures, LastSwitch: o.lastSwitch}
}

// Persona returns the active persona.
func (o *Orchestrator) Persona() Persona {
	return o.State().Persona
}

type subscriber struct {
	id int
	fn func(Event)
}

// Subscribe registers fn for ModeChanged events and returns a func that
// unregisters it. Subscribers are called in registration order. fn may call
// back into the orchestrator.
func (o *Orchestrator) Subscribe(fn func(Event)) func() {
	o.evMu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs = append(o.subs, subscriber{id: id, fn: fn})
	o.evMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.evMu.Lock()
			o.subs = slices.DeleteFunc(o.subs, func(s subscriber) bool { return s.id == id })
			o.evMu.Unlock()
		})
	}
}

// SwitchTo activates p. It is a no-op when p is already active.
func (o *Orchestrator) SwitchTo(ctx context.Context, p Persona) error {
	if !p.Valid() {
		return fmt.Errorf("mode: invalid persona %v", p)
	}
	o.locked(func() { o.switchLocked(ctx, p, ReasonManual) })
	o.drain()
	return nil
}

// Toggle switches to the persona that is not active when the call is
// applied.
func (o *Orchestrator) Toggle(ctx context.Context) Persona {
	var target Persona
	o.locked(func() {
		target = o.Persona().Other()
		o.switchLocked(ctx, target, ReasonManual)
	})
	o.drain()
	return target
}

// PollOnce reads the watched monitor's input and reacts to it.
func (o *Orchestrator) PollOnce(ctx context.Context) {
	o.locked(func() { o.pollLocked(ctx) })
	o.drain()
}

// Apply re-enables the active persona's window auto-move, e.g. at startup
// or after a reload. It changes no state and emits no event.
func (o *Orchestrator) Apply(ctx context.Context) {
	o.locked(func() {
		displays, err := o.topo.Displays()
		if err != nil {
			o.logger.Warn("failed to enumerate displays", "kind", "transient_side_effect", "error", err)
		}
		_ = o.applyPlacement(o.profiles[o.Persona()], displays)
	})
}

// locked runs fn under the switch mutex, releasing it even if fn panics.
func (o *Orchestrator) locked(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn()
}

func (o *Orchestrator) switchLocked(ctx context.Context, p Persona, reason Reason) {
	prev := o.Persona()
	if prev == p {
		return
	}
	profile := o.profiles[p]

	ctx, span := tracer.Start(ctx, "switch persona", trace.WithAttributes(
		attribute.String("persona", p.String()),
		attribute.String("previous", prev.String()),
		attribute.String("reason", string(reason)),
	))
	defer span.End()

	o.logger.Info("switching persona", "persona", p.String(), "name", profile.Name, "reason", reason)

	if profile.AudioDevice != "" {
		ok, err := o.audio.SwitchDefaultPlaybackDevice(ctx, profile.AudioDevice)
		switch {
		case err != nil:
			span.RecordError(err)
			o.logger.Warn("audio switch failed", "kind", "transient_side_effect", "device", profile.AudioDevice, "error", err)
		case !ok:
			o.logger.Warn("no playback device matches", "kind", "transient_side_effect", "device", profile.AudioDevice)
		}
	}

	displays, err := o.topo.Displays()
	if err != nil {
		span.RecordError(err)
		o.logger.Warn("failed to enumerate displays", "kind", "transient_side_effect", "error", err)
	}

	if err := o.applyPlacement(profile, displays); err != nil {
		span.RecordError(err)
	}

	if o.appWindow != nil {
		if target, ok := platform.ResolveSelector(displays, profile.AppWindowMonitor); ok {
			o.invoker.Run(func() {
				if err := o.appWindow.MoveTo(target); err != nil {
					o.logger.Warn("failed to move app window", "kind", "transient_side_effect", "target", target.ID, "error", err)
				}
			})
		}
	}

	now := o.now()
	o.stateMu.Lock()
	o.persona = p
	o.lastSwitch = now
	o.failures = 0
	o.stateMu.Unlock()

	o.metrics.switches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("persona", p.String()),
		attribute.String("reason", string(reason)),
	))

	ev := Event{ID: uuid.New().String(), Persona: p, Previous: prev, Reason: reason, Time: now}
	span.SetAttributes(attribute.String("switch.id", ev.ID))

	o.evMu.Lock()
	o.pending = append(o.pending, ev)
	o.evMu.Unlock()
}

func (o *Orchestrator) applyPlacement(profile Profile, displays []platform.Display) error {
	target, ok := platform.ResolveSelector(displays, profile.WindowMonitor)
	if !ok {
		o.placer.Disable()
		return nil
	}
	if _, err := o.placer.Enable(target); err != nil {
		o.logger.Warn("failed to enable window auto-move", "kind", "transient_side_effect", "target", target.ID, "error", err)
		return err
	}
	return nil
}

// drain delivers queued events in order. Only one goroutine drains at a
// time; events queued by re-entrant calls are picked up by the active loop.
func (o *Orchestrator) drain() {
	o.evMu.Lock()
	if o.draining {
		o.evMu.Unlock()
		return
	}
	o.draining = true
	for len(o.pending) > 0 {
		ev := o.pending[0]
		o.pending = o.pending[1:]
		subs := slices.Clone(o.subs)
		o.evMu.Unlock()
		for _, s := range subs {
			o.deliver(s.fn, ev)
		}
		o.evMu.Lock()
	}
	o.draining = false
	o.evMu.Unlock()
}

func (o *Orchestrator) deliver(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("mode change subscriber panicked", "error", r)
		}
	}()
	fn(ev)
}

func (o *Orchestrator) watchedDisplay() (platform.Display, error) {
	displays, err := o.topo.Displays()
	if err != nil {
		return platform.Display{}, err
	}
	if o.monitorID != "" {
		if d, ok := platform.MatchDisplay(displays, o.monitorID); ok {
			return d, nil
		}
	}
	if d, ok := platform.PrimaryOf(displays); ok {
		return d, nil
	}
	return platform.Display{}, platform.ErrNoPrimary
}

func (o *Orchestrator) pollLocked(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "poll input")
	defer span.End()

	d, err := o.watchedDisplay()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no monitor to watch")
		o.logger.Warn("no monitor to watch", "error", err)
		return
	}
	span.SetAttributes(attribute.String("display", d.ID))

	res := o.inputs.QueryInput(ctx, d)
	o.metrics.polls.Add(ctx, 1, metric.WithAttributes(attribute.String("result", res.Kind.String())))

	switch res.Kind {
	case ddc.KindUnreachable:
		o.metrics.failures.Add(ctx, 1)
		o.stateMu.Lock()
		o.failures++
		failures := o.failures
		o.stateMu.Unlock()
		o.logger.Debug("monitor unreachable", "display", d.ID, "failures", failures, "error", res.Err)

		if failures < FailureThreshold {
			return
		}
		o.resetFailures()
		// Signal loss only means the other source took over while A is active.
		if o.Persona() != PersonaA {
			return
		}

		o.logger.Info("monitor signal lost", "display", d.ID, "action", o.lossAction)
		switch o.lossAction {
		case RecoverSwitchToB:
			o.switchLocked(ctx, PersonaB, ReasonRecovery)
		case RecoverSwitchToA:
			o.switchLocked(ctx, PersonaA, ReasonRecovery)
		}

	case ddc.KindValue:
		o.resetFailures()
		span.SetAttributes(attribute.Int64("input", int64(res.Value)))
		o.logger.Debug("read input", "display", d.ID, "code", res.Value, "input", ddc.InputName(res.Value).Name)

		// B is checked first so it wins codes claimed by both personas.
		switch {
		case o.profiles[PersonaB].Triggered(res.Value):
			o.switchLocked(ctx, PersonaB, ReasonTrigger)
		case o.profiles[PersonaA].Triggered(res.Value):
			o.switchLocked(ctx, PersonaA, ReasonTrigger)
		}

	case ddc.KindUnsupported:
		o.resetFailures()
		o.logger.Debug("monitor does not support input query", "display", d.ID)
	}
}

func (o *Orchestrator) resetFailures() {
	o.stateMu.Lock()
	o.failures = 0
	o.stateMu.Unlock()
}
