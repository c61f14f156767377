// Package daemon wires the persona orchestrator to the platform backend,
// DDC/CI, audio, IPC and hotkeys.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/1broseidon/screenbridge/internal/audio"
	"github.com/1broseidon/screenbridge/internal/config"
	"github.com/1broseidon/screenbridge/internal/ddc"
	"github.com/1broseidon/screenbridge/internal/hotkeys"
	"github.com/1broseidon/screenbridge/internal/ipc"
	"github.com/1broseidon/screenbridge/internal/logging"
	"github.com/1broseidon/screenbridge/internal/mode"
	"github.com/1broseidon/screenbridge/internal/placement"
	"github.com/1broseidon/screenbridge/internal/platform"
)

// Options configures a Daemon. Nil dependencies select the system ones.
type Options struct {
	ConfigPath string
	Config     *config.Config // preloaded; nil loads ConfigPath
	Logger     *logging.Logger

	Backend    platform.Native
	Transport  ddc.Transport
	Audio      mode.AudioEndpoint
	SocketPath string
	// PIDPath defaults to screenbridge.pid next to the socket.
	PIDPath string

	// TopologyInterval is how often display changes are checked.
	TopologyInterval time.Duration
}

// Daemon is a running screenbridge instance.
type Daemon struct {
	path      string
	log       *logging.Logger
	logger    *slog.Logger
	backend   platform.Native
	ddc       *ddc.Client
	audio     mode.AudioEndpoint
	hotkeys   *hotkeys.Handler
	server    *ipc.Server
	pidPath   string
	reconcile *TopologyReconciler
	persist   *PersonaSynchronizer
	started   time.Time

	serving bool

	// reloadMu is held exclusively by Reload and shared by persona
	// switches, so no switch lands on an orchestrator being replaced.
	reloadMu sync.RWMutex

	mu     sync.RWMutex
	cfg    *config.Config
	engine *placement.Engine
	orch   *mode.Orchestrator
	unsub  func()

	stopOnce sync.Once
	stop     chan struct{}
	bg       sync.WaitGroup
}

// New builds a daemon from opts without starting anything.
func New(opts Options) (*Daemon, error) {
	if opts.Logger == nil {
		return nil, errors.New("daemon: logger is required")
	}
	logger := opts.Logger.Logger

	cfg := opts.Config
	if cfg == nil {
		res, err := config.LoadFromPath(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = res.Config
	}

	backend := opts.Backend
	if backend == nil {
		b, err := platform.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open display backend: %w", err)
		}
		backend = b
	}

	transport := opts.Transport
	if transport == nil {
		transport = ddc.NewSystemTransport(cfg.DDCBuses)
	}

	endpoint := opts.Audio
	if endpoint == nil {
		if p := audio.NewPactl(); p.Available() {
			endpoint = p
		} else {
			logger.Warn("no audio backend found; playback device switching disabled")
			endpoint = audio.Noop{Logger: logger}
		}
	}

	d := &Daemon{
		path:    opts.ConfigPath,
		log:     opts.Logger,
		logger:  logger,
		backend: backend,
		ddc:     ddc.NewClient(transport, logger.With("component", "ddc")),
		audio:   endpoint,
		hotkeys: hotkeys.NewHandler(backend, logger),
		started: time.Now(),
		cfg:     cfg,
		stop:    make(chan struct{}),
	}
	d.persist = NewPersonaSynchronizer(opts.ConfigPath, logger)
	d.reconcile = NewTopologyReconciler(ReconcilerConfig{
		Interval: opts.TopologyInterval,
		Logger:   logger,
	}, backend, d.reapply)

	initial := mode.PersonaA
	if cfg.LastPersona != "" {
		if p, err := mode.ParsePersona(cfg.LastPersona); err == nil {
			initial = p
		}
	}
	engine, orch, err := d.build(cfg, initial)
	if err != nil {
		return nil, err
	}
	d.install(engine, orch)

	if opts.SocketPath != "" {
		d.server = ipc.NewServerAt(opts.SocketPath, d, logger)
	} else {
		srv, err := ipc.NewServer(d, logger)
		if err != nil {
			return nil, err
		}
		d.server = srv
	}
	d.pidPath = opts.PIDPath
	if d.pidPath == "" {
		d.pidPath = filepath.Join(filepath.Dir(d.server.SocketPath()), "screenbridge.pid")
	}
	return d, nil
}

// build creates the placement engine and orchestrator for cfg.
func (d *Daemon) build(cfg *config.Config, initial mode.Persona) (*placement.Engine, *mode.Orchestrator, error) {
	margin := cfg.SafeMargin
	engine, err := placement.New(d.backend, d.backend, placement.Options{
		Margin:            &margin,
		ExcludedProcesses: append(slices.Clone(placement.DefaultExcludedProcesses), cfg.ExcludedProcesses...),
		ExcludedClasses:   append(slices.Clone(placement.DefaultExcludedClasses), cfg.ExcludedClasses...),
		Logger:            d.logger.With("component", "placement"),
	})
	if err != nil {
		return nil, nil, err
	}

	loss, err := mode.ParseRecoveryAction(cfg.DDCLossAction)
	if err != nil {
		return nil, nil, err
	}

	var app mode.AppWindow
	if id, ok := d.backend.OwnWindow(); ok {
		app = mode.HostWindow{WS: d.backend, ID: id}
	}

	orch, err := mode.New(mode.Options{
		ProfileA:     profileFromConfig(cfg.PersonaA),
		ProfileB:     profileFromConfig(cfg.PersonaB),
		AutoDetect:   cfg.DDCAutoDetect,
		PollInterval: cfg.PollInterval,
		LossAction:   loss,
		MonitorID:    cfg.DDCMonitor,
		Initial:      initial,
		Audio:        d.audio,
		Inputs:       d.ddc,
		Topology:     d.backend,
		Placement:    engine,
		AppWindow:    app,
		Logger:       d.logger.With("component", "mode"),
	})
	if err != nil {
		return nil, nil, err
	}
	return engine, orch, nil
}

func profileFromConfig(p config.PersonaConfig) mode.Profile {
	return mode.Profile{
		Name:             p.Name,
		Triggers:         slices.Clone(p.Triggers),
		AudioDevice:      p.AudioDevice,
		WindowMonitor:    p.WindowMonitor,
		AppWindowMonitor: p.AppWindowMonitor,
	}
}

// install makes engine and orch current. The caller holds no lock.
func (d *Daemon) install(engine *placement.Engine, orch *mode.Orchestrator) {
	unsub := orch.Subscribe(d.persist.HandleSwitch)
	d.mu.Lock()
	d.engine, d.orch, d.unsub = engine, orch, unsub
	d.mu.Unlock()
}

func (d *Daemon) current() (*config.Config, *placement.Engine, *mode.Orchestrator) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg, d.engine, d.orch
}

// Start applies the initial persona and starts IPC, polling, hotkeys and the
// background watchers.
func (d *Daemon) Start() error {
	if err := d.server.Start(); err != nil {
		return err
	}
	d.serving = true
	if err := os.WriteFile(d.pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o600); err != nil {
		d.logger.Warn("failed to write pid file", "path", d.pidPath, "error", err)
	}

	cfg, _, orch := d.current()
	orch.Apply(context.Background())
	orch.Start()
	d.bindHotkeys(cfg.ToggleHotkey)

	d.goBackground(func(stop <-chan struct{}) { d.reconcile.Run(stop) })
	d.goBackground(d.handleHangup)
	if cfg.WatchConfig && d.path != "" {
		d.goBackground(func(stop <-chan struct{}) {
			watchConfig(stop, d.path, d.logger, func() { _ = d.Reload() })
		})
	}

	d.logger.Info("screenbridge started",
		"persona", orch.Persona().String(),
		"auto_detect", cfg.DDCAutoDetect,
		"poll_interval", cfg.PollInterval,
		"config", d.path)
	return nil
}

func (d *Daemon) goBackground(fn func(stop <-chan struct{})) {
	d.bg.Add(1)
	go func() {
		defer d.bg.Done()
		fn(d.stop)
	}()
}

func (d *Daemon) bindHotkeys(seq string) {
	if !d.hotkeys.Available() {
		if seq != "" {
			d.logger.Warn("global hotkeys unavailable on this backend", "toggle_hotkey", seq)
		}
		return
	}
	if err := d.hotkeys.RegisterToggle(seq, d.toggleFromHotkey); err != nil {
		d.logger.Warn("failed to register toggle hotkey", "keys", seq, "error", err)
	}
}

func (d *Daemon) toggleFromHotkey() {
	d.reloadMu.RLock()
	defer d.reloadMu.RUnlock()
	_, _, orch := d.current()
	p := orch.Toggle(context.Background())
	d.logger.Info("persona toggled", "persona", p.String())
}

// reapply re-resolves the active persona's placement after a display change.
func (d *Daemon) reapply() {
	_, _, orch := d.current()
	orch.Apply(context.Background())
}

func (d *Daemon) handleHangup(stop <-chan struct{}) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-stop:
			return
		case <-hup:
			d.logger.Info("received SIGHUP, reloading config")
			_ = d.Reload()
		}
	}
}

// Run blocks in the backend event loop until ctx is done.
func (d *Daemon) Run(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
		case <-d.stop:
		}
		d.backend.QuitEventLoop()
	}()
	d.backend.EventLoop()
}

// Reload re-reads the config file. The active persona is carried over; a
// reload that changes nothing but last_persona is ignored. Concurrent
// reloads run one at a time.
func (d *Daemon) Reload() error {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()

	res, err := config.LoadFromPath(d.path)
	if err != nil {
		d.logger.Error("config reload failed; keeping current config", "error", err)
		return err
	}

	cfg, _, orch := d.current()
	if cfg.EquivalentForReload(res.Config) {
		d.logger.Debug("config unchanged")
		return nil
	}

	// Stopping the poller first means the persona read below is final.
	orch.Stop()
	persona := orch.Persona()
	engine, next, err := d.build(res.Config, persona)
	if err != nil {
		d.logger.Error("config reload failed; keeping current config", "error", err)
		orch.Start()
		return err
	}

	d.mu.Lock()
	unsub := d.unsub
	d.cfg = res.Config
	d.mu.Unlock()
	unsub()
	orch.Close()

	d.install(engine, next)
	d.log.SetLevel(res.Config.Logging.Level)
	next.Apply(context.Background())
	next.Start()

	if res.Config.ToggleHotkey != cfg.ToggleHotkey {
		d.hotkeys.UnregisterAll()
		d.bindHotkeys(res.Config.ToggleHotkey)
	}

	d.logger.Info("config reloaded", "persona", persona.String(), "files", res.Files)
	return nil
}

// Close stops everything Start started and releases the backend.
func (d *Daemon) Close() {
	d.stopOnce.Do(func() {
		close(d.stop)
		if d.serving {
			d.server.Stop()
			_ = os.Remove(d.pidPath)
		}
		d.bg.Wait()

		_, _, orch := d.current()
		orch.Close()
		d.hotkeys.UnregisterAll()
		d.backend.Close()
		d.logger.Info("screenbridge stopped")
	})
}
