package daemon

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/1broseidon/screenbridge/internal/platform"
)

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// TopologyReconciler periodically checks for display changes (hotplug,
// resolution, primary swap) and re-applies window placement when they occur.
type TopologyReconciler struct {
	interval time.Duration
	topo     platform.Topology
	onChange func()
	logger   *slog.Logger

	last string
}

// NewTopologyReconciler creates a reconciler that calls onChange whenever the
// display layout differs from the previous pass.
func NewTopologyReconciler(cfg ReconcilerConfig, topo platform.Topology, onChange func()) *TopologyReconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TopologyReconciler{
		interval: interval,
		topo:     topo,
		onChange: onChange,
		logger:   logger.With("component", "reconciler"),
	}
}

// Run starts the reconciliation loop. Blocks until stop is closed.
func (r *TopologyReconciler) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.reconcile()
	r.logger.Debug("reconciler started", "interval", r.interval)

	for {
		select {
		case <-stop:
			r.logger.Debug("reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile()
		}
	}
}

// reconcile performs a single reconciliation pass and reports whether the
// layout changed.
func (r *TopologyReconciler) reconcile() (changed bool) {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
			changed = false
		}
	}()

	displays, err := r.topo.Displays()
	if err != nil {
		r.logger.Warn("reconciler: failed to enumerate displays", "error", err)
		return false
	}

	fp := fingerprint(displays)
	if fp == r.last {
		return false
	}
	first := r.last == ""
	r.last = fp
	if first {
		return false
	}

	r.logger.Info("display layout changed", "displays", len(displays))
	if r.onChange != nil {
		r.onChange()
	}
	return true
}

// fingerprint is a stable summary of the fields placement depends on.
func fingerprint(ds []platform.Display) string {
	parts := make([]string, 0, len(ds))
	for _, d := range ds {
		var b strings.Builder
		b.WriteString(d.ID)
		if d.Primary {
			b.WriteString("*")
		}
		for _, r := range []platform.Rect{d.Bounds, d.WorkArea} {
			b.WriteString("|")
			b.WriteString(rectKey(r))
		}
		parts = append(parts, b.String())
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

func rectKey(r platform.Rect) string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}
