package mode

import (
	"context"
	"time"
)

// Start begins polling the watched monitor: first after the initial delay,
// then every poll interval. It restarts a running poller and does nothing
// when auto-detect is off.
func (o *Orchestrator) Start() {
	o.Stop()
	if !o.autoDetect {
		o.logger.Info("ddc auto-detect disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	o.pollMu.Lock()
	o.cancel = cancel
	o.done = done
	o.pollMu.Unlock()

	go o.run(ctx, done)
}

// Stop halts polling. An in-flight poll runs to completion, uncancelled,
// before Stop returns.
func (o *Orchestrator) Stop() {
	o.pollMu.Lock()
	cancel, done := o.cancel, o.done
	o.cancel, o.done = nil, nil
	o.pollMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Close stops polling and disables window auto-move.
func (o *Orchestrator) Close() {
	o.Stop()
	o.placer.Disable()
}

// Running reports whether the poller is active.
func (o *Orchestrator) Running() bool {
	o.pollMu.Lock()
	defer o.pollMu.Unlock()
	return o.cancel != nil
}

func (o *Orchestrator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	o.logger.Info("input poller started", "interval", o.interval, "monitor", o.monitorID)

	timer := time.NewTimer(o.delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("input poller stopped")
			return
		case <-timer.C:
			// Stop must not cancel a poll or switch that is already running.
			o.tick(context.WithoutCancel(ctx))
			timer.Reset(o.interval)
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context) {
	// Recover from panics so a misbehaving monitor driver cannot kill the daemon.
	defer func() {
		if err := recover(); err != nil {
			o.logger.Error("input poll panic recovered", "error", err)
		}
	}()
	o.PollOnce(ctx)
}
