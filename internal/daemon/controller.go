package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/1broseidon/screenbridge/internal/ddc"
	"github.com/1broseidon/screenbridge/internal/ipc"
	"github.com/1broseidon/screenbridge/internal/mode"
	"github.com/1broseidon/screenbridge/internal/platform"
)

var _ ipc.Controller = (*Daemon)(nil)

// Status implements ipc.Controller.
func (d *Daemon) Status() ipc.StatusData {
	cfg, engine, orch := d.current()
	st := orch.State()
	placement := engine.Status()

	out := ipc.StatusData{
		Persona:     st.Persona.String(),
		PersonaName: orch.Profile(st.Persona).Name,
		Failures:    st.Failures,
		AutoDetect:  cfg.DDCAutoDetect,
		Polling:     orch.Running(),
		AutoMove:    placement.Enabled,
	}
	if !st.LastSwitch.IsZero() {
		out.LastSwitch = st.LastSwitch.Format(time.RFC3339)
	}
	if placement.Enabled {
		out.AutoMoveTarget = placement.Target.ID
	}
	return out
}

// Toggle implements ipc.Controller.
func (d *Daemon) Toggle(ctx context.Context) (ipc.PersonaData, error) {
	d.reloadMu.RLock()
	defer d.reloadMu.RUnlock()
	_, _, orch := d.current()
	p := orch.Toggle(ctx)
	return ipc.PersonaData{Persona: p.String(), Name: orch.Profile(p).Name}, nil
}

// Switch implements ipc.Controller.
func (d *Daemon) Switch(ctx context.Context, persona string) (ipc.PersonaData, error) {
	p, err := mode.ParsePersona(persona)
	if err != nil {
		return ipc.PersonaData{}, err
	}
	d.reloadMu.RLock()
	defer d.reloadMu.RUnlock()
	_, _, orch := d.current()
	if err := orch.SwitchTo(ctx, p); err != nil {
		return ipc.PersonaData{}, err
	}
	return ipc.PersonaData{Persona: p.String(), Name: orch.Profile(p).Name}, nil
}

// Monitors implements ipc.Controller.
func (d *Daemon) Monitors() ([]ipc.MonitorInfo, error) {
	displays, err := d.backend.Displays()
	if err != nil {
		return nil, err
	}
	out := make([]ipc.MonitorInfo, len(displays))
	for i, disp := range displays {
		out[i] = ipc.MonitorInfo{
			ID:      disp.ID,
			Name:    disp.Name,
			X:       disp.Bounds.X,
			Y:       disp.Bounds.Y,
			Width:   disp.Bounds.Width,
			Height:  disp.Bounds.Height,
			Primary: disp.Primary,
			Scale:   disp.Scale,
		}
	}
	return out, nil
}

// ReadVCP implements ipc.Controller. An empty monitor reads the watched one.
func (d *Daemon) ReadVCP(ctx context.Context, monitor string, code uint8) (ipc.VCPData, error) {
	disp, err := d.display(monitor)
	if err != nil {
		return ipc.VCPData{}, err
	}
	res := d.ddc.QueryFeature(ctx, disp, code)
	out := ipc.VCPData{Monitor: disp.ID, Code: code, Kind: res.Kind.String()}
	switch res.Kind {
	case ddc.KindValue:
		out.Value, out.Max = res.Value, res.Max
		if code == ddc.CodeInputSource {
			out.Input = ddc.InputName(res.Value).String()
		}
	case ddc.KindUnreachable:
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
	}
	return out, nil
}

// WriteVCP implements ipc.Controller.
func (d *Daemon) WriteVCP(ctx context.Context, monitor string, code uint8, value uint16) error {
	disp, err := d.display(monitor)
	if err != nil {
		return err
	}
	return d.ddc.SetFeature(ctx, disp, code, value)
}

// Windows implements ipc.Controller.
func (d *Daemon) Windows() ([]ipc.WindowInfo, error) {
	_, engine, _ := d.current()
	windows, err := engine.ListWindows()
	if err != nil {
		return nil, err
	}
	out := make([]ipc.WindowInfo, 0, len(windows))
	for _, w := range windows {
		out = append(out, ipc.WindowInfo{
			ID:      uint64(w.ID),
			PID:     w.PID,
			Process: w.Process,
			Class:   w.Class,
			Title:   w.Title,
			X:       w.Bounds.X,
			Y:       w.Bounds.Y,
			Width:   w.Bounds.Width,
			Height:  w.Bounds.Height,
			State:   w.State.String(),
		})
	}
	return out, nil
}

// MoveWindow implements ipc.Controller.
func (d *Daemon) MoveWindow(req ipc.MoveWindowPayload) error {
	disp, err := d.display(req.Monitor)
	if err != nil {
		return err
	}
	_, engine, _ := d.current()
	id := platform.WindowID(req.ID)
	if req.Activate {
		return engine.ActivateAndMoveToMonitor(id, disp)
	}
	return engine.MoveToMonitor(id, disp)
}

// display resolves a monitor argument: empty means the watched monitor, then
// selectors (primary, secondary, exact ID or name), then a name substring.
func (d *Daemon) display(monitor string) (platform.Display, error) {
	displays, err := d.backend.Displays()
	if err != nil {
		return platform.Display{}, fmt.Errorf("failed to enumerate displays: %w", err)
	}
	if monitor == "" {
		cfg, _, _ := d.current()
		if disp, ok := platform.MatchDisplay(displays, cfg.DDCMonitor); ok {
			return disp, nil
		}
		if disp, ok := platform.PrimaryOf(displays); ok {
			return disp, nil
		}
		return platform.Display{}, platform.ErrNoPrimary
	}
	if disp, ok := platform.ResolveSelector(displays, monitor); ok {
		return disp, nil
	}
	if disp, ok := platform.MatchDisplay(displays, monitor); ok {
		return disp, nil
	}
	return platform.Display{}, fmt.Errorf("no monitor matches %q", monitor)
}
