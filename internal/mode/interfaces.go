package mode

import (
	"context"

	"github.com/1broseidon/screenbridge/internal/ddc"
	"github.com/1broseidon/screenbridge/internal/placement"
	"github.com/1broseidon/screenbridge/internal/platform"
)

// AudioEndpoint switches the default playback device.
type AudioEndpoint interface {
	// SwitchDefaultPlaybackDevice selects the first device whose name contains
	// substr. It reports false when nothing matched.
	SwitchDefaultPlaybackDevice(ctx context.Context, substr string) (bool, error)
}

// InputReader reads the active input of a display.
type InputReader interface {
	QueryInput(ctx context.Context, d platform.Display) ddc.Result
}

// Placer is the part of the placement engine driven by persona switches.
type Placer interface {
	Enable(target platform.Display) (*placement.AutoMove, error)
	Disable()
}

// AppWindow is the window hosting the daemon itself.
type AppWindow interface {
	MoveTo(d platform.Display) error
}

// UIInvoker runs fn on the thread that owns the application's windows.
type UIInvoker interface {
	Run(fn func())
}

// SyncInvoker runs fn on the calling goroutine.
type SyncInvoker struct{}

func (SyncInvoker) Run(fn func()) { fn() }
