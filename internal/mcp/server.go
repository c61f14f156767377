// Package mcp exposes the running daemon as Model Context Protocol tools.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/screenbridge/internal/ipc"
)

const (
	ServerName    = "screenbridge"
	ServerVersion = "0.1.0"
)

// Daemon is the subset of the IPC client the tools call.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	Toggle() (*ipc.PersonaData, error)
	Switch(persona string) (*ipc.PersonaData, error)
	GetMonitors() (*ipc.MonitorsData, error)
	QueryInput(monitor string) (*ipc.VCPData, error)
	GetVCP(monitor string, code uint8) (*ipc.VCPData, error)
	SetVCP(monitor string, code uint8, value uint16) error
	ListWindows() (*ipc.WindowsData, error)
	MoveWindow(id uint64, monitor string, activate bool) error
	Reload() error
}

var _ Daemon = (*ipc.Client)(nil)

// Server is the MCP server for screenbridge.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
	logger    *slog.Logger
}

// NewServer creates an MCP server that forwards tool calls to daemon.
func NewServer(daemon Daemon, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		daemon: daemon,
		logger: logger,
	}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report the active persona, the consecutive input-read failure count, and whether windows are being auto-moved to the secondary display.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "switch_persona",
		Description: "Activate persona a or b. Sets the default audio output and enables or disables window auto-move. Switching to the active persona does nothing.",
	}, s.handleSwitchPersona)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "toggle_persona",
		Description: "Switch to whichever persona is not active.",
	}, s.handleTogglePersona)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_monitors",
		Description: "List connected displays with their IDs, bounds and primary flag.",
	}, s.handleListMonitors)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "query_input",
		Description: "Read the monitor's current input source (VCP 0x60) over DDC/CI.",
	}, s.handleQueryInput)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_vcp",
		Description: "Read any VCP feature from a monitor over DDC/CI. The result kind is value, unsupported or unreachable.",
	}, s.handleGetVCP)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_vcp",
		Description: "Write a VCP feature value to a monitor over DDC/CI.",
	}, s.handleSetVCP)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List visible top-level windows with their IDs, owning process and geometry.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "move_window",
		Description: "Center a window on the given monitor, shrinking it to fit inside the safe margin. With activate, the window is restored first, re-maximized if it was maximized, and focused.",
	}, s.handleMoveWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "reload_config",
		Description: "Ask the daemon to re-read its configuration file. The active persona is kept.",
	}, s.handleReloadConfig)
}
