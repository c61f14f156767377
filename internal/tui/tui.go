// Package tui is an interactive dashboard for a running daemon.
package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/screenbridge/internal/ipc"
)

// Client is the daemon API the dashboard drives.
type Client interface {
	GetStatus() (*ipc.StatusData, error)
	Toggle() (*ipc.PersonaData, error)
	Switch(persona string) (*ipc.PersonaData, error)
	GetMonitors() (*ipc.MonitorsData, error)
	QueryInput(monitor string) (*ipc.VCPData, error)
	ListWindows() (*ipc.WindowsData, error)
	MoveWindow(id uint64, monitor string, activate bool) error
	Reload() error
}

var _ Client = (*ipc.Client)(nil)

// Run opens the dashboard on the controlling terminal.
func Run(client Client) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}
	p := tea.NewProgram(newModel(client), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
