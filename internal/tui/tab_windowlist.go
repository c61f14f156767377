package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/1broseidon/screenbridge/internal/ipc"
)

// windowItem implements list.Item for the window picker.
type windowItem struct {
	info ipc.WindowInfo
}

func (i windowItem) Title() string {
	return fmt.Sprintf("%s  %s", i.info.Process, i.info.Title)
}

func (i windowItem) Description() string {
	return fmt.Sprintf("0x%08x  %dx%d+%d+%d  %s", i.info.ID, i.info.Width, i.info.Height, i.info.X, i.info.Y, i.info.State)
}

func (i windowItem) FilterValue() string { return i.info.Process + " " + i.info.Title }

type windowsLoadedMsg struct {
	windows []ipc.WindowInfo
	err     error
}

// moveChoice holds the form-bound values; huh writes through the pointers.
type moveChoice struct {
	monitor  string
	activate bool
}

// WindowsTab lists windows and moves the selected one to a monitor.
type WindowsTab struct {
	client Client
	list   list.Model

	form   *huh.Form
	choice *moveChoice
	target ipc.WindowInfo

	err    string
	width  int
	height int
}

// NewWindowsTab creates the windows sub-model.
func NewWindowsTab(client Client) WindowsTab {
	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Windows"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return WindowsTab{client: client, list: l}
}

// Capturing reports whether the move form owns keyboard input.
func (w WindowsTab) Capturing() bool { return w.form != nil }

// Refresh reloads the window list from the daemon.
func (w WindowsTab) Refresh() tea.Cmd {
	c := w.client
	return func() tea.Msg {
		data, err := c.ListWindows()
		if err != nil {
			return windowsLoadedMsg{err: err}
		}
		return windowsLoadedMsg{windows: data.Windows}
	}
}

// Update handles msg. monitors are the choices offered by the move form.
func (w WindowsTab) Update(msg tea.Msg, monitors []ipc.MonitorInfo) (WindowsTab, tea.Cmd) {
	if w.form != nil {
		return w.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.height = msg.Height
		w.list.SetSize(msg.Width, msg.Height)
		return w, nil

	case windowsLoadedMsg:
		if msg.err != nil {
			w.err = msg.err.Error()
			return w, nil
		}
		w.err = ""
		items := make([]list.Item, 0, len(msg.windows))
		for _, info := range msg.windows {
			items = append(items, windowItem{info: info})
		}
		return w, w.list.SetItems(items)

	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "m":
			item, ok := w.list.SelectedItem().(windowItem)
			if !ok || len(monitors) == 0 {
				return w, nil
			}
			w.startMove(item.info, monitors)
			return w, w.form.Init()
		}
	}

	var cmd tea.Cmd
	w.list, cmd = w.list.Update(msg)
	return w, cmd
}

func (w *WindowsTab) startMove(target ipc.WindowInfo, monitors []ipc.MonitorInfo) {
	w.target = target
	w.choice = &moveChoice{monitor: monitors[0].ID}

	opts := make([]huh.Option[string], 0, len(monitors))
	for _, m := range monitors {
		label := m.ID
		if m.Name != "" && m.Name != m.ID {
			label = fmt.Sprintf("%s (%s)", m.ID, m.Name)
		}
		if m.Primary {
			label += " *"
		}
		opts = append(opts, huh.NewOption(label, m.ID))
	}

	width := w.width - 4
	if width < 40 {
		width = 40
	}
	w.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Move "+target.Title).
				Options(opts...).
				Value(&w.choice.monitor),
			huh.NewConfirm().
				Title("Activate after moving?").
				Value(&w.choice.activate),
		),
	).WithWidth(width).WithShowHelp(false)
}

func (w WindowsTab) updateForm(msg tea.Msg) (WindowsTab, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "esc" {
		w.form = nil
		return w, nil
	}

	form, cmd := w.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		w.form = f
	}

	switch w.form.State {
	case huh.StateCompleted:
		w.form = nil
		return w, w.moveCmd(w.target.ID, w.choice.monitor, w.choice.activate)
	case huh.StateAborted:
		w.form = nil
		return w, nil
	}
	return w, cmd
}

func (w WindowsTab) moveCmd(id uint64, monitor string, activate bool) tea.Cmd {
	c := w.client
	return runAction("move", func() (string, error) {
		if err := c.MoveWindow(id, monitor, activate); err != nil {
			return "", err
		}
		return fmt.Sprintf("moved 0x%08x to %s", id, monitor), nil
	})
}

// View implements tea.Model.
func (w WindowsTab) View() string {
	if w.form != nil {
		return w.form.View()
	}
	if w.err != "" {
		return errorStyle.Render("  " + w.err)
	}
	return w.list.View()
}
