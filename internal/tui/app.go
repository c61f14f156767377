package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/screenbridge/internal/ipc"
)

const refreshInterval = 2 * time.Second

// snapshotMsg carries one round of daemon state.
type snapshotMsg struct {
	status   *ipc.StatusData
	monitors []ipc.MonitorInfo
	input    *ipc.VCPData
	err      error
}

// actionMsg reports the result of a user action.
type actionMsg struct {
	text string
	err  error
}

type tickMsg time.Time

type clearNoticeMsg struct{}

// model is the root bubbletea model for the dashboard.
type model struct {
	client Client

	activeTab  Tab
	windowsTab WindowsTab

	connected bool
	status    *ipc.StatusData
	monitors  []ipc.MonitorInfo
	input     *ipc.VCPData
	lastErr   string
	notice    string

	width  int
	height int
}

func newModel(client Client) model {
	return model{
		client:     client,
		activeTab:  TabStatus,
		windowsTab: NewWindowsTab(client),
	}
}

func fetchSnapshot(c Client) tea.Cmd {
	return func() tea.Msg {
		st, err := c.GetStatus()
		if err != nil {
			return snapshotMsg{err: err}
		}
		msg := snapshotMsg{status: st}
		if mons, err := c.GetMonitors(); err == nil {
			msg.monitors = mons.Monitors
		}
		if in, err := c.QueryInput(""); err == nil {
			msg.input = in
		}
		return msg
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func runAction(label string, fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		text, err := fn()
		if err != nil {
			return actionMsg{err: fmt.Errorf("%s: %w", label, err)}
		}
		return actionMsg{text: text}
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(fetchSnapshot(m.client), tick())
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The move form captures all keys except ctrl+c.
	if m.activeTab == TabWindows && m.windowsTab.Capturing() {
		if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if _, ok := msg.(tea.KeyMsg); ok {
			var cmd tea.Cmd
			m.windowsTab, cmd = m.windowsTab.Update(msg, m.monitors)
			return m, cmd
		}
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, m.onTabChange()
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, m.onTabChange()
		case "1", "2", "3":
			m.activeTab = Tab(msg.String()[0] - '1')
			return m, m.onTabChange()
		case "t":
			return m, runAction("toggle", func() (string, error) {
				res, err := m.client.Toggle()
				if err != nil {
					return "", err
				}
				return "switched to " + res.Name, nil
			})
		case "a", "b":
			persona := msg.String()
			return m, runAction("switch", func() (string, error) {
				res, err := m.client.Switch(persona)
				if err != nil {
					return "", err
				}
				return "switched to " + res.Name, nil
			})
		case "ctrl+r":
			return m, runAction("reload", func() (string, error) {
				return "config reloaded", m.client.Reload()
			})
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		var cmd tea.Cmd
		m.windowsTab, cmd = m.windowsTab.Update(tea.WindowSizeMsg{Width: m.width, Height: m.contentHeight()}, m.monitors)
		return m, cmd

	case tickMsg:
		return m, tea.Batch(fetchSnapshot(m.client), tick())

	case snapshotMsg:
		if msg.err != nil {
			m.connected = false
			m.status = nil
			m.lastErr = msg.err.Error()
			return m, nil
		}
		m.connected = true
		m.lastErr = ""
		m.status = msg.status
		m.monitors = msg.monitors
		m.input = msg.input
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
			m.notice = ""
		} else {
			m.lastErr = ""
			m.notice = msg.text
		}
		cmds := []tea.Cmd{fetchSnapshot(m.client), tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearNoticeMsg{}
		})}
		if m.activeTab == TabWindows {
			cmds = append(cmds, m.windowsTab.Refresh())
		}
		return m, tea.Batch(cmds...)

	case clearNoticeMsg:
		m.notice = ""
		return m, nil
	}

	if m.activeTab == TabWindows {
		var cmd tea.Cmd
		m.windowsTab, cmd = m.windowsTab.Update(msg, m.monitors)
		return m, cmd
	}
	return m, nil
}

func (m model) onTabChange() tea.Cmd {
	if m.activeTab == TabWindows {
		return m.windowsTab.Refresh()
	}
	return nil
}

func (m model) contentHeight() int {
	// status bar (1) + tab bar (2 with margin) + notice (1) + help bar (1)
	h := m.height - 5
	if h < 1 {
		h = 1
	}
	return h
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var content string
	switch m.activeTab {
	case TabStatus:
		content = m.statusView()
	case TabMonitors:
		content = m.monitorsView()
	case TabWindows:
		content = m.windowsTab.View()
	}

	line := ""
	switch {
	case m.lastErr != "":
		line = errorStyle.Render(m.lastErr)
	case m.notice != "":
		line = noticeStyle.Render(m.notice)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		renderStatusBar(m.status, m.connected, m.width),
		renderTabBar(m.activeTab, m.width),
		lipgloss.NewStyle().Height(m.contentHeight()).Render(content),
		" "+line,
		renderHelpBar(m.activeTab, m.width),
	)
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func (m model) statusView() string {
	st := m.status
	if !m.connected || st == nil {
		return "  Start the daemon with 'screenbridge daemon'."
	}
	var b strings.Builder
	b.WriteString(row("  persona", personaStyle.Render(fmt.Sprintf("%s (%s)", strings.ToUpper(st.Persona), st.PersonaName))) + "\n")
	b.WriteString(row("  auto-detect", onOff(st.AutoDetect)) + "\n")
	b.WriteString(row("  polling", onOff(st.Polling)) + "\n")
	b.WriteString(row("  failures", fmt.Sprintf("%d", st.Failures)) + "\n")
	target := "off"
	if st.AutoMove {
		target = st.AutoMoveTarget
	}
	b.WriteString(row("  auto-move", target) + "\n")
	if m.input != nil {
		b.WriteString(row("  input source", inputText(m.input)) + "\n")
	}
	if st.LastSwitch != "" {
		b.WriteString(row("  last switch", st.LastSwitch) + "\n")
	}
	b.WriteString(row("  uptime", (time.Duration(st.UptimeSeconds) * time.Second).String()))
	return b.String()
}

func (m model) monitorsView() string {
	if len(m.monitors) == 0 {
		return "  No displays reported."
	}
	var b strings.Builder
	for i, mon := range m.monitors {
		mark := " "
		if mon.Primary {
			mark = "*"
		}
		fmt.Fprintf(&b, " %s %d  %-10s %-24s %dx%d+%d+%d\n", mark, i, mon.ID, mon.Name, mon.Width, mon.Height, mon.X, mon.Y)
	}
	return strings.TrimRight(b.String(), "\n")
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func inputText(v *ipc.VCPData) string {
	switch v.Kind {
	case "value":
		if v.Input != "" {
			return fmt.Sprintf("%s (0x%02X)", v.Input, v.Value)
		}
		return fmt.Sprintf("0x%02X", v.Value)
	case "unreachable":
		return "unreachable"
	default:
		return v.Kind
	}
}
