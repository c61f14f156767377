package placement

import (
	"strings"
	"sync"

	"github.com/1broseidon/screenbridge/internal/platform"
)

// DefaultExcludedProcesses are shell processes whose windows never move.
var DefaultExcludedProcesses = []string{
	"ShellExperienceHost",
	"SearchHost",
	"StartMenuExperienceHost",
	"TextInputHost",
	"SystemSettings",
}

// DefaultExcludedClasses are window classes belonging to the desktop shell.
var DefaultExcludedClasses = []string{
	"Shell_TrayWnd",
	"Progman",
	"WorkerW",
	"Windows.UI.Core.CoreWindow",
	"DV2ControlHost",
	"Button",
	"SysListView32",
	"ms-stickynotes",
}

// DefaultClassAllowlist limits processes that host both shell surfaces and
// real application windows to the latter.
var DefaultClassAllowlist = map[string][]string{
	"explorer": {"CabinetWClass", "ExplorerWClass"},
}

// Filter decides which shown windows are eligible for auto-move. All
// comparisons are case-insensitive; process names ignore a .exe suffix.
type Filter struct {
	mu        sync.RWMutex
	processes map[string]struct{}
	classes   map[string]struct{}
	allow     map[string]map[string]struct{}
	skipPID   int
}

// NewFilter builds a filter from deny lists and a per-process class allowlist.
func NewFilter(processes, classes []string, allow map[string][]string) *Filter {
	f := &Filter{
		processes: make(map[string]struct{}),
		classes:   make(map[string]struct{}),
		allow:     make(map[string]map[string]struct{}),
	}
	for _, p := range processes {
		f.processes[platform.NormalizeProcessName(p)] = struct{}{}
	}
	for _, c := range classes {
		f.classes[strings.ToLower(c)] = struct{}{}
	}
	for proc, list := range allow {
		set := make(map[string]struct{}, len(list))
		for _, c := range list {
			set[strings.ToLower(c)] = struct{}{}
		}
		f.allow[platform.NormalizeProcessName(proc)] = set
	}
	return f
}

// AddProcess excludes another process name.
func (f *Filter) AddProcess(name string) {
	name = platform.NormalizeProcessName(name)
	if name == "" {
		return
	}
	f.mu.Lock()
	f.processes[name] = struct{}{}
	f.mu.Unlock()
}

// SkipPID excludes every window owned by pid.
func (f *Filter) SkipPID(pid int) {
	f.mu.Lock()
	f.skipPID = pid
	f.mu.Unlock()
}

// Allow reports whether w may be auto-moved, and if not, why.
func (f *Filter) Allow(w platform.Window) (bool, string) {
	if !w.TopLevel {
		return false, "not top-level"
	}
	if !w.Visible {
		return false, "not visible"
	}
	if strings.TrimSpace(w.Title) == "" {
		return false, "untitled"
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.skipPID != 0 && w.PID == f.skipPID {
		return false, "own process"
	}
	proc := platform.NormalizeProcessName(w.Process)
	if _, ok := f.processes[proc]; ok && proc != "" {
		return false, "excluded process"
	}
	class := strings.ToLower(w.Class)
	if class == "" {
		return true, ""
	}
	if _, ok := f.classes[class]; ok {
		return false, "excluded class"
	}
	if allowed, ok := f.allow[proc]; ok {
		if _, ok := allowed[class]; !ok {
			return false, "class not allowed for process"
		}
	}
	return true, ""
}
