package platform

import (
	"github.com/shirou/gopsutil/v4/process"
)

// ProcessName returns the normalized executable name for pid, or "" when the
// process cannot be inspected.
func ProcessName(pid int) string {
	if pid <= 0 {
		return ""
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return ""
	}
	name, err := p.Name()
	if err != nil {
		return ""
	}
	return NormalizeProcessName(name)
}
