package mcp

import "github.com/1broseidon/screenbridge/internal/ipc"

// GetStatusInput is the input for the get_status tool.
type GetStatusInput struct{}

// GetStatusOutput is the output for the get_status tool.
type GetStatusOutput struct {
	Persona        string `json:"persona"`
	PersonaName    string `json:"persona_name"`
	Failures       int    `json:"failures" jsonschema:"Consecutive failed input-source reads"`
	LastSwitch     string `json:"last_switch,omitempty"`
	AutoDetect     bool   `json:"auto_detect"`
	AutoMove       bool   `json:"auto_move"`
	AutoMoveTarget string `json:"auto_move_target,omitempty"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

// SwitchPersonaInput is the input for the switch_persona tool.
type SwitchPersonaInput struct {
	Persona string `json:"persona" jsonschema:"required,Persona to activate: a or b"`
}

// TogglePersonaInput is the input for the toggle_persona tool.
type TogglePersonaInput struct{}

// PersonaOutput reports the persona active after a switch.
type PersonaOutput struct {
	Persona string `json:"persona"`
	Name    string `json:"name"`
}

// ListMonitorsInput is the input for the list_monitors tool.
type ListMonitorsInput struct{}

// ListMonitorsOutput is the output for the list_monitors tool.
type ListMonitorsOutput struct {
	Monitors []ipc.MonitorInfo `json:"monitors"`
}

// QueryInputInput is the input for the query_input tool.
type QueryInputInput struct {
	Monitor string `json:"monitor,omitempty" jsonschema:"Monitor ID, index or name fragment (default: configured DDC monitor, else primary)"`
}

// GetVCPInput is the input for the get_vcp tool.
type GetVCPInput struct {
	Monitor string `json:"monitor,omitempty" jsonschema:"Monitor ID, index or name fragment (default: configured DDC monitor, else primary)"`
	Code    int    `json:"code" jsonschema:"required,VCP feature code, e.g. 96 for input source or 16 for brightness"`
}

// VCPOutput is the result of a VCP read.
type VCPOutput struct {
	Monitor string `json:"monitor"`
	Code    int    `json:"code"`
	Kind    string `json:"kind" jsonschema:"value, unsupported or unreachable"`
	Value   uint32 `json:"value"`
	Max     uint32 `json:"max"`
	Input   string `json:"input,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SetVCPInput is the input for the set_vcp tool.
type SetVCPInput struct {
	Monitor string `json:"monitor,omitempty" jsonschema:"Monitor ID, index or name fragment (default: configured DDC monitor, else primary)"`
	Code    int    `json:"code" jsonschema:"required,VCP feature code"`
	Value   int    `json:"value" jsonschema:"required,Value to write (0-65535)"`
}

// SetVCPOutput is the output for the set_vcp tool.
type SetVCPOutput struct {
	Written bool `json:"written"`
}

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct {
	Process string `json:"process,omitempty" jsonschema:"Only return windows whose process name contains this text"`
}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	Windows []ipc.WindowInfo `json:"windows"`
}

// MoveWindowInput is the input for the move_window tool.
type MoveWindowInput struct {
	ID       uint64 `json:"id" jsonschema:"required,Window ID from list_windows"`
	Monitor  string `json:"monitor" jsonschema:"required,Target monitor ID, index or name fragment"`
	Activate bool   `json:"activate,omitempty" jsonschema:"Restore, keep maximized state and focus the window after moving"`
}

// MoveWindowOutput is the output for the move_window tool.
type MoveWindowOutput struct {
	Moved bool `json:"moved"`
}

// ReloadConfigInput is the input for the reload_config tool.
type ReloadConfigInput struct{}

// ReloadConfigOutput is the output for the reload_config tool.
type ReloadConfigOutput struct {
	Reloaded bool `json:"reloaded"`
}
