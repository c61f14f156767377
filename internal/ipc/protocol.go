package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload      CommandType = "RELOAD"
	CommandGetStatus   CommandType = "GET_STATUS"
	CommandToggle      CommandType = "TOGGLE"
	CommandSwitch      CommandType = "SWITCH"
	CommandGetMonitors CommandType = "GET_MONITORS"
	CommandQueryInput  CommandType = "QUERY_INPUT"
	CommandGetVCP      CommandType = "GET_VCP"
	CommandSetVCP      CommandType = "SET_VCP"
	CommandListWindows CommandType = "LIST_WINDOWS"
	CommandMoveWindow  CommandType = "MOVE_WINDOW"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	Persona        string `json:"persona"`
	PersonaName    string `json:"persona_name"`
	Failures       int    `json:"failures"`
	LastSwitch     string `json:"last_switch,omitempty"` // RFC 3339
	AutoDetect     bool   `json:"auto_detect"`
	Polling        bool   `json:"polling"`
	AutoMove       bool   `json:"auto_move"`
	AutoMoveTarget string `json:"auto_move_target,omitempty"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	DaemonRunning  bool   `json:"daemon_running"`
}

// MonitorInfo represents information about a single monitor
type MonitorInfo struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	X       int     `json:"x"`
	Y       int     `json:"y"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Primary bool    `json:"primary"`
	Scale   float64 `json:"scale,omitempty"`
}

// MonitorsData represents the data returned by GET_MONITORS
type MonitorsData struct {
	Monitors []MonitorInfo `json:"monitors"`
}

// MonitorPayload selects a monitor by ID or name substring. Empty means the
// configured watched monitor.
type MonitorPayload struct {
	Monitor string `json:"monitor,omitempty"`
}

// VCPData is the outcome of a VCP read. Kind is value, unsupported or
// unreachable.
type VCPData struct {
	Monitor string `json:"monitor"`
	Code    uint8  `json:"code"`
	Kind    string `json:"kind"`
	Value   uint32 `json:"value,omitempty"`
	Max     uint32 `json:"max,omitempty"`
	Input   string `json:"input,omitempty"` // set for input-source reads
	Error   string `json:"error,omitempty"`
}

type SwitchPayload struct {
	Persona string `json:"persona"`
}

type PersonaData struct {
	Persona string `json:"persona"`
	Name    string `json:"name"`
}

type GetVCPPayload struct {
	Monitor string `json:"monitor,omitempty"`
	Code    uint8  `json:"code"`
}

type SetVCPPayload struct {
	Monitor string `json:"monitor,omitempty"`
	Code    uint8  `json:"code"`
	Value   uint16 `json:"value"`
}

// WindowInfo describes one top-level window.
type WindowInfo struct {
	ID      uint64 `json:"id"`
	PID     int    `json:"pid"`
	Process string `json:"process"`
	Class   string `json:"class,omitempty"`
	Title   string `json:"title"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	State   string `json:"state"`
}

type WindowsData struct {
	Windows []WindowInfo `json:"windows"`
}

// MoveWindowPayload moves window ID onto Monitor. Activate also restores,
// re-maximizes and focuses it.
type MoveWindowPayload struct {
	ID       uint64 `json:"id"`
	Monitor  string `json:"monitor"`
	Activate bool   `json:"activate,omitempty"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
