package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/screenbridge/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for the socket at socketPath.
func NewClientAt(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    20 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// call sends command with payload and decodes the response data into out.
func (c *Client) call(command CommandType, payload any, out any) error {
	req := &Request{Command: command}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", command, err)
		}
		req.Payload = raw
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", command, err)
	}
	return nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, nil)
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Toggle switches to the other persona.
func (c *Client) Toggle() (*PersonaData, error) {
	var data PersonaData
	if err := c.call(CommandToggle, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Switch activates persona ("a" or "b").
func (c *Client) Switch(persona string) (*PersonaData, error) {
	var data PersonaData
	if err := c.call(CommandSwitch, SwitchPayload{Persona: persona}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetMonitors retrieves monitor information
func (c *Client) GetMonitors() (*MonitorsData, error) {
	var monitors MonitorsData
	if err := c.call(CommandGetMonitors, nil, &monitors); err != nil {
		return nil, err
	}
	return &monitors, nil
}

// QueryInput reads the active input source of monitor.
func (c *Client) QueryInput(monitor string) (*VCPData, error) {
	var data VCPData
	if err := c.call(CommandQueryInput, MonitorPayload{Monitor: monitor}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetVCP reads an arbitrary VCP feature.
func (c *Client) GetVCP(monitor string, code uint8) (*VCPData, error) {
	var data VCPData
	if err := c.call(CommandGetVCP, GetVCPPayload{Monitor: monitor, Code: code}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SetVCP writes a VCP feature.
func (c *Client) SetVCP(monitor string, code uint8, value uint16) error {
	return c.call(CommandSetVCP, SetVCPPayload{Monitor: monitor, Code: code, Value: value}, nil)
}

// ListWindows returns the daemon's view of top-level windows.
func (c *Client) ListWindows() (*WindowsData, error) {
	var data WindowsData
	if err := c.call(CommandListWindows, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// MoveWindow moves a window onto monitor.
func (c *Client) MoveWindow(id uint64, monitor string, activate bool) error {
	return c.call(CommandMoveWindow, MoveWindowPayload{ID: id, Monitor: monitor, Activate: activate}, nil)
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
