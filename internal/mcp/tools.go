package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ GetStatusInput) (*mcpsdk.CallToolResult, GetStatusOutput, error) {
	st, err := s.daemon.GetStatus()
	if err != nil {
		return nil, GetStatusOutput{}, err
	}
	return nil, GetStatusOutput{
		Persona:        st.Persona,
		PersonaName:    st.PersonaName,
		Failures:       st.Failures,
		LastSwitch:     st.LastSwitch,
		AutoDetect:     st.AutoDetect,
		AutoMove:       st.AutoMove,
		AutoMoveTarget: st.AutoMoveTarget,
		UptimeSeconds:  st.UptimeSeconds,
	}, nil
}

func (s *Server) handleSwitchPersona(_ context.Context, _ *mcpsdk.CallToolRequest, args SwitchPersonaInput) (*mcpsdk.CallToolResult, PersonaOutput, error) {
	persona := strings.ToLower(strings.TrimSpace(args.Persona))
	switch persona {
	case "a", "b":
	case "":
		return nil, PersonaOutput{}, fmt.Errorf("persona is required")
	default:
		return nil, PersonaOutput{}, fmt.Errorf("unknown persona %q (want a or b)", args.Persona)
	}
	res, err := s.daemon.Switch(persona)
	if err != nil {
		s.logger.Warn("switch_persona failed", "persona", persona, "error", err)
		return nil, PersonaOutput{}, err
	}
	s.logger.Info("switch_persona", "persona", res.Persona)
	return nil, PersonaOutput{Persona: res.Persona, Name: res.Name}, nil
}

func (s *Server) handleTogglePersona(_ context.Context, _ *mcpsdk.CallToolRequest, _ TogglePersonaInput) (*mcpsdk.CallToolResult, PersonaOutput, error) {
	res, err := s.daemon.Toggle()
	if err != nil {
		s.logger.Warn("toggle_persona failed", "error", err)
		return nil, PersonaOutput{}, err
	}
	s.logger.Info("toggle_persona", "persona", res.Persona)
	return nil, PersonaOutput{Persona: res.Persona, Name: res.Name}, nil
}

func (s *Server) handleListMonitors(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListMonitorsInput) (*mcpsdk.CallToolResult, ListMonitorsOutput, error) {
	res, err := s.daemon.GetMonitors()
	if err != nil {
		return nil, ListMonitorsOutput{}, err
	}
	return nil, ListMonitorsOutput{Monitors: res.Monitors}, nil
}

func (s *Server) handleQueryInput(_ context.Context, _ *mcpsdk.CallToolRequest, args QueryInputInput) (*mcpsdk.CallToolResult, VCPOutput, error) {
	res, err := s.daemon.QueryInput(strings.TrimSpace(args.Monitor))
	if err != nil {
		return nil, VCPOutput{}, err
	}
	return nil, VCPOutput{
		Monitor: res.Monitor,
		Code:    int(res.Code),
		Kind:    res.Kind,
		Value:   res.Value,
		Max:     res.Max,
		Input:   res.Input,
		Error:   res.Error,
	}, nil
}

func (s *Server) handleGetVCP(_ context.Context, _ *mcpsdk.CallToolRequest, args GetVCPInput) (*mcpsdk.CallToolResult, VCPOutput, error) {
	code, err := vcpCode(args.Code)
	if err != nil {
		return nil, VCPOutput{}, err
	}
	res, err := s.daemon.GetVCP(strings.TrimSpace(args.Monitor), code)
	if err != nil {
		return nil, VCPOutput{}, err
	}
	return nil, VCPOutput{
		Monitor: res.Monitor,
		Code:    int(res.Code),
		Kind:    res.Kind,
		Value:   res.Value,
		Max:     res.Max,
		Input:   res.Input,
		Error:   res.Error,
	}, nil
}

func (s *Server) handleSetVCP(_ context.Context, _ *mcpsdk.CallToolRequest, args SetVCPInput) (*mcpsdk.CallToolResult, SetVCPOutput, error) {
	code, err := vcpCode(args.Code)
	if err != nil {
		return nil, SetVCPOutput{}, err
	}
	if args.Value < 0 || args.Value > 0xFFFF {
		return nil, SetVCPOutput{}, fmt.Errorf("value %d out of range (0-65535)", args.Value)
	}
	if err := s.daemon.SetVCP(strings.TrimSpace(args.Monitor), code, uint16(args.Value)); err != nil {
		s.logger.Warn("set_vcp failed", "code", code, "value", args.Value, "error", err)
		return nil, SetVCPOutput{Written: false}, err
	}
	s.logger.Info("set_vcp", "monitor", args.Monitor, "code", code, "value", args.Value)
	return nil, SetVCPOutput{Written: true}, nil
}

func (s *Server) handleListWindows(_ context.Context, _ *mcpsdk.CallToolRequest, args ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	res, err := s.daemon.ListWindows()
	if err != nil {
		return nil, ListWindowsOutput{}, err
	}
	filter := strings.ToLower(strings.TrimSpace(args.Process))
	if filter == "" {
		return nil, ListWindowsOutput{Windows: res.Windows}, nil
	}
	out := ListWindowsOutput{Windows: res.Windows[:0:0]}
	for _, w := range res.Windows {
		if strings.Contains(strings.ToLower(w.Process), filter) {
			out.Windows = append(out.Windows, w)
		}
	}
	return nil, out, nil
}

func (s *Server) handleMoveWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args MoveWindowInput) (*mcpsdk.CallToolResult, MoveWindowOutput, error) {
	if args.ID == 0 {
		return nil, MoveWindowOutput{}, fmt.Errorf("id is required")
	}
	monitor := strings.TrimSpace(args.Monitor)
	if monitor == "" {
		return nil, MoveWindowOutput{}, fmt.Errorf("monitor is required")
	}
	if err := s.daemon.MoveWindow(args.ID, monitor, args.Activate); err != nil {
		return nil, MoveWindowOutput{}, err
	}
	s.logger.Info("move_window", "window", args.ID, "monitor", monitor, "activate", args.Activate)
	return nil, MoveWindowOutput{Moved: true}, nil
}

func (s *Server) handleReloadConfig(_ context.Context, _ *mcpsdk.CallToolRequest, _ ReloadConfigInput) (*mcpsdk.CallToolResult, ReloadConfigOutput, error) {
	if err := s.daemon.Reload(); err != nil {
		return nil, ReloadConfigOutput{}, err
	}
	return nil, ReloadConfigOutput{Reloaded: true}, nil
}

func vcpCode(code int) (uint8, error) {
	if code < 0 || code > 0xFF {
		return 0, fmt.Errorf("vcp code %d out of range (0-255)", code)
	}
	return uint8(code), nil
}
