//go:build windows

package ddc

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"github.com/1broseidon/screenbridge/internal/platform"
	"golang.org/x/sys/windows"
)

var (
	dxva2 = windows.NewLazySystemDLL("dxva2.dll")

	procGetNumberOfPhysicalMonitors = dxva2.NewProc("GetNumberOfPhysicalMonitorsFromHMONITOR")
	procGetPhysicalMonitors         = dxva2.NewProc("GetPhysicalMonitorsFromHMONITOR")
	procDestroyPhysicalMonitors     = dxva2.NewProc("DestroyPhysicalMonitors")
	procGetVCPFeature               = dxva2.NewProc("GetVCPFeatureAndVCPFeatureReply")
	procSetVCPFeature               = dxva2.NewProc("SetVCPFeature")
)

// errVCPNotSupported is ERROR_GRAPHICS_DDCCI_VCP_NOT_SUPPORTED.
const errVCPNotSupported = windows.Errno(0xC0262584)

type physicalMonitor struct {
	Handle      windows.Handle
	Description [128]uint16
}

// DXVA2Transport uses the Monitor Configuration API.
type DXVA2Transport struct{}

// NewSystemTransport returns the dxva2 transport. Bus overrides do not apply
// on Windows.
func NewSystemTransport(map[string]string) Transport {
	return DXVA2Transport{}
}

// Open acquires the physical monitors behind the display's HMONITOR.
func (DXVA2Transport) Open(ctx context.Context, d platform.Display) (Session, error) {
	if d.Handle == 0 {
		return nil, fmt.Errorf("display %s has no HMONITOR", d.ID)
	}
	if err := dxva2.Load(); err != nil {
		return nil, err
	}

	var count uint32
	if ret, _, err := procGetNumberOfPhysicalMonitors.Call(d.Handle, uintptr(unsafe.Pointer(&count))); ret == 0 {
		return nil, fmt.Errorf("GetNumberOfPhysicalMonitorsFromHMONITOR: %w", err)
	}
	if count == 0 {
		return &dxva2Session{}, nil
	}

	monitors := make([]physicalMonitor, count)
	if ret, _, err := procGetPhysicalMonitors.Call(d.Handle, uintptr(count), uintptr(unsafe.Pointer(&monitors[0]))); ret == 0 {
		return nil, fmt.Errorf("GetPhysicalMonitorsFromHMONITOR: %w", err)
	}
	return &dxva2Session{monitors: monitors}, nil
}

type dxva2Session struct {
	monitors []physicalMonitor
}

func (s *dxva2Session) Handles() []Handle {
	out := make([]Handle, len(s.monitors))
	for i := range s.monitors {
		out[i] = dxva2Handle(s.monitors[i].Handle)
	}
	return out
}

func (s *dxva2Session) Close() error {
	if len(s.monitors) == 0 {
		return nil
	}
	ret, _, err := procDestroyPhysicalMonitors.Call(uintptr(len(s.monitors)), uintptr(unsafe.Pointer(&s.monitors[0])))
	s.monitors = nil
	if ret == 0 {
		return fmt.Errorf("DestroyPhysicalMonitors: %w", err)
	}
	return nil
}

type dxva2Handle windows.Handle

func (h dxva2Handle) GetVCP(code byte) (FeatureReply, error) {
	var vcpType, current, maximum uint32
	ret, _, err := procGetVCPFeature.Call(
		uintptr(h), uintptr(code),
		uintptr(unsafe.Pointer(&vcpType)),
		uintptr(unsafe.Pointer(&current)),
		uintptr(unsafe.Pointer(&maximum)),
	)
	if ret == 0 {
		return FeatureReply{}, vcpError("GetVCPFeatureAndVCPFeatureReply", err)
	}
	return FeatureReply{Code: code, Type: byte(vcpType), Max: maximum, Current: current}, nil
}

func (h dxva2Handle) SetVCP(code byte, value uint16) error {
	ret, _, err := procSetVCPFeature.Call(uintptr(h), uintptr(code), uintptr(value))
	if ret == 0 {
		return vcpError("SetVCPFeature", err)
	}
	return nil
}

func vcpError(op string, err error) error {
	if errors.Is(err, errVCPNotSupported) {
		return ErrUnsupported
	}
	return fmt.Errorf("%s: %w", op, err)
}
