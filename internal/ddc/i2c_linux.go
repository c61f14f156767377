//go:build linux

package ddc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/1broseidon/screenbridge/internal/platform"
	"golang.org/x/sys/unix"
)

const (
	i2cSlave = 0x0703

	replyDelay = 40 * time.Millisecond
	setDelay   = 50 * time.Millisecond
)

// I2CTransport talks DDC/CI through /dev/i2c-N.
type I2CTransport struct {
	Locator BusLocator
}

// NewSystemTransport returns the i2c-dev transport. overrides maps display
// IDs to device paths.
func NewSystemTransport(overrides map[string]string) Transport {
	return &I2CTransport{Locator: BusLocator{Overrides: overrides}}
}

// Open opens every bus wired to the display.
func (t *I2CTransport) Open(ctx context.Context, d platform.Display) (Session, error) {
	paths, err := t.Locator.Locate(d.ID)
	if err != nil {
		return nil, err
	}

	sess := &i2cSession{}
	var errs []error
	for _, p := range paths {
		h, err := openI2C(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sess.handles = append(sess.handles, h)
	}
	if len(sess.handles) == 0 {
		return nil, errors.Join(errs...)
	}
	return sess, nil
}

type i2cSession struct {
	handles []*i2cHandle
}

func (s *i2cSession) Handles() []Handle {
	out := make([]Handle, len(s.handles))
	for i, h := range s.handles {
		out[i] = h
	}
	return out
}

func (s *i2cSession) Close() error {
	var errs []error
	for _, h := range s.handles {
		if err := h.f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.handles = nil
	return errors.Join(errs...)
}

type i2cHandle struct {
	f *os.File
}

func openI2C(path string) (*i2cHandle, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.IoctlSetInt(int(f.Fd()), i2cSlave, SlaveAddr); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: set slave address: %w", path, err)
	}
	return &i2cHandle{f: f}, nil
}

func (h *i2cHandle) GetVCP(code byte) (FeatureReply, error) {
	if _, err := h.f.Write(EncodeGetVCP(code)); err != nil {
		return FeatureReply{}, fmt.Errorf("write: %w", err)
	}
	time.Sleep(replyDelay)

	buf := make([]byte, getReplyLen)
	n, err := h.f.Read(buf)
	if err != nil {
		return FeatureReply{}, fmt.Errorf("read: %w", err)
	}
	return DecodeGetVCPReply(buf[:n], code)
}

func (h *i2cHandle) SetVCP(code byte, value uint16) error {
	if _, err := h.f.Write(EncodeSetVCP(code, value)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	time.Sleep(setDelay)
	return nil
}
