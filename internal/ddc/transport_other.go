//go:build !linux && !windows

package ddc

import (
	"context"

	"github.com/1broseidon/screenbridge/internal/platform"
)

type unsupportedTransport struct{}

// NewSystemTransport returns a transport that reports every display unreachable.
func NewSystemTransport(map[string]string) Transport {
	return unsupportedTransport{}
}

func (unsupportedTransport) Open(context.Context, platform.Display) (Session, error) {
	return nil, platform.ErrUnsupported
}
