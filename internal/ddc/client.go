// Package ddc reads and writes monitor VCP features over DDC/CI.
package ddc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/screenbridge/internal/platform"
)

// Kind classifies a control channel result.
type Kind int

const (
	KindValue Kind = iota
	KindUnsupported
	KindUnreachable
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unreachable"
	}
}

// Result is the outcome of a VCP query. Value and Max are meaningful only
// for KindValue; Err carries the cause of KindUnreachable.
type Result struct {
	Kind  Kind
	Value uint32
	Max   uint32
	Err   error
}

// Value builds a successful result.
func Value(v, max uint32) Result { return Result{Kind: KindValue, Value: v, Max: max} }

// Unsupported builds a result for a rejected VCP code.
func Unsupported() Result { return Result{Kind: KindUnsupported} }

// Unreachable builds a result for a monitor that could not be talked to.
func Unreachable(err error) Result { return Result{Kind: KindUnreachable, Err: err} }

func (r Result) String() string {
	switch r.Kind {
	case KindValue:
		return fmt.Sprintf("value(%d)", r.Value)
	case KindUnsupported:
		return "unsupported"
	default:
		if r.Err != nil {
			return "unreachable: " + r.Err.Error()
		}
		return "unreachable"
	}
}

// ErrNoHandles is the cause recorded when a display exposes no control channel.
var ErrNoHandles = errors.New("display has no physical monitor handles")

// Handle is one physical control channel of a display.
type Handle interface {
	GetVCP(code byte) (FeatureReply, error)
	SetVCP(code byte, value uint16) error
}

// Session is a scoped acquisition of a display's handles. Close releases
// every handle and must be called exactly once.
type Session interface {
	Handles() []Handle
	Close() error
}

// Transport opens control channel sessions for displays.
type Transport interface {
	Open(ctx context.Context, d platform.Display) (Session, error)
}

// Client serializes VCP traffic per display.
type Client struct {
	transport Transport
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewClient returns a client using transport.
func NewClient(transport Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{transport: transport, logger: logger, locks: make(map[string]*sync.Mutex)}
}

func (c *Client) lock(id string) func() {
	c.mu.Lock()
	m, ok := c.locks[id]
	if !ok {
		m = &sync.Mutex{}
		c.locks[id] = m
	}
	c.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// QueryInput reads the active input source (VCP 0x60).
func (c *Client) QueryInput(ctx context.Context, d platform.Display) Result {
	return c.QueryFeature(ctx, d, CodeInputSource)
}

// QueryFeature reads any VCP feature. Handles are tried in order until one
// answers; an explicit "unsupported" answer ends the search.
func (c *Client) QueryFeature(ctx context.Context, d platform.Display, code byte) Result {
	unlock := c.lock(d.ID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return Unreachable(err)
	}

	sess, err := c.transport.Open(ctx, d)
	if err != nil {
		return Unreachable(fmt.Errorf("open %s: %w", d.ID, err))
	}
	defer c.closeSession(d, sess)

	handles := sess.Handles()
	if len(handles) == 0 {
		return Unreachable(ErrNoHandles)
	}

	var lastErr error
	for i, h := range handles {
		if err := ctx.Err(); err != nil {
			return Unreachable(err)
		}
		reply, err := h.GetVCP(code)
		if err == nil {
			return Value(reply.Current, reply.Max)
		}
		if errors.Is(err, ErrUnsupported) {
			return Unsupported()
		}
		c.logger.Debug("vcp get failed", "display", d.ID, "handle", i, "code", fmt.Sprintf("%#02x", code), "error", err)
		lastErr = err
	}
	return Unreachable(lastErr)
}

// SetFeature writes a VCP feature on the first handle that accepts it.
func (c *Client) SetFeature(ctx context.Context, d platform.Display, code byte, value uint16) error {
	unlock := c.lock(d.ID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	sess, err := c.transport.Open(ctx, d)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.ID, err)
	}
	defer c.closeSession(d, sess)

	handles := sess.Handles()
	if len(handles) == 0 {
		return ErrNoHandles
	}

	var lastErr error
	for _, h := range handles {
		err := h.SetVCP(code, value)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnsupported) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("set vcp %#02x on %s: %w", code, d.ID, lastErr)
}

func (c *Client) closeSession(d platform.Display, sess Session) {
	if err := sess.Close(); err != nil {
		c.logger.Warn("failed to release monitor handles", "display", d.ID, "error", err)
	}
}
