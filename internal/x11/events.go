package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// WatchClientList calls fn for every window that appears in _NET_CLIENT_LIST
// after the call. Callbacks run on the event loop goroutine, so EventLoop
// must be running for them to fire.
func (c *Connection) WatchClientList(fn func(xproto.Window)) error {
	atom, err := c.internAtom("_NET_CLIENT_LIST")
	if err != nil {
		return err
	}

	known := make(map[xproto.Window]struct{})
	if clients, err := c.ClientList(); err == nil {
		for _, w := range clients {
			known[w] = struct{}{}
		}
	}

	if err := xwindow.New(c.XUtil, c.Root).Listen(xproto.EventMaskPropertyChange); err != nil {
		return err
	}

	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		if ev.Atom != atom {
			return
		}
		clients, err := c.ClientList()
		if err != nil {
			return
		}
		next := make(map[xproto.Window]struct{}, len(clients))
		var added []xproto.Window
		for _, w := range clients {
			next[w] = struct{}{}
			if _, ok := known[w]; !ok {
				added = append(added, w)
			}
		}
		known = next
		for _, w := range added {
			fn(w)
		}
	}).Connect(c.XUtil, c.Root)

	return nil
}
