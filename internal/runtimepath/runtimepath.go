// Package runtimepath locates per-user runtime files such as the IPC socket.
package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Dir returns the directory holding the socket and PID file: the XDG runtime
// directory when it exists, else a private directory under the system temp dir.
func Dir() (string, error) {
	xdg.Reload()
	if dir := xdg.RuntimeDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}

	tmpDir := filepath.Join(os.TempDir(), fmt.Sprintf("screenbridge-runtime-%d", os.Getuid()))
	if err := os.MkdirAll(tmpDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return tmpDir, nil
}

func file(name string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// SocketPath returns the daemon IPC socket path.
func SocketPath() (string, error) { return file("screenbridge.sock") }

// PIDPath returns the file the daemon records its process ID in.
func PIDPath() (string, error) { return file("screenbridge.pid") }
