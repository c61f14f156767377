package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/1broseidon/screenbridge/internal/ipc"
)

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runMonitors(args []string) int {
	fs := newFlagSet("monitors",
		"Usage: screenbridge monitors [--json]",
		"",
		"List connected displays.")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}

	data, err := ipc.NewClient().GetMonitors()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(data)
	}
	for i, m := range data.Monitors {
		primary := ""
		if m.Primary {
			primary = " (primary)"
		}
		fmt.Printf("%d: %s %q %dx%d+%d+%d%s\n", i, m.ID, m.Name, m.Width, m.Height, m.X, m.Y, primary)
	}
	return 0
}

func runInput(args []string) int {
	fs := newFlagSet("input",
		"Usage: screenbridge input [--monitor SEL]",
		"",
		"Read the current input source (VCP 0x60).")
	monitor := fs.String("monitor", "", "Monitor ID, index or name fragment")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}

	data, err := ipc.NewClient().QueryInput(*monitor)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return printVCP(os.Stdout, data)
}

func printVCPUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  screenbridge vcp get [--monitor SEL] <code>")
	fmt.Fprintln(w, "  screenbridge vcp set [--monitor SEL] <code> <value>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Codes and values accept decimal or 0x-prefixed hex.")
}

func runVCP(args []string) int {
	if len(args) == 0 {
		printVCPUsage(os.Stderr)
		return 2
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printVCPUsage(os.Stdout)
		return 0
	}

	switch args[0] {
	case "get":
		fs := newFlagSet("get", "Usage: screenbridge vcp get [--monitor SEL] <code>")
		monitor := fs.String("monitor", "", "Monitor ID, index or name fragment")
		if code := parseFlags(fs, args[1:]); code >= 0 {
			return code
		}
		if fs.NArg() != 1 {
			fs.Usage()
			return 2
		}
		code, err := parseUint(fs.Arg(0), 8)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid code %q: %v\n", fs.Arg(0), err)
			return 2
		}
		data, err := ipc.NewClient().GetVCP(*monitor, uint8(code))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return printVCP(os.Stdout, data)

	case "set":
		fs := newFlagSet("set", "Usage: screenbridge vcp set [--monitor SEL] <code> <value>")
		monitor := fs.String("monitor", "", "Monitor ID, index or name fragment")
		if code := parseFlags(fs, args[1:]); code >= 0 {
			return code
		}
		if fs.NArg() != 2 {
			fs.Usage()
			return 2
		}
		code, err := parseUint(fs.Arg(0), 8)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid code %q: %v\n", fs.Arg(0), err)
			return 2
		}
		value, err := parseUint(fs.Arg(1), 16)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid value %q: %v\n", fs.Arg(1), err)
			return 2
		}
		if err := ipc.NewClient().SetVCP(*monitor, uint8(code), uint16(value)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown vcp command: %s\n\n", args[0])
		printVCPUsage(os.Stderr)
		return 2
	}
}

func parseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 0, bits)
}

func printVCP(w io.Writer, v *ipc.VCPData) int {
	fmt.Fprintf(w, "monitor: %s\n", v.Monitor)
	fmt.Fprintf(w, "code:    0x%02X\n", v.Code)
	fmt.Fprintf(w, "kind:    %s\n", v.Kind)
	switch v.Kind {
	case "value":
		fmt.Fprintf(w, "value:   %d (max %d)\n", v.Value, v.Max)
		if v.Input != "" {
			fmt.Fprintf(w, "input:   %s\n", v.Input)
		}
	case "unreachable":
		if v.Error != "" {
			fmt.Fprintf(w, "error:   %s\n", v.Error)
		}
		return 1
	}
	return 0
}

func runWindows(args []string) int {
	fs := newFlagSet("windows",
		"Usage: screenbridge windows [--json]",
		"",
		"List visible top-level windows.")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}

	data, err := ipc.NewClient().ListWindows()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(data)
	}
	for _, w := range data.Windows {
		fmt.Printf("0x%08x  %-18s %-10s %dx%d+%d+%d  %s\n", w.ID, w.Process, w.State, w.Width, w.Height, w.X, w.Y, w.Title)
	}
	return 0
}

func runMoveWindow(args []string) int {
	fs := newFlagSet("move-window",
		"Usage: screenbridge move-window [--activate] <window-id> <monitor>",
		"",
		"Center a window on a monitor. The window ID accepts decimal or 0x-prefixed hex.")
	activate := fs.Bool("activate", false, "Restore, keep maximized state and focus the window")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}
	id, err := parseUint(fs.Arg(0), 64)
	if err != nil || id == 0 {
		fmt.Fprintf(os.Stderr, "invalid window id %q\n", fs.Arg(0))
		return 2
	}
	if err := ipc.NewClient().MoveWindow(id, fs.Arg(1), *activate); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
