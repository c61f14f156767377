package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/screenbridge/internal/config"
	"github.com/1broseidon/screenbridge/internal/daemon"
	"github.com/1broseidon/screenbridge/internal/ipc"
	"github.com/1broseidon/screenbridge/internal/logging"
	"github.com/1broseidon/screenbridge/internal/tui"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "toggle":
		os.Exit(runToggle(os.Args[2:]))
	case "switch":
		os.Exit(runSwitch(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "monitors":
		os.Exit(runMonitors(os.Args[2:]))
	case "input":
		os.Exit(runInput(os.Args[2:]))
	case "vcp":
		os.Exit(runVCP(os.Args[2:]))
	case "windows":
		os.Exit(runWindows(os.Args[2:]))
	case "move-window":
		os.Exit(runMoveWindow(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: screenbridge <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the screenbridge daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  toggle              Switch to the inactive persona")
	fmt.Fprintln(w, "  switch <a|b>        Activate a persona")
	fmt.Fprintln(w, "  reload              Re-read the daemon configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  monitors            List connected displays")
	fmt.Fprintln(w, "  input               Read the monitor input source over DDC/CI")
	fmt.Fprintln(w, "  vcp get             Read a VCP feature")
	fmt.Fprintln(w, "  vcp set             Write a VCP feature")
	fmt.Fprintln(w, "  windows             List top-level windows")
	fmt.Fprintln(w, "  move-window         Move a window to a monitor")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  tui                 Open interactive dashboard")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'screenbridge <command> --help' for command-specific options.")
}

// newFlagSet returns a flag set that prints usage lines to stderr.
func newFlagSet(name string, usage ...string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		for _, line := range usage {
			fmt.Fprintln(os.Stderr, line)
		}
		if hasFlags(fs) {
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Flags:")
			fs.PrintDefaults()
		}
	}
	return fs
}

func hasFlags(fs *flag.FlagSet) bool {
	n := 0
	fs.VisitAll(func(*flag.Flag) { n++ })
	return n > 0
}

// parseFlags returns -1 when parsing succeeded, else the exit code.
func parseFlags(fs *flag.FlagSet, args []string) int {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	return -1
}

func runDaemon(args []string) int {
	fs := newFlagSet("daemon",
		"Usage: screenbridge daemon [--config PATH]",
		"",
		"Run the persona daemon in the foreground.")
	path := fs.String("config", "", "Config file path (default: $SCREENBRIDGE_CONFIG or ~/.config/screenbridge/config.yaml)")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	cfgPath, err := resolveConfigPath(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	res, err := config.LoadFromPath(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := logging.Setup(res.Config.Logging, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		return 1
	}
	defer logger.Close()

	d, err := daemon.New(daemon.Options{
		ConfigPath: cfgPath,
		Config:     res.Config,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create daemon", "error", err)
		return 1
	}
	defer d.Close()

	if err := d.Start(); err != nil {
		logger.Error("failed to start daemon", "error", err)
		return 1
	}
	logger.Info("screenbridge daemon started", "config", cfgPath, "files", len(res.Files))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	d.Run(ctx)

	logger.Info("screenbridge daemon stopping")
	return 0
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return config.DefaultConfigPath()
}

func runStatus(args []string) int {
	fs := newFlagSet("status",
		"Usage: screenbridge status",
		"",
		"Show daemon status via IPC.")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("daemon_running:   %v\n", status.DaemonRunning)
	fmt.Printf("persona:          %s (%s)\n", status.Persona, status.PersonaName)
	fmt.Printf("failures:         %d\n", status.Failures)
	fmt.Printf("auto_detect:      %v\n", status.AutoDetect)
	fmt.Printf("polling:          %v\n", status.Polling)
	if status.AutoMove {
		fmt.Printf("auto_move:        %s\n", status.AutoMoveTarget)
	} else {
		fmt.Printf("auto_move:        off\n")
	}
	if status.LastSwitch != "" {
		fmt.Printf("last_switch:      %s\n", status.LastSwitch)
	}
	fmt.Printf("uptime_seconds:   %d\n", status.UptimeSeconds)
	return 0
}

func runToggle(args []string) int {
	fs := newFlagSet("toggle",
		"Usage: screenbridge toggle",
		"",
		"Switch to whichever persona is not active.")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "toggle takes no arguments")
		fs.Usage()
		return 2
	}
	res, err := ipc.NewClient().Toggle()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("persona: %s (%s)\n", res.Persona, res.Name)
	return 0
}

func runSwitch(args []string) int {
	fs := newFlagSet("switch",
		"Usage: screenbridge switch <a|b>",
		"",
		"Activate a persona. Switching to the active persona does nothing.")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "switch requires exactly one persona")
		fs.Usage()
		return 2
	}
	res, err := ipc.NewClient().Switch(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("persona: %s (%s)\n", res.Persona, res.Name)
	return 0
}

func runReload(args []string) int {
	fs := newFlagSet("reload",
		"Usage: screenbridge reload",
		"",
		"Ask the running daemon to re-read its configuration.")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if err := ipc.NewClient().Reload(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("reloaded")
	return 0
}

func runTUI(args []string) int {
	fs := newFlagSet("tui",
		"Usage: screenbridge tui",
		"",
		"Interactive dashboard for the running daemon.",
		"",
		"Keybindings:",
		"  tab, 1-3   Switch tabs",
		"  t          Toggle persona",
		"  a, b       Switch to persona A or B",
		"  enter, m   Move the selected window (Windows tab)",
		"  ctrl+r     Reload daemon config",
		"  q, ctrl+c  Quit")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if err := tui.Run(ipc.NewClient()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  screenbridge config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  screenbridge config print [--path PATH] [--effective|--defaults]")
		fmt.Fprintln(os.Stderr, "  screenbridge config explain [--path PATH] <yaml.path>")
		return 2
	}

	const pathHelp = "Config file path (default: $SCREENBRIDGE_CONFIG or ~/.config/screenbridge/config.yaml)"

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", pathHelp)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("config: ok (%d file(s))\n", len(res.Files))
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", pathHelp)
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		printEffective := fs.Bool("effective", false, "Print effective config (default)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		if *printDefaults {
			return printYAML(config.DefaultConfig())
		}

		_ = printEffective // default
		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return printYAML(res.Config)

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", pathHelp)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value:\n%s", string(out))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func printYAML(v any) int {
	data, err := yaml.Marshal(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceBuiltin:
		if src.Name != "" {
			return "builtin:" + src.Name
		}
		return "builtin"
	case config.SourceDefault:
		if src.Name != "" {
			return "default:" + src.Name
		}
		return "default"
	default:
		return string(src.Kind)
	}
}
