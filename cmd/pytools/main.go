package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/codefionn/pytools/internal/config"
	"github.com/codefionn/pytools/internal/lifecycle"
	"github.com/codefionn/pytools/internal/logger"
	"github.com/codefionn/pytools/internal/session"
	"github.com/codefionn/pytools/internal/socketclient"
)

// errProblems is returned by commands whose output already explains the
// failure, e.g. diagnose with errors found.
var errProblems = errors.New("problems found")

const usage = `Usage: %s [options] <command> [arguments]

Commands:
  ping                          Check that the server answers
  start                         Start the server in the background
  stop [-force]                 Stop the server
  status                        Show whether the server is running
  init <dir>                    Initialize the server with a workspace
  complete <file> <row> <col>   List completions (row 1-based, col 0-based)
  hover <file> <row> <col>      Show documentation for the symbol
  format [-write] <file>        Show or apply the formatting diff
  diagnose <file>               Report syntax errors and warnings

Options:
`

type globalOptions struct {
	configPath string
	workspace  string
	logLevel   string
}

type app struct {
	cfg     *config.Config
	client  *socketclient.Client
	manager *lifecycle.Manager
	session *session.Session
	command lifecycle.Command
	out     io.Writer
	errOut  io.Writer
	render  *renderer
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"ping":     runPing,
	"start":    runStart,
	"stop":     runStop,
	"status":   runStatus,
	"init":     runInit,
	"complete": runComplete,
	"hover":    runHover,
	"format":   runFormat,
	"diagnose": runDiagnose,
}

func main() {
	if err := run(); err != nil {
		if !errors.Is(err, errProblems) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func parseGlobal(args []string) (*globalOptions, []string, error) {
	fs := flag.NewFlagSet("pytools", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := &globalOptions{}
	fs.StringVar(&opts.configPath, "config", config.GetConfigPath(), "Path to the configuration file")
	fs.StringVar(&opts.workspace, "workspace", "", "Workspace directory (default: current directory)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log to stderr at this level")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), usage, fs.Name())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, nil, flag.ErrHelp
	}
	return opts, fs.Args(), nil
}

func run() error {
	opts, args, err := parseGlobal(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if opts.logLevel != "" {
		if err := logger.Init(logger.ParseLevel(opts.logLevel), "", os.Stderr); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logger.Global().Close()
	}

	workspace := opts.workspace
	if workspace == "" {
		if workspace, err = os.Getwd(); err != nil {
			return err
		}
	}
	if workspace, err = filepath.Abs(workspace); err != nil {
		return err
	}

	serverCmd, err := serverCommand(cfg)
	if err != nil {
		return err
	}

	a := newApp(cfg, workspace, serverCmd, os.Stdout, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd(ctx, a, args[1:]); err != nil && !errors.Is(err, flag.ErrHelp) {
		return err
	}
	return nil
}

func newApp(cfg *config.Config, workspace string, serverCmd lifecycle.Command, out, errOut io.Writer) *app {
	client := socketclient.NewClient(socketclient.ConfigFrom(cfg))
	manager := lifecycle.NewManager(lifecycle.Options{
		Grace:    cfg.StartupGrace(),
		LockPath: cfg.LockPath,
		PidPath:  cfg.PidPath,
		Client:   client,
	})
	return &app{
		cfg:     cfg,
		client:  client,
		manager: manager,
		session: session.New(client, session.Options{
			Workspace: workspace,
			Features:  cfg.Features.Disabled(),
			Spawner:   manager,
			Command:   serverCmd,
		}),
		command: serverCmd,
		out:     out,
		errOut:  errOut,
		render:  newRenderer(out),
	}
}

// serverCommand returns the configured server command line, or the
// pytools-server binary next to this executable.
func serverCommand(cfg *config.Config) (lifecycle.Command, error) {
	cmd := lifecycle.Command{
		Args: cfg.Server.Exec,
		Dir:  cfg.Server.WorkingDir,
		Env:  cfg.Server.Env,
	}
	if len(cmd.Args) > 0 {
		return cmd, nil
	}

	self, err := os.Executable()
	if err != nil {
		return cmd, fmt.Errorf("failed to locate executable: %w", err)
	}
	name := "pytools-server"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	cmd.Args = []string{filepath.Join(filepath.Dir(self), name)}
	return cmd, nil
}

// readDocument loads a source file given on the command line.
func readDocument(path string) (string, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return abs, string(data), nil
}
