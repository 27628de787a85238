package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/codefionn/pytools/internal/config"
	"github.com/codefionn/pytools/internal/consts"
	"github.com/codefionn/pytools/internal/dispatch"
	"github.com/codefionn/pytools/internal/formatter"
	"github.com/codefionn/pytools/internal/index"
	"github.com/codefionn/pytools/internal/lifecycle"
	"github.com/codefionn/pytools/internal/logger"
	"github.com/codefionn/pytools/internal/socketserver"
	"github.com/codefionn/pytools/internal/syntax"
)

type options struct {
	configPath string
	host       string
	port       int
	logLevel   string
	logPath    string
	workspace  string
}

func main() {
	err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps the result of run to the process exit code. A taken
// address gets its own code so a spawning client can tell that another
// server already answers there.
func exitCode(err error) int {
	switch {
	case err == nil:
		return consts.ExitSuccess
	case errors.Is(err, socketserver.ErrAddrInUse):
		return consts.ExitOSError
	default:
		return consts.ExitError
	}
}

func parseArgs(args []string) (*options, error) {
	fs := flag.NewFlagSet("pytools-server", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", config.GetConfigPath(), "Path to the configuration file")
	fs.StringVar(&opts.host, "host", "", "Address to listen on (overrides the config)")
	fs.IntVar(&opts.port, "port", -1, "Port to listen on (overrides the config)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error, none")
	fs.StringVar(&opts.logPath, "log-path", "", "Log file path (overrides the config)")
	fs.StringVar(&opts.workspace, "workspace", "", "Workspace to initialize with at startup")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options]\n\n", fs.Name())
		fmt.Fprintln(fs.Output(), "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if opts.host != "" {
		cfg.Host = opts.host
	}
	if opts.port >= 0 {
		cfg.Port = opts.port
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logPath != "" {
		cfg.LogPath = opts.logPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(args []string) (err error) {
	opts, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if initErr := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath, os.Stderr); initErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", initErr)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	// A second instance must exit with ExitOSError before it touches the
	// pidfile of the running one.
	ln, err := socketserver.Listen(cfg.Address())
	if err != nil {
		return err
	}

	pidfile := lifecycle.NewPidfile(cfg.PidPath)
	if err := pidfile.Write(); err != nil {
		logger.Warn("Failed to write pidfile: %v", err)
	}
	defer pidfile.Remove()

	store, err := index.OpenStore(cfg.IndexPath)
	if err != nil {
		ln.Close()
		return err
	}
	defer store.Close()

	// The indexer needs an extractor and the request analyzer needs the
	// index, so extraction uses a separate analyzer without one.
	extractor := syntax.NewAnalyzer(nil)
	defer extractor.Close()
	indexer := index.NewIndexer(store, extractor, true)
	analyzer := syntax.NewAnalyzer(indexer)
	defer analyzer.Close()

	workspace := socketserver.NewWorkspaceManager(indexer)
	service := socketserver.NewService(workspace, socketserver.Backends{
		Completer: analyzer,
		Hoverer:   analyzer,
		Linter:    analyzer,
		Formatter: formatter.New(cfg.Formatter.Exec, cfg.FormatterTimeout()),
	})

	registry := dispatch.NewRegistry()
	if err := service.Register(registry); err != nil {
		ln.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.workspace != "" {
		workspace.Initialize(ctx, opts.workspace, cfg.Features.Disabled())
	}

	logger.Info("pytools-server starting on %s (tree-sitter: %v)", cfg.Address(), analyzer.Available())

	server := socketserver.NewServer(ln, registry, socketserver.Options{
		ReadTimeout:      cfg.ReadTimeout(),
		BufferSize:       cfg.BufferSize,
		MaxContentLength: cfg.MaxContentLength,
	})

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		return server.Serve(serveCtx)
	})
	g.Go(func() error {
		<-serveCtx.Done()
		workspace.Reset()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("pytools-server stopped after %d requests", server.Handled())
	return nil
}
