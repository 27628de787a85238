package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/codefionn/pytools/internal/editing"
	"github.com/codefionn/pytools/internal/lifecycle"
	"github.com/codefionn/pytools/internal/rpc"
)

func newFlagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pytools %s %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses a sub-command's flags and checks its positional count.
func parseArgs(fs *flag.FlagSet, args []string, n int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != n {
		fs.Usage()
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", fs.Name(), n, fs.NArg())
	}
	return fs.Args(), nil
}

// parsePosition reads a 1-based row and a 0-based column.
func parsePosition(rowArg, colArg string) (int, int, error) {
	row, err := strconv.Atoi(rowArg)
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("invalid row %q: must be a positive integer", rowArg)
	}
	col, err := strconv.Atoi(colArg)
	if err != nil || col < 0 {
		return 0, 0, fmt.Errorf("invalid column %q: must be a non-negative integer", colArg)
	}
	return row, col, nil
}

func runPing(ctx context.Context, a *app, args []string) error {
	if _, err := parseArgs(newFlagSet("ping", ""), args, 0); err != nil {
		return err
	}
	result, err := a.client.Ping(ctx, "pytools")
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s answered: %s\n", a.client.Address(), result)
	return nil
}

func runStart(ctx context.Context, a *app, args []string) error {
	if _, err := parseArgs(newFlagSet("start", ""), args, 0); err != nil {
		return err
	}
	err := a.manager.Spawn(ctx, a.command)
	switch {
	case err == nil:
		fmt.Fprintf(a.out, "Server started on %s\n", a.cfg.Address())
	case errors.Is(err, lifecycle.ErrAlreadyRunning):
		fmt.Fprintf(a.out, "Server already running on %s\n", a.cfg.Address())
	default:
		var startErr *lifecycle.StartupError
		if errors.As(err, &startErr) {
			return fmt.Errorf("%w (see %s)", err, a.cfg.LogPath)
		}
		return err
	}
	return nil
}

func runStop(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("stop", "[-force]")
	force := fs.Bool("force", false, "Signal the recorded server process if it does not stop")
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}

	if !lifecycle.Probe(ctx, a.cfg.Address()) && !*force {
		fmt.Fprintln(a.out, "Server is not running")
		return nil
	}
	a.manager.Shutdown(ctx)
	if *force {
		if err := a.manager.Terminate(); err != nil {
			fmt.Fprintf(a.errOut, "Warning: %v\n", err)
		}
	}
	fmt.Fprintln(a.out, "Server stopped")
	return nil
}

func runStatus(ctx context.Context, a *app, args []string) error {
	if _, err := parseArgs(newFlagSet("status", ""), args, 0); err != nil {
		return err
	}

	listening := lifecycle.Probe(ctx, a.cfg.Address())
	pid, alive := lifecycle.NewPidfile(a.cfg.PidPath).Alive()
	switch {
	case listening && alive:
		fmt.Fprintf(a.out, "Server running on %s (PID %d)\n", a.cfg.Address(), pid)
	case listening:
		fmt.Fprintf(a.out, "Server running on %s\n", a.cfg.Address())
	case alive:
		fmt.Fprintf(a.out, "Server process %d exists but %s does not accept connections\n", pid, a.cfg.Address())
	default:
		fmt.Fprintln(a.out, "Server is not running")
	}
	return nil
}

func runInit(ctx context.Context, a *app, args []string) error {
	rest, err := parseArgs(newFlagSet("init", "<dir>"), args, 1)
	if err != nil {
		return err
	}
	dir, err := filepath.Abs(rest[0])
	if err != nil {
		return err
	}
	if err := a.session.ChangeWorkspace(ctx, dir); err != nil {
		return err
	}
	caps, err := a.session.Open(ctx)
	if err != nil {
		return err
	}
	a.render.Capabilities(a.session.Workspace(), caps)
	return nil
}

func runComplete(ctx context.Context, a *app, args []string) error {
	rest, err := parseArgs(newFlagSet("complete", "<file> <row> <col>"), args, 3)
	if err != nil {
		return err
	}
	row, col, err := parsePosition(rest[1], rest[2])
	if err != nil {
		return err
	}
	_, source, err := readDocument(rest[0])
	if err != nil {
		return err
	}

	items, err := a.session.Completion(ctx, source, row, col)
	if err != nil {
		return err
	}
	return a.render.Completions(items)
}

func runHover(ctx context.Context, a *app, args []string) error {
	rest, err := parseArgs(newFlagSet("hover", "<file> <row> <col>"), args, 3)
	if err != nil {
		return err
	}
	row, col, err := parsePosition(rest[1], rest[2])
	if err != nil {
		return err
	}
	_, source, err := readDocument(rest[0])
	if err != nil {
		return err
	}

	hover, err := a.session.Hover(ctx, source, row, col)
	if err != nil {
		return err
	}
	if hover == nil || hover.Content.Value == "" {
		fmt.Fprintln(a.errOut, "No information available")
		return nil
	}
	return a.render.Hover(hover.Content)
}

func runFormat(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("format", "[-write] <file>")
	write := fs.Bool("write", false, "Write the formatted source back to the file")
	rest, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	path, source, err := readDocument(rest[0])
	if err != nil {
		return err
	}

	diff, err := a.session.Formatting(ctx, source)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Fprintf(a.errOut, "%s is already formatted\n", rest[0])
		return nil
	}
	if !*write {
		a.render.Diff(diff)
		return nil
	}

	formatted, err := editing.ApplyUnifiedDiff(source, diff)
	if err != nil {
		return fmt.Errorf("failed to apply formatting: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(formatted), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(a.errOut, "Formatted %s\n", rest[0])
	return nil
}

func runDiagnose(ctx context.Context, a *app, args []string) error {
	rest, err := parseArgs(newFlagSet("diagnose", "<file>"), args, 1)
	if err != nil {
		return err
	}
	path, source, err := readDocument(rest[0])
	if err != nil {
		return err
	}

	diags, err := a.session.Diagnostics(ctx, source, path)
	if err != nil {
		return err
	}
	a.render.Diagnostics(rest[0], diags)
	for _, d := range diags {
		if d.Severity == rpc.SeverityError {
			return errProblems
		}
	}
	return nil
}
