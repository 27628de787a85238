// Package formatter formats Python sources for document_formatting.
//
// An external formatter (black by default) is preferred. When it is not
// installed the built-in Normalize is used.
package formatter

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/codefionn/pytools/internal/consts"
	"github.com/codefionn/pytools/internal/logger"
	"github.com/codefionn/pytools/internal/rpc"
)

// exitInvalidInput is the exit code black uses for sources it cannot parse.
const exitInvalidInput = 123

// Formatter runs the configured formatter command.
type Formatter struct {
	command  []string
	timeout  time.Duration
	lookPath func(string) (string, error)
	log      *logger.Logger
}

// New creates a formatter. An empty command always uses Normalize.
func New(command []string, timeout time.Duration) *Formatter {
	if timeout <= 0 {
		timeout = consts.Timeout10Seconds
	}
	return &Formatter{
		command:  command,
		timeout:  timeout,
		lookPath: exec.LookPath,
		log:      logger.Global().WithPrefix("formatter"),
	}
}

// Available is always true; Normalize is the fallback.
func (f *Formatter) Available() bool {
	return true
}

// External returns the resolved formatter executable, or "" when the
// built-in formatter is used.
func (f *Formatter) External() string {
	if len(f.command) == 0 {
		return ""
	}
	path, err := f.lookPath(f.command[0])
	if err != nil {
		return ""
	}
	return path
}

// Format returns the formatted source.
func (f *Formatter) Format(ctx context.Context, source string) (string, error) {
	path := f.External()
	if path == "" {
		return Normalize(source), nil
	}
	return f.run(ctx, path, source)
}

func (f *Formatter) run(ctx context.Context, path, source string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, f.command[1:]...)
	cmd.Stdin = strings.NewReader(source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", rpc.NewError(rpc.CodeInternalError, "formatter timed out after %s", f.timeout)
	}

	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		msg = err.Error()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == exitInvalidInput {
		return "", rpc.NewError(rpc.CodeInputError, "cannot format source: %s", msg)
	}
	f.log.Error("Formatter %s failed: %v", path, err)
	return "", rpc.NewError(rpc.CodeInternalError, "formatter failed: %s", msg)
}
