// Package session holds the client side state of a connection to the
// analysis server and applies the retry policy for feature requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/codefionn/pytools/internal/lifecycle"
	"github.com/codefionn/pytools/internal/logger"
	"github.com/codefionn/pytools/internal/rpc"
	"github.com/codefionn/pytools/internal/socketclient"
)

// Client is the server API a session drives.
type Client interface {
	Initialize(ctx context.Context, workspace string, features map[string]bool) (*rpc.Capabilities, error)
	ChangeWorkspace(ctx context.Context, path string) error
	Exit(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Completion(ctx context.Context, source string, row, column int) ([]rpc.CompletionItem, error)
	Hover(ctx context.Context, source string, row, column int) (*rpc.HoverResult, error)
	Formatting(ctx context.Context, source string) (string, error)
	Diagnostics(ctx context.Context, source, path string) ([]rpc.Diagnostic, error)
}

// Spawner starts a server process.
type Spawner interface {
	Spawn(ctx context.Context, cmd lifecycle.Command) error
}

// Options configures a Session.
type Options struct {
	Workspace string
	Features  map[string]bool // sent with initialize
	Spawner   Spawner         // nil disables auto-start
	Command   lifecycle.Command
}

// Session is the client's view of one server: whether it has been
// initialized and which workspace it was given. Each editor window owns
// its own session.
type Session struct {
	client Client
	opts   Options
	gate   Gate
	log    *logger.Logger

	mu        sync.Mutex
	active    bool
	workspace string
	caps      *rpc.Capabilities
}

// New creates an inactive session.
func New(client Client, opts Options) *Session {
	return &Session{
		client:    client,
		opts:      opts,
		workspace: opts.Workspace,
		log:       logger.Global().WithPrefix("session"),
	}
}

// Active reports whether the server has been initialized by this session.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Workspace returns the cached workspace path.
func (s *Session) Workspace() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspace
}

// Capabilities returns what the server advertised at initialize, nil
// before the first successful start.
func (s *Session) Capabilities() *rpc.Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// Start initializes the server with the session workspace.
func (s *Session) Start(ctx context.Context) (*rpc.Capabilities, error) {
	workspace := s.Workspace()
	caps, err := s.client.Initialize(ctx, workspace, s.opts.Features)
	if err != nil {
		s.setActive(false)
		return nil, err
	}

	s.mu.Lock()
	s.active = true
	s.caps = caps
	s.mu.Unlock()
	s.log.Debug("Initialized server with workspace %q", workspace)
	return caps, nil
}

// Open initializes the server, starting it when it is not running.
func (s *Session) Open(ctx context.Context) (*rpc.Capabilities, error) {
	if !s.gate.TryEnter() {
		return nil, ErrBusy
	}
	defer s.gate.Leave()

	if err := s.ensureStarted(ctx); err != nil {
		return nil, err
	}
	return s.Capabilities(), nil
}

// ChangeWorkspace points the server at path. Nothing is sent when path is
// already the workspace of an active session; an inactive session only
// records it for the next start.
func (s *Session) ChangeWorkspace(ctx context.Context, path string) error {
	s.mu.Lock()
	if s.workspace == path && s.active {
		s.mu.Unlock()
		return nil
	}
	active := s.active
	s.mu.Unlock()

	if active {
		if err := s.client.ChangeWorkspace(ctx, path); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.workspace = path
	s.mu.Unlock()
	return nil
}

// Exit resets the server project and stops it. A server that is not
// running counts as stopped.
func (s *Session) Exit(ctx context.Context) error {
	defer s.setActive(false)
	return ignoreUnavailable(s.client.Exit(ctx))
}

// Shutdown stops the server. A server that is not running counts as
// stopped.
func (s *Session) Shutdown(ctx context.Context) error {
	defer s.setActive(false)
	return ignoreUnavailable(s.client.Shutdown(ctx))
}

// Completion returns completion candidates at row (1-based) and column
// (0-based).
func (s *Session) Completion(ctx context.Context, source string, row, column int) ([]rpc.CompletionItem, error) {
	var items []rpc.CompletionItem
	err := s.do(ctx, func(ctx context.Context) (err error) {
		items, err = s.client.Completion(ctx, source, row, column)
		return err
	})
	return items, err
}

// Hover documents the symbol at row and column.
func (s *Session) Hover(ctx context.Context, source string, row, column int) (*rpc.HoverResult, error) {
	var hover *rpc.HoverResult
	err := s.do(ctx, func(ctx context.Context) (err error) {
		hover, err = s.client.Hover(ctx, source, row, column)
		return err
	})
	return hover, err
}

// Formatting returns the unified diff that formats source.
func (s *Session) Formatting(ctx context.Context, source string) (string, error) {
	var diff string
	err := s.do(ctx, func(ctx context.Context) (err error) {
		diff, err = s.client.Formatting(ctx, source)
		return err
	})
	return diff, err
}

// Diagnostics returns the problems of source, or of the file at path when
// source is empty.
func (s *Session) Diagnostics(ctx context.Context, source, path string) ([]rpc.Diagnostic, error) {
	var diags []rpc.Diagnostic
	err := s.do(ctx, func(ctx context.Context) (err error) {
		diags, err = s.client.Diagnostics(ctx, source, path)
		return err
	})
	return diags, err
}

// do runs a feature request through the gate. A server that was never
// initialized is initialized and the request retried once; a server that
// is not running is spawned first. A timeout marks the session inactive
// so that the next request starts over.
func (s *Session) do(ctx context.Context, call func(context.Context) error) error {
	if !s.gate.TryEnter() {
		return ErrBusy
	}
	defer s.gate.Leave()

	if !s.Active() {
		if err := s.ensureStarted(ctx); err != nil {
			return err
		}
	}

	err := call(ctx)
	switch {
	case err == nil:
		return nil
	case rpc.IsCode(err, rpc.CodeNotInitialized):
		s.log.Debug("Server not initialized, initializing and retrying")
		if _, err := s.Start(ctx); err != nil {
			return err
		}
	case errors.Is(err, socketclient.ErrServerUnavailable):
		s.setActive(false)
		if err := s.ensureStarted(ctx); err != nil {
			return err
		}
	case rpc.IsCode(err, rpc.CodeRequestTimeout):
		s.setActive(false)
		return err
	default:
		return err
	}

	err = call(ctx)
	if rpc.IsCode(err, rpc.CodeRequestTimeout) || errors.Is(err, socketclient.ErrServerUnavailable) {
		s.setActive(false)
	}
	return err
}

// ensureStarted initializes the server, spawning it when nothing listens.
func (s *Session) ensureStarted(ctx context.Context) error {
	_, err := s.Start(ctx)
	if err == nil || !errors.Is(err, socketclient.ErrServerUnavailable) || s.opts.Spawner == nil {
		return err
	}

	s.log.Info("Server not running, starting it")
	if err := s.opts.Spawner.Spawn(ctx, s.opts.Command); err != nil &&
		!errors.Is(err, lifecycle.ErrAlreadyRunning) && !errors.Is(err, lifecycle.ErrSpawnInProgress) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	_, err = s.Start(ctx)
	return err
}

func (s *Session) setActive(active bool) {
	s.mu.Lock()
	s.active = active
	s.mu.Unlock()
}

func ignoreUnavailable(err error) error {
	if errors.Is(err, socketclient.ErrServerUnavailable) {
		return nil
	}
	return err
}
