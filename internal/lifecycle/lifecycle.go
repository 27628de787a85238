// Package lifecycle starts, probes and stops the analysis server process
// on behalf of a client.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/pytools/internal/consts"
	"github.com/codefionn/pytools/internal/logger"
)

var (
	// ErrSpawnInProgress is returned when another spawn, in this process or
	// another one, has not finished yet.
	ErrSpawnInProgress = errors.New("server spawn already in progress")
	// ErrAlreadyRunning is returned when the spawned server found its
	// address taken, usually by a server started earlier.
	ErrAlreadyRunning = errors.New("server already running")
)

// StartupError reports a server that exited during the grace window.
type StartupError struct {
	ExitCode int
	Err      error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("server exited during startup with code %d", e.ExitCode)
}

func (e *StartupError) Unwrap() error { return e.Err }

// Command describes how to start the server.
type Command struct {
	Args []string
	Dir  string
	Env  map[string]string // overlaid on the current environment
}

// Shutdowner asks a running server to stop.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Options configures a Manager.
type Options struct {
	Grace    time.Duration // how long a fresh server is watched for an early exit
	LockPath string        // spawn lock shared with other clients; empty disables it
	PidPath  string        // pidfile written by the server
	Client   Shutdowner
}

// Manager spawns and stops the server.
type Manager struct {
	opts Options
	mu   sync.Mutex
	log  *logger.Logger
}

// NewManager creates a manager.
func NewManager(opts Options) *Manager {
	if opts.Grace <= 0 {
		opts.Grace = consts.Timeout5Seconds
	}
	return &Manager{
		opts: opts,
		log:  logger.Global().WithPrefix("lifecycle"),
	}
}

// Spawn starts the server and watches it for the grace window. A server
// that is still running afterwards is left detached and Spawn returns nil.
func (m *Manager) Spawn(ctx context.Context, cmd Command) error {
	if len(cmd.Args) == 0 {
		return fmt.Errorf("empty server command")
	}
	if !m.mu.TryLock() {
		return ErrSpawnInProgress
	}
	defer m.mu.Unlock()

	if m.opts.LockPath != "" {
		lock := NewSpawnLock(m.opts.LockPath)
		if err := lock.TryAcquire(); err != nil {
			if errors.Is(err, ErrLocked) {
				m.log.Debug("Spawn skipped: %v", err)
				return ErrSpawnInProgress
			}
			return err
		}
		defer lock.Release()
	}

	c := exec.Command(cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Env = mergeEnv(os.Environ(), cmd.Env)
	c.SysProcAttr = sysProcAttr()

	m.log.Info("Starting server: %s", strings.Join(cmd.Args, " "))
	if err := c.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	exited := make(chan error, 1)
	go func() { exited <- c.Wait() }()

	timer := time.NewTimer(m.opts.Grace)
	defer timer.Stop()

	select {
	case err := <-exited:
		code := c.ProcessState.ExitCode()
		if code == consts.ExitOSError {
			m.log.Info("Server address already in use, assuming a running server")
			return ErrAlreadyRunning
		}
		m.log.Warn("Server exited during startup with code %d", code)
		return &StartupError{ExitCode: code, Err: err}
	case <-timer.C:
		m.log.Info("Server started with PID %d", c.Process.Pid)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown asks the server to stop. Failures are logged and swallowed: a
// server that cannot be reached is as good as stopped.
func (m *Manager) Shutdown(ctx context.Context) {
	if m.opts.Client == nil {
		return
	}
	if err := m.opts.Client.Shutdown(ctx); err != nil {
		m.log.Debug("Shutdown request failed: %v", err)
	}
}

// Terminate signals the process recorded in the pidfile.
func (m *Manager) Terminate() error {
	if m.opts.PidPath == "" {
		return fmt.Errorf("no pidfile configured")
	}
	pidfile := NewPidfile(m.opts.PidPath)
	pid, alive := pidfile.Alive()
	if !alive {
		return fmt.Errorf("no running server recorded in %s", pidfile.Path())
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := terminate(process); err != nil {
		return fmt.Errorf("failed to terminate process %d: %w", pid, err)
	}
	m.log.Info("Sent termination signal to PID %d", pid)
	return nil
}

// Probe reports whether something accepts connections at addr.
func Probe(ctx context.Context, addr string) bool {
	ctx, cancel := context.WithTimeout(ctx, consts.Timeout1Second)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// mergeEnv overlays overrides on base, a list of KEY=VALUE entries.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; !ok {
			out = append(out, kv)
		}
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}
