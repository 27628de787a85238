package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/pytools/internal/consts"
	"github.com/codefionn/pytools/internal/lifecycle"
	"github.com/codefionn/pytools/internal/socketserver"
)

// TestHelperProcess is not a real test. It runs the server with the
// arguments after "--" when re-executed by helperCommand.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	os.Exit(exitCode(run(args)))
}

func helperCommand(args ...string) lifecycle.Command {
	return lifecycle.Command{
		Args: append([]string{os.Args[0], "-test.run=TestHelperProcess", "--"}, args...),
		Env:  map[string]string{"GO_WANT_HELPER_PROCESS": "1"},
	}
}

// serverArgs points the server at port and keeps every file it writes in dir.
func serverArgs(dir string, port int) []string {
	return []string{
		"-config", filepath.Join(dir, "missing.json"),
		"-host", "127.0.0.1",
		"-port", strconv.Itoa(port),
		"-log-level", "none",
		"-log-path", filepath.Join(dir, "server.log"),
	}
}

func holdPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().(*net.TCPAddr).Port
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, consts.ExitSuccess},
		{"address in use", socketserver.ErrAddrInUse, consts.ExitOSError},
		{"wrapped address in use", fmt.Errorf("listen: %w", socketserver.ErrAddrInUse), consts.ExitOSError},
		{"other failure", errors.New("invalid config"), consts.ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestParseArgs(t *testing.T) {
	opts, err := parseArgs([]string{"-port", "9000", "-workspace", "/src"})
	require.NoError(t, err)
	assert.Equal(t, 9000, opts.port)
	assert.Equal(t, "/src", opts.workspace)

	opts, err = parseArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, -1, opts.port, "the config port applies unless -port is given")

	_, err = parseArgs([]string{"extra"})
	assert.Error(t, err)
}

func TestRunAddressInUse(t *testing.T) {
	port := holdPort(t)

	err := run(serverArgs(t.TempDir(), port))
	require.ErrorIs(t, err, socketserver.ErrAddrInUse)
	assert.Equal(t, consts.ExitOSError, exitCode(err))
}

func TestProcessExitsWithOSErrorWhenAddressInUse(t *testing.T) {
	port := holdPort(t)

	helper := helperCommand(serverArgs(t.TempDir(), port)...)
	cmd := exec.Command(helper.Args[0], helper.Args[1:]...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")

	err := cmd.Run()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, consts.ExitOSError, exitErr.ExitCode())
}

func TestSpawnReportsAlreadyRunning(t *testing.T) {
	port := holdPort(t)

	m := lifecycle.NewManager(lifecycle.Options{Grace: 10 * time.Second})
	err := m.Spawn(context.Background(), helperCommand(serverArgs(t.TempDir(), port)...))
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyRunning)
}

func TestRunHelp(t *testing.T) {
	assert.NoError(t, run([]string{"-help"}))
}
