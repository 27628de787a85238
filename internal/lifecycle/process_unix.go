//go:build !windows

package lifecycle

import (
	"errors"
	"os"
	"syscall"
)

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) (bool, string) {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, "process not found"
	}
	err = process.Signal(syscall.Signal(0))
	switch {
	case err == nil:
		return true, ""
	case errors.Is(err, syscall.EPERM):
		// exists, owned by someone else
		return true, ""
	case errors.Is(err, os.ErrProcessDone):
		return false, "process has finished"
	default:
		return false, "cannot signal process"
	}
}

// sysProcAttr puts the server in its own process group so that it
// outlives the terminal or editor that started it.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func terminate(process *os.Process) error {
	return process.Signal(syscall.SIGTERM)
}
