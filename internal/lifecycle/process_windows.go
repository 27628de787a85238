//go:build windows

package lifecycle

import (
	"os"
	"syscall"
)

const createNoWindow = 0x08000000

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) (bool, string) {
	handle, err := syscall.OpenProcess(syscall.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return false, "process not found"
	}
	syscall.CloseHandle(handle)
	return true, ""
}

// sysProcAttr starts the server without a console window.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow | syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

func terminate(process *os.Process) error {
	return process.Kill()
}
