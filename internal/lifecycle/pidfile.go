package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Pidfile records the PID of a running server.
type Pidfile struct {
	path string
}

// NewPidfile creates a pidfile handle for path.
func NewPidfile(path string) *Pidfile {
	return &Pidfile{path: path}
}

// Write records the current process.
func (p *Pidfile) Write() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create pidfile directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write pidfile: %w", err)
	}
	return nil
}

// Read returns the recorded PID.
func (p *Pidfile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read pidfile: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in pidfile: %w", err)
	}
	return pid, nil
}

// Alive reports whether the recorded process still runs.
func (p *Pidfile) Alive() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	running, _ := isProcessRunning(pid)
	return pid, running
}

// Remove deletes the pidfile.
func (p *Pidfile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pidfile: %w", err)
	}
	return nil
}

// Path returns the pidfile path.
func (p *Pidfile) Path() string {
	return p.path
}
