package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLocked is returned when another live process holds the spawn lock.
var ErrLocked = errors.New("another process is spawning the server")

// staleAfter is the age after which a lock is ignored even if its owner
// still runs.
const staleAfter = time.Minute

// SpawnLock is a file-based lock that keeps two clients from starting a
// server at the same time. The file holds the owner PID and a timestamp.
type SpawnLock struct {
	path   string
	file   *os.File
	locked bool
}

// NewSpawnLock creates a lock at path.
func NewSpawnLock(path string) *SpawnLock {
	return &SpawnLock{path: path}
}

// TryAcquire takes the lock, replacing a stale one. It fails with ErrLocked
// when a live process holds it.
func (l *SpawnLock) TryAcquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if os.IsExist(err) {
		stale, reason := l.stale()
		if !stale {
			return fmt.Errorf("%w: %s", ErrLocked, reason)
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock (%s): %w", reason, err)
		}
		file, err = os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
		if os.IsExist(err) {
			return fmt.Errorf("%w: lock was taken concurrently", ErrLocked)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to create lock: %w", err)
	}

	l.file = file
	l.locked = true
	content := fmt.Sprintf("%d\n%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	if _, err := file.WriteString(content); err != nil {
		l.Release()
		return fmt.Errorf("failed to write lock: %w", err)
	}
	return nil
}

// stale reports whether the existing lock can be taken over.
func (l *SpawnLock) stale() (bool, string) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return true, "cannot read lock"
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return true, "invalid PID in lock"
	}
	if running, reason := isProcessRunning(pid); !running {
		return true, reason
	}
	if len(lines) >= 2 {
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(lines[1])); err == nil && time.Since(ts) > staleAfter {
			return true, "lock is older than " + staleAfter.String()
		}
	}
	return false, fmt.Sprintf("process with PID %d holds the lock", pid)
}

// Release frees the lock. Releasing an unheld lock is a no-op.
func (l *SpawnLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false

	var errs []error
	if l.file != nil {
		errs = append(errs, l.file.Close())
		l.file = nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove lock: %w", err))
	}
	return errors.Join(errs...)
}

// Locked returns true if the lock is held.
func (l *SpawnLock) Locked() bool {
	return l.locked
}
