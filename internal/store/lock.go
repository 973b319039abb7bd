package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const lockFileName = "reflect.lock"

// ReflectLock is a PID lock file that keeps two reflection passes from
// running against the same store concurrently. The memory CAS catches the
// race anyway; the lock turns it into a friendly up-front error.
type ReflectLock struct {
	path string
}

// NewReflectLock creates a lock manager for the given store directory.
func NewReflectLock(dir string) *ReflectLock {
	return &ReflectLock{path: filepath.Join(dir, lockFileName)}
}

// Acquire takes the lock, cleaning up stale locks left by dead processes.
// Returns an error when another live process holds it.
func (l *ReflectLock) Acquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		_, writeErr := fmt.Fprintf(f, "%d", os.Getpid())
		f.Close()
		if writeErr != nil {
			os.Remove(l.path)
			return fmt.Errorf("writing lock file: %w", writeErr)
		}
		return nil
	}
	if !os.IsExist(err) {
		return fmt.Errorf("creating lock file: %w", err)
	}

	data, readErr := os.ReadFile(l.path)
	if readErr != nil {
		return fmt.Errorf("reading existing lock file: %w", readErr)
	}

	pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if parseErr == nil && processExists(pid) {
		return fmt.Errorf("reflection already running (PID %d)", pid)
	}

	// Stale or garbled lock: remove and try once more.
	if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
		return fmt.Errorf("removing stale lock file: %w", removeErr)
	}
	f, err = os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("lock acquired by another process during retry")
		}
		return fmt.Errorf("creating lock file on retry: %w", err)
	}
	_, writeErr := fmt.Fprintf(f, "%d", os.Getpid())
	f.Close()
	if writeErr != nil {
		os.Remove(l.path)
		return fmt.Errorf("writing lock file on retry: %w", writeErr)
	}
	return nil
}

// Release removes the lock file. Releasing an unheld lock is a no-op.
func (l *ReflectLock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

// processExists checks for a live process with signal 0.
func processExists(pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
