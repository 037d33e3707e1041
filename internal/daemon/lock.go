package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrRunning is returned by Acquire when a live process already holds the lock.
var ErrRunning = errors.New("server already running")

// Lock is a PID file that marks a single running `rounds serve` process.
type Lock struct {
	Path string
}

// NewLock returns a Lock stored at path.
func NewLock(path string) *Lock {
	return &Lock{Path: path}
}

// Acquire records the current process as the lock owner. A lock left behind
// by a dead process is taken over.
func (l *Lock) Acquire() error {
	if pid, alive := l.Owner(); alive && pid != os.Getpid() {
		return fmt.Errorf("%w (pid %d)", ErrRunning, pid)
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	return os.WriteFile(l.Path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// Release removes the lock if the current process owns it.
func (l *Lock) Release() error {
	pid, err := l.pid()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err == nil && pid != os.Getpid() {
		return fmt.Errorf("lock owned by pid %d", pid)
	}
	return os.Remove(l.Path)
}

// Owner returns the PID recorded in the lock and whether that process is
// still alive. A missing or unreadable lock reports (0, false).
func (l *Lock) Owner() (int, bool) {
	pid, err := l.pid()
	if err != nil {
		return 0, false
	}
	return pid, processAlive(pid)
}

// Stop signals the lock owner. The lock file is cleared when the owner is
// already gone.
func (l *Lock) Stop(sig syscall.Signal) (int, error) {
	pid, alive := l.Owner()
	if pid == 0 {
		return 0, errors.New("server not running")
	}
	if !alive {
		_ = os.Remove(l.Path)
		return pid, fmt.Errorf("server not running (stale pid %d)", pid)
	}
	if err := signalProcess(pid, sig); err != nil {
		return pid, fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return pid, nil
}

// Terminate asks the lock owner to shut down gracefully.
func (l *Lock) Terminate() (int, error) { return l.Stop(termSignal) }

// Kill stops the lock owner without waiting for it to drain.
func (l *Lock) Kill() (int, error) { return l.Stop(killSignal) }

func (l *Lock) pid() (int, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid lock file %s", l.Path)
	}
	return pid, nil
}
