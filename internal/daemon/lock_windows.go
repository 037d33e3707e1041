//go:build windows

package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// Only os.Kill is delivered reliably on Windows, so a graceful stop is a kill.
const (
	termSignal = syscall.SIGKILL
	killSignal = syscall.SIGKILL
)

// Detach puts cmd in its own process group so console Ctrl+C in the parent
// does not reach the server.
func Detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func signalProcess(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}
