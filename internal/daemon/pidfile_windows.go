//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// IsRunning reports the PID recorded in the file and whether that process is
// still alive. FindProcess succeeds for any PID on Windows, so liveness is
// probed with a zero signal.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	return pid, proc.Signal(syscall.Signal(0)) == nil
}

// Stop terminates the recorded process. Windows cannot deliver SIGTERM, so
// the process is killed outright and the grace period goes unused.
func (p *PIDFile) Stop(time.Duration) (bool, error) {
	pid, err := p.Read()
	if err != nil {
		return false, fmt.Errorf("read PID file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return true, fmt.Errorf("kill process %d: %w", pid, err)
	}
	return true, nil
}
