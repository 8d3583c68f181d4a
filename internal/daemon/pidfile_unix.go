//go:build !windows

package daemon

import (
	"fmt"
	"syscall"
	"time"
)

// IsRunning reports the PID recorded in the file and whether that process is
// still alive. A missing or unreadable file counts as not running.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	// A zero signal probes for existence without delivering anything.
	return pid, syscall.Kill(pid, 0) == nil
}

// Stop terminates the recorded process, SIGTERM first. If it is still alive
// once the grace period runs out it is killed. The returned flag reports
// whether escalation to SIGKILL was needed.
func (p *PIDFile) Stop(grace time.Duration) (bool, error) {
	pid, err := p.Read()
	if err != nil {
		return false, fmt.Errorf("read PID file: %w", err)
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return false, fmt.Errorf("terminate process %d: %w", pid, err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if syscall.Kill(pid, 0) != nil {
			return false, nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	if syscall.Kill(pid, 0) != nil {
		return false, nil
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return true, fmt.Errorf("kill process %d: %w", pid, err)
	}
	return true, nil
}
