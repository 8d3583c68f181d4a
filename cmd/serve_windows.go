//go:build windows

package cmd

import (
	"os"
	"os/exec"
)

// setDaemonAttrs is a no-op on Windows, which has no session concept to
// detach into.
func setDaemonAttrs(_ *exec.Cmd) {}

// shutdownSignals lists the signals that trigger graceful shutdown.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
