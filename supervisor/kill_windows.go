//go:build windows

package supervisor

import (
	"os"
	"os/exec"
)

// setProcessGroup is a no-op on Windows; process-group signalling is a
// POSIX facility. The watchdog still bounds the direct child's lifetime.
func setProcessGroup(cmd *exec.Cmd) {}

// killTree kills the direct child. Grandchildren are not reaped on Windows.
func (s *Supervisor) killTree(pid int, fallback *os.Process) {
	s.killDirect(fallback)
}

// killDirect kills only the direct child process
func (s *Supervisor) killDirect(proc *os.Process) {
	if proc == nil {
		return
	}
	if err := proc.Kill(); err != nil {
		s.logger.Debugw("Direct kill failed", "pid", proc.Pid, "error", err)
	}
}
