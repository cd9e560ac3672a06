//go:build !windows

package supervisor

import (
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// setProcessGroup makes the child the leader of a new session (and thus a
// new process group) so the whole judge tree can be signalled at once.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// killTree terminates the child's whole process group: SIGTERM first, then
// a polled grace window, then SIGKILL if anything is still alive. If
// process-group signalling is unavailable (permission, already exited) it
// falls back to killing only the direct child.
func (s *Supervisor) killTree(pid int, fallback *os.Process) {
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		s.logger.Debugw("Process group lookup failed, falling back to direct kill",
			"pid", pid, "error", err)
		s.killDirect(fallback)
		return
	}

	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		s.logger.Debugw("SIGTERM to process group failed, falling back to direct kill",
			"pgid", pgid, "error", err)
		s.killDirect(fallback)
		return
	}

	// Poll for exit during the grace window before escalating.
	deadline := time.Now().Add(s.opts.KillGrace)
	for time.Now().Before(deadline) {
		alive, err := process.PidExists(int32(pid))
		if err != nil || !alive {
			return
		}
		time.Sleep(s.opts.PollInterval)
	}

	s.logger.Warnw("Process group survived SIGTERM grace window, sending SIGKILL",
		"pgid", pgid, "grace", s.opts.KillGrace)
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		s.killDirect(fallback)
	}
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
