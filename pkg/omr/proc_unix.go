//go:build unix

package omr

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the engine in its own process group and makes
// cancellation kill the whole group, so JVM children do not outlive a
// timed-out run.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
