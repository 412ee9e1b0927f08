//go:build unix

package exec

import (
	"os/exec"
	"syscall"
)

// killProcessGroup runs the command in its own process group and kills the
// whole group on cancellation, so children started by the shell die too.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
