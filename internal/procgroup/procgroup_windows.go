//go:build windows

package procgroup

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Prepare configures cmd to start in a new process group. Windows has no
// session/pgid concept identical to Unix; CREATE_NEW_PROCESS_GROUP is the
// nearest equivalent unit for signal-like delivery (Terminate/Kill emulate
// it by killing the tree via taskkill).
func Prepare(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// PGID returns the leader pid; on Windows there is no separate pgid, the
// leader's pid is used as the tree-kill target.
func PGID(cmd *exec.Cmd) int {
	return cmd.Process.Pid
}

// Terminate asks the process tree rooted at pgid to exit. Windows has no
// SIGTERM; taskkill without /F requests a graceful close where the target
// supports it, falling back to the same wait/SIGKILL-equivalent escalation
// in the Supervisor.
func Terminate(pgid int) error {
	return runTaskkill(pgid, false)
}

// Kill force-terminates the process tree rooted at pgid.
func Kill(pgid int) error {
	return runTaskkill(pgid, true)
}

func runTaskkill(pgid int, force bool) error {
	args := []string{"/T", "/PID", fmt.Sprint(pgid)}
	if force {
		args = append(args, "/F")
	}
	cmd := exec.Command("taskkill", args...)
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 128 {
			return nil // process already gone
		}
		return fmt.Errorf("taskkill pgid %d: %w", pgid, err)
	}
	return nil
}

// ExitStatus classifies a process's wait result. Windows has no SIGTERM
// delivery signal visible via ProcessState, so terminatedBySIGTERM is
// always false; callers fall back to the exit code alone.
func ExitStatus(state *os.ProcessState) (exitCode int, terminatedBySIGTERM bool) {
	if state == nil {
		return -1, false
	}
	return state.ExitCode(), false
}
