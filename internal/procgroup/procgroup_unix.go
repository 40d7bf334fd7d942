//go:build !windows

// Package procgroup isolates the Unix-specific process-group control that
// the Process Supervisor relies on: new session on spawn, killpg on stop.
// This is load-bearing per spec.md §9 — a plain kill on the leader leaks
// children; only signaling the whole process group reaches the descendant
// tree.
package procgroup

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Prepare configures cmd to start in a new session/process group, so that
// Terminate/Kill below can reach its entire descendant tree.
func Prepare(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// PGID returns the process group id for a started command. Because the
// child was started with Setsid, its pgid equals its pid.
func PGID(cmd *exec.Cmd) int {
	return cmd.Process.Pid
}

// Terminate sends SIGTERM to the process group. A missing process is
// treated as success (§7 "Stop-signal target gone: treated as success").
func Terminate(pgid int) error {
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		if isProcessGone(err) {
			return nil
		}
		return fmt.Errorf("sigterm process group %d: %w", pgid, err)
	}
	return nil
}

// Kill sends SIGKILL to the process group.
func Kill(pgid int) error {
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		if isProcessGone(err) {
			return nil
		}
		return fmt.Errorf("sigkill process group %d: %w", pgid, err)
	}
	return nil
}

func isProcessGone(err error) bool {
	return err == syscall.ESRCH || os.IsNotExist(err)
}

// ExitStatus classifies a process's wait result into one of the spec's
// terminal states: (exitCode, terminatedBySIGTERM).
func ExitStatus(state *os.ProcessState) (exitCode int, terminatedBySIGTERM bool) {
	if state == nil {
		return -1, false
	}
	if status, ok := state.Sys().(syscall.WaitStatus); ok {
		if status.Signaled() {
			return -int(status.Signal()), status.Signal() == syscall.SIGTERM
		}
		return status.ExitStatus(), false
	}
	return state.ExitCode(), false
}
