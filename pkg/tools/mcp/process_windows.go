//go:build windows

package mcp

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// cancelProcess asks the server's process group to exit with CTRL+BREAK and
// kills the server itself if it ignores it.
func cancelProcess(cmd *exec.Cmd) error {
	if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(cmd.Process.Pid)); err == nil {
		return nil
	}
	return cmd.Process.Kill()
}
