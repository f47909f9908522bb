//go:build !windows

package cmd

import (
	"errors"
	"os"
	"syscall"
)

// shutdownSignals are the signals serve treats as a stop request.
func shutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// alive reports whether pid names a running process. EPERM means the
// process exists but belongs to someone else.
func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// requestStop asks pid to shut down with SIGTERM.
func requestStop(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}
