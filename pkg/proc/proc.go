// Package proc probes arbitrary processes, including ones that are not
// children of the current process and therefore cannot be reaped with the
// usual wait facilities.
package proc

import (
	"errors"
	"syscall"
)

// Alive reports whether a process with the given PID currently exists. The
// probe is signal 0: ESRCH means the process is gone, EPERM means it exists
// but belongs to someone else.
func Alive(pid int) bool {
	err := syscall.Kill(pid, syscall.Signal(0))
	if err == nil {
		return true
	}
	return !errors.Is(err, syscall.ESRCH)
}
