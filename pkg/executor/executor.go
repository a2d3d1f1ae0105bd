package executor

import (
	"context"
	"io"
)

// Executor spawns external programs. It is the single process-spawning choke
// point for the module; every other package goes through a Runner built on
// top of it.
type Executor interface {
	// Execute runs command with args in dir (empty means the process's
	// current directory), wiring the child's stdout and stderr to the given
	// writers, and returns the child's exit code.
	Execute(ctx context.Context, stdout, stderr io.Writer, dir, command string, args ...string) (exitCode int, err error)
	Name() string
}

type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Error    error
}
