package executor

import (
	"bytes"
	"context"
)

// RunAndCapture executes a command and collects its output, for callers that
// inspect what the command printed rather than just whether it succeeded.
func RunAndCapture(ctx context.Context, exec Executor, dir, command string, args ...string) (*Result, error) {
	var outBuf, errBuf bytes.Buffer

	exitCode, err := exec.Execute(ctx, &outBuf, &errBuf, dir, command, args...)

	return &Result{
		ExitCode: exitCode,
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
		Error:    err,
	}, err
}
