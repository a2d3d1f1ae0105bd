package fileops

import (
	"context"
	"fmt"

	"github.com/terabiome/golem/pkg/executor"
)

func CreateDirectory(ctx context.Context, run *executor.Runner, path string) error {
	if err := run.Run(ctx, []string{"mkdir", "-p", path}); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

func CopyFile(ctx context.Context, run *executor.Runner, src, dst string) error {
	if err := run.Run(ctx, []string{"cp", src, dst}); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// CopyTree copies src to dst recursively, preserving attributes. src goes
// through the shell so it may contain globs.
func CopyTree(ctx context.Context, run *executor.Runner, src, dst string) error {
	if err := run.RunShell(ctx, "cp -a "+src+" "+dst); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func RemoveFile(ctx context.Context, run *executor.Runner, path string) error {
	if err := run.Run(ctx, []string{"rm", "-f", path}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
