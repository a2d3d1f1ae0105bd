// Package guestmount builds the argument lists for the libguestfs FUSE mount
// tools. The image is always exposed as its first partition (/dev/sda).
package guestmount

import (
	"context"
	"fmt"

	"github.com/terabiome/golem/pkg/executor"
)

type MountOptions struct {
	ImagePath  string
	MountPoint string
	PIDFile    string
}

// Mount mounts an image. guestmount daemonizes after the filesystem is ready
// and records the background process's PID in opts.PIDFile.
func Mount(ctx context.Context, run *executor.Runner, opts MountOptions) error {
	args := []string{
		"guestmount",
		"--pid-file", opts.PIDFile,
		"-a", opts.ImagePath,
		"-m", "/dev/sda",
		opts.MountPoint,
	}

	if err := run.Run(ctx, args); err != nil {
		return fmt.Errorf("guestmount of %s failed: %w", opts.ImagePath, err)
	}
	return nil
}

// Unmount detaches a mount point created by Mount. The background guestmount
// process keeps flushing to the image for a short window after this returns;
// callers must wait for the recorded PID to exit before touching the image.
func Unmount(ctx context.Context, run *executor.Runner, mountPoint string) error {
	if err := run.Run(ctx, []string{"guestunmount", mountPoint}); err != nil {
		return fmt.Errorf("guestunmount of %s failed: %w", mountPoint, err)
	}
	return nil
}
