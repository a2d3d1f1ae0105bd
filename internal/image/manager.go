// Package image manipulates workload disk images through the libguestfs FUSE
// tools: mounting, copying files in and out, and converting disk images to
// cpio archives for initramfs-based boots.
package image

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/terabiome/golem/pkg/executor"
	"github.com/terabiome/golem/pkg/executor/guestmount"
	"github.com/terabiome/golem/pkg/proc"
)

// Manager manages mounted-image operations. The mount directory is shared
// process state; at most one mount may be in flight per process.
type Manager struct {
	run        *executor.Runner
	waiter     proc.Waiter
	logger     *slog.Logger
	tracer     trace.Tracer
	mountDir   string
	appendsDir string
}

func NewManager(run *executor.Runner, waiter proc.Waiter, logger *slog.Logger, mountDir, appendsDir string) *Manager {
	return &Manager{
		run:        run,
		waiter:     waiter,
		logger:     logger.With(slog.String("component", "image")),
		tracer:     otel.Tracer("golem/image"),
		mountDir:   mountDir,
		appendsDir: appendsDir,
	}
}

// Mount is a transient handle over one mounted image: the mount point plus
// the PID of the guestmount background process.
type Mount struct {
	Path string

	pid     int
	pidFile string
	mgr     *Manager
}

// Mount exposes imgPath's filesystem under mntPath. guestmount records its
// background PID in a side-channel file, which is read back here so Unmount
// can wait for the image to go quiescent.
func (m *Manager) Mount(ctx context.Context, imgPath, mntPath string) (*Mount, error) {
	pidFile := mntPath + ".pid"

	err := guestmount.Mount(ctx, m.run, guestmount.MountOptions{
		ImagePath:  imgPath,
		MountPoint: mntPath,
		PIDFile:    pidFile,
	})
	if err != nil {
		return nil, err
	}

	pid, err := readPIDFile(pidFile)
	if err != nil {
		// Already mounted; try not to leave the mount dangling.
		if unmountErr := guestmount.Unmount(ctx, m.run, mntPath); unmountErr != nil {
			m.logger.Error("unmount after pid-file failure also failed",
				slog.String("mount", mntPath),
				slog.String("error", unmountErr.Error()),
			)
		}
		os.Remove(pidFile)
		return nil, err
	}

	return &Mount{
		Path:    mntPath,
		pid:     pid,
		pidFile: pidFile,
		mgr:     m,
	}, nil
}

// Unmount detaches the image and blocks until it is quiescent. guestunmount
// returns while a background task is still flushing to the image; returning
// before that task exits would let callers read or copy a half-written
// image, so the liveness wait is part of the unmount contract.
func (mt *Mount) Unmount(ctx context.Context) error {
	if err := guestmount.Unmount(ctx, mt.mgr.run, mt.Path); err != nil {
		return err
	}

	if err := os.Remove(mt.pidFile); err != nil {
		return fmt.Errorf("cannot remove pid file: %w", err)
	}

	return mt.mgr.waiter.WaitForDeath(ctx, mt.pid)
}

// WithMounted mounts imgPath at mntPath, runs body against the mount point,
// and unmounts on every exit path. A body error propagates after cleanup;
// an unmount error surfaces only when the body succeeded.
func (m *Manager) WithMounted(ctx context.Context, imgPath, mntPath string, body func(mountPoint string) error) error {
	mount, err := m.Mount(ctx, imgPath, mntPath)
	if err != nil {
		return err
	}

	bodyErr := body(mount.Path)
	unmountErr := mount.Unmount(ctx)

	if bodyErr != nil {
		if unmountErr != nil {
			m.logger.Error("unmount failed while handling earlier error",
				slog.String("mount", mount.Path),
				slog.String("error", unmountErr.Error()),
			)
		}
		return bodyErr
	}
	return unmountErr
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("cannot read guestmount pid file: %w", err)
	}

	line, _, _ := strings.Cut(string(data), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("malformed guestmount pid file %s: %w", path, err)
	}
	return pid, nil
}
