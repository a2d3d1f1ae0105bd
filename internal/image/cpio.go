package image

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/terabiome/golem/pkg/executor"
	"github.com/terabiome/golem/pkg/executor/fileops"
)

// ToCpio converts a disk image into a cpio archive suitable for use as an
// initramfs. The archive is built from inside a mount of the image, then a
// per-distro append blob is concatenated on: disk-based distros need extra
// init plumbing to boot from an initramfs, and carrying that delta as a cpio
// append keeps one code path for both image kinds.
func (m *Manager) ToCpio(ctx context.Context, distro, srcImg, dstCpio string) error {
	ctx, span := m.tracer.Start(ctx, "image.ToCpio")
	defer span.End()

	m.logger.Info("converting image to cpio",
		slog.String("image", srcImg),
		slog.String("cpio", dstCpio),
		slog.String("distro", distro),
	)

	if err := fileops.CreateDirectory(ctx, m.run, m.mountDir); err != nil {
		return err
	}

	err := m.WithMounted(ctx, srcImg, m.mountDir, func(mountPoint string) error {
		cmd := "find -print0 | cpio --owner root:root --null -ov --format=newc > " + dstCpio
		return m.run.RunShell(ctx, cmd, executor.WithDir(mountPoint))
	})
	if err != nil {
		return err
	}

	appendBlob := filepath.Join(m.appendsDir, distro+"-initramfs-append.cpio")
	if _, err := os.Stat(appendBlob); err != nil {
		m.logger.Debug("no initramfs append blob for distro", slog.String("distro", distro))
		return nil
	}

	// Best effort, matching the blob's optional nature.
	if err := m.run.RunShell(ctx, fmt.Sprintf("cat %s >> %s", appendBlob, dstCpio), executor.NoCheck()); err != nil {
		return err
	}
	return nil
}
