package image

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/terabiome/golem/pkg/executor/fileops"
)

// ErrInvalidDirection reports a Direction other than In or Out.
var ErrInvalidDirection = errors.New("direction must be \"in\" or \"out\"")

// FileSpec describes one transfer: a source path (may contain globs when
// copying in) and a destination path.
type FileSpec struct {
	Src string
	Dst string
}

// Direction says which side of the mount the destination is on.
type Direction string

const (
	// In copies host files into the mounted image.
	In Direction = "in"
	// Out copies files from the mounted image to the host.
	Out Direction = "out"
)

// CopyFiles copies every spec into or out of the image within a single
// mount/unmount cycle. Batching matters: each cycle pays a full mount plus a
// quiescence wait, so one cycle covers the whole list.
func (m *Manager) CopyFiles(ctx context.Context, imgPath string, specs []FileSpec, direction Direction) error {
	ctx, span := m.tracer.Start(ctx, "image.CopyFiles")
	defer span.End()

	if direction != In && direction != Out {
		return fmt.Errorf("invalid direction %q: %w", direction, ErrInvalidDirection)
	}

	if err := fileops.CreateDirectory(ctx, m.run, m.mountDir); err != nil {
		return err
	}

	m.logger.Debug("copying files",
		slog.String("image", imgPath),
		slog.String("direction", string(direction)),
		slog.Int("count", len(specs)),
	)

	return m.WithMounted(ctx, imgPath, m.mountDir, func(mountPoint string) error {
		for _, spec := range specs {
			// cp -a keeps ownership and modes; the FUSE layer maps root
			// ownership inside the image to the invoking user outside it.
			var err error
			switch direction {
			case In:
				err = fileops.CopyTree(ctx, m.run, spec.Src, joinUnderMount(mountPoint, spec.Dst))
			case Out:
				err = fileops.CopyTree(ctx, m.run, joinUnderMount(mountPoint, spec.Src), spec.Dst)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyOverlay copies everything under overlayDir onto the image's root in
// one transfer.
func (m *Manager) ApplyOverlay(ctx context.Context, imgPath, overlayDir string) error {
	m.logger.Info("applying overlay",
		slog.String("image", imgPath),
		slog.String("overlay", overlayDir),
	)

	specs := []FileSpec{{Src: filepath.Join(overlayDir, "*"), Dst: "/"}}
	return m.CopyFiles(ctx, imgPath, specs, In)
}

// joinUnderMount appends an image-side path under the mount point. The
// image-side path is absolute-style: "/etc" means mountPoint/etc, never the
// host's /etc. Paths without a leading slash behave identically (relative
// append).
func joinUnderMount(mountPoint, p string) string {
	return filepath.Join(mountPoint, p)
}
