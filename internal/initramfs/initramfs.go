// Package initramfs performs the one-time workspace setup: the skeleton
// directory tree for the default initramfs, a busybox build to populate it,
// and the board patches for the default kernel source.
package initramfs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/terabiome/golem/pkg/executor"
	"github.com/terabiome/golem/pkg/executor/fileops"
)

// rootDirs is the fixed initramfs skeleton. These are empty directories, so
// version control cannot carry them; they get created on first setup.
var rootDirs = []string{
	"bin", "dev", "etc", "proc", "root", "sbin", "sys",
	"usr/bin", "usr/sbin", "mnt/root",
}

type Options struct {
	Root          string // initramfs root tree
	BusyboxDir    string // busybox source checkout
	BusyboxConfig string // checked-in busybox build configuration
	BoardDir      string // board directory holding *.patch files
	LinuxDir      string // kernel source tree the patches apply to
	Jobs          int    // make parallelism
}

type Initializer struct {
	exec   executor.Executor
	run    *executor.Runner
	logger *slog.Logger
	tracer trace.Tracer
	opts   Options
}

func NewInitializer(exec executor.Executor, run *executor.Runner, logger *slog.Logger, opts Options) *Initializer {
	return &Initializer{
		exec:   exec,
		run:    run,
		logger: logger.With(slog.String("component", "initramfs")),
		tracer: otel.Tracer("golem/initramfs"),
		opts:   opts,
	}
}

// Setup is idempotent: directories that already exist are skipped and the
// busybox build is re-run every time (make decides whether there is work).
// Patch application degrades to logging rather than failing the setup.
func (i *Initializer) Setup(ctx context.Context) error {
	ctx, span := i.tracer.Start(ctx, "initramfs.Setup")
	defer span.End()

	if _, err := i.createRootTree(); err != nil {
		return err
	}

	if err := i.buildBusybox(ctx); err != nil {
		return err
	}

	return i.applyPatches(ctx)
}

// createRootTree builds the skeleton, returning the directories it actually
// created.
func (i *Initializer) createRootTree() ([]string, error) {
	var created []string
	for _, d := range rootDirs {
		path := filepath.Join(i.opts.Root, d)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return created, fmt.Errorf("cannot stat %s: %w", path, err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return created, fmt.Errorf("cannot create %s: %w", path, err)
		}
		created = append(created, path)
	}
	return created, nil
}

func (i *Initializer) buildBusybox(ctx context.Context) error {
	i.logger.Info("building busybox (used in initramfs)")

	dotConfig := filepath.Join(i.opts.BusyboxDir, ".config")
	if err := fileops.CopyFile(ctx, i.run, i.opts.BusyboxConfig, dotConfig); err != nil {
		return err
	}

	jobs := []string{"make", "-j" + strconv.Itoa(i.opts.Jobs)}
	if err := i.run.Run(ctx, jobs, executor.WithDir(i.opts.BusyboxDir)); err != nil {
		return err
	}

	binary := filepath.Join(i.opts.BusyboxDir, "busybox")
	return fileops.CopyFile(ctx, i.run, binary, filepath.Join(i.opts.Root, "bin")+"/")
}

// applyPatches applies the board's kernel patches in name order. A dirty
// kernel tree skips patching entirely: the user has local changes and
// clobbering them would do more harm than missing a patch. A failing patch
// stops the remaining ones and is logged, leaving the tree partially patched.
func (i *Initializer) applyPatches(ctx context.Context) error {
	patches, err := filepath.Glob(filepath.Join(i.opts.BoardDir, "*.patch"))
	if err != nil {
		return fmt.Errorf("cannot list board patches: %w", err)
	}
	sort.Strings(patches)

	dirty, err := i.treeDirty(ctx)
	if err != nil {
		return err
	}

	if dirty {
		i.logger.Warn("kernel source dirty, skipping patches; check manually that these have been applied (or are not needed)",
			slog.Any("patches", patches),
		)
		return nil
	}

	i.logger.Info("applying kernel patches to default kernel source")
	for _, patch := range patches {
		i.logger.Info("applying patch", slog.String("patch", patch))
		if err := i.run.Run(ctx, []string{"git", "apply", patch}, executor.WithDir(i.opts.LinuxDir)); err != nil {
			i.logger.Error("failed to apply patches; if the default kernel changed, re-evaluate the patch set",
				slog.String("patch", patch),
				slog.String("error", err.Error()),
			)
			return nil
		}
	}
	return nil
}

func (i *Initializer) treeDirty(ctx context.Context) (bool, error) {
	res, err := executor.RunAndCapture(ctx, i.exec, i.opts.LinuxDir, "git", "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("cannot check kernel tree state: %w", err)
	}
	if res.ExitCode != 0 {
		return false, &executor.CommandError{Cmd: "git status --porcelain", ExitCode: res.ExitCode}
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}
