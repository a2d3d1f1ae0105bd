package initramfs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terabiome/golem/pkg/executor"
)

// fakeExec records commands and fakes git output. Everything else succeeds
// silently.
type fakeExec struct {
	mu        sync.Mutex
	commands  []string
	gitStatus string         // stdout of git status --porcelain
	fail      map[string]int // command prefix -> exit code
}

func newFakeExec() *fakeExec {
	return &fakeExec{fail: map[string]int{}}
}

func (f *fakeExec) Name() string { return "fake" }

func (f *fakeExec) Execute(ctx context.Context, stdout, stderr io.Writer, dir, command string, args ...string) (int, error) {
	full := strings.Join(append([]string{command}, args...), " ")

	f.mu.Lock()
	f.commands = append(f.commands, full)
	f.mu.Unlock()

	for prefix, code := range f.fail {
		if strings.HasPrefix(full, prefix) {
			return code, nil
		}
	}

	if strings.HasPrefix(full, "git status") {
		io.WriteString(stdout, f.gitStatus)
	}
	return 0, nil
}

func (f *fakeExec) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func (f *fakeExec) matching(prefix string) []string {
	var out []string
	for _, c := range f.recorded() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

type fixture struct {
	exec *fakeExec
	init *Initializer
	opts Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tmp := t.TempDir()
	opts := Options{
		Root:          filepath.Join(tmp, "initramfsRoot"),
		BusyboxDir:    filepath.Join(tmp, "busybox"),
		BusyboxConfig: filepath.Join(tmp, "busybox-config"),
		BoardDir:      filepath.Join(tmp, "board"),
		LinuxDir:      filepath.Join(tmp, "linux"),
		Jobs:          4,
	}
	require.NoError(t, os.MkdirAll(opts.BoardDir, 0o755))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := newFakeExec()
	runner := executor.NewRunner(exec, log)

	return &fixture{
		exec: exec,
		init: NewInitializer(exec, runner, log, opts),
		opts: opts,
	}
}

func (f *fixture) addPatch(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(f.opts.BoardDir, name)
	require.NoError(t, os.WriteFile(path, []byte("--- a\n+++ b\n"), 0o644))
	return path
}

func TestSetupCreatesRootTree(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.init.Setup(context.Background()))

	for _, d := range rootDirs {
		info, err := os.Stat(filepath.Join(f.opts.Root, d))
		require.NoError(t, err, d)
		assert.True(t, info.IsDir())
	}
}

func TestSetupIsIdempotent(t *testing.T) {
	f := newFixture(t)

	created, err := f.init.createRootTree()
	require.NoError(t, err)
	assert.Len(t, created, len(rootDirs))

	created, err = f.init.createRootTree()
	require.NoError(t, err)
	assert.Empty(t, created, "second run must create nothing")

	// The build step still runs on repeat setups.
	require.NoError(t, f.init.Setup(context.Background()))
	assert.NotEmpty(t, f.exec.matching("make"))
}

func TestSetupBuildsBusybox(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.init.Setup(context.Background()))

	cmds := f.exec.recorded()
	assert.Contains(t, cmds, "cp "+f.opts.BusyboxConfig+" "+filepath.Join(f.opts.BusyboxDir, ".config"))
	assert.Contains(t, cmds, "make -j4")
	assert.Contains(t, cmds, "cp "+filepath.Join(f.opts.BusyboxDir, "busybox")+" "+filepath.Join(f.opts.Root, "bin")+"/")
}

func TestSetupAppliesPatchesInOrder(t *testing.T) {
	f := newFixture(t)
	b := f.addPatch(t, "0002-uart.patch")
	a := f.addPatch(t, "0001-block.patch")

	require.NoError(t, f.init.Setup(context.Background()))

	applied := f.exec.matching("git apply")
	require.Len(t, applied, 2)
	assert.Equal(t, "git apply "+a, applied[0])
	assert.Equal(t, "git apply "+b, applied[1])
}

func TestSetupSkipsPatchesOnDirtyTree(t *testing.T) {
	f := newFixture(t)
	f.addPatch(t, "0001-block.patch")
	f.exec.gitStatus = " M drivers/tty/serial/uart.c\n"

	require.NoError(t, f.init.Setup(context.Background()))

	assert.Empty(t, f.exec.matching("git apply"), "dirty tree must skip all patches")
}

func TestSetupPatchFailureDoesNotFailSetup(t *testing.T) {
	f := newFixture(t)
	f.addPatch(t, "0001-block.patch")
	f.addPatch(t, "0002-uart.patch")
	f.exec.fail["git apply"] = 1

	require.NoError(t, f.init.Setup(context.Background()))

	// Patching stops at the first failure and leaves the tree as-is.
	assert.Len(t, f.exec.matching("git apply"), 1)
}

func TestSetupPropagatesBuildFailure(t *testing.T) {
	f := newFixture(t)
	f.exec.fail["make"] = 2

	err := f.init.Setup(context.Background())
	require.Error(t, err)

	var cmdErr *executor.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 2, cmdErr.ExitCode)
}

func TestAppendInitramfsSource(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "linux-config")
	require.NoError(t, os.WriteFile(cfgPath, []byte("CONFIG_EXISTING=y\n"), 0o644))

	require.NoError(t, AppendInitramfsSource(cfgPath, "/images/initramfs.cpio"))

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t,
		"CONFIG_EXISTING=y\nCONFIG_BLK_DEV_INITRD=y\nCONFIG_INITRAMFS_SOURCE=\"/images/initramfs.cpio\"\n",
		string(data))
}

func TestAppendInitramfsSourceMissingConfig(t *testing.T) {
	err := AppendInitramfsSource(filepath.Join(t.TempDir(), "nope"), "/x.cpio")
	assert.Error(t, err)
}
