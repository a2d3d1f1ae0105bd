package image

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFilesOneMountCycleForWholeList(t *testing.T) {
	f := newFixture(t)

	specs := []FileSpec{
		{Src: "/build/a", Dst: "/etc/a"},
		{Src: "/build/b", Dst: "/root/b"},
		{Src: "/build/c/*", Dst: "/usr/share"},
	}

	require.NoError(t, f.mgr.CopyFiles(context.Background(), "/images/w.img", specs, In))

	assert.Equal(t, 1, f.exec.count("guestmount"), "all specs share one mount")
	assert.Equal(t, 1, f.exec.count("guestunmount"))
	assert.Len(t, f.waiter.waited, 1)
}

func TestCopyFilesIn(t *testing.T) {
	f := newFixture(t)

	specs := []FileSpec{{Src: "/overlay/*", Dst: "/etc"}}
	require.NoError(t, f.mgr.CopyFiles(context.Background(), "/images/w.img", specs, In))

	assert.Contains(t, f.exec.recorded(), fmt.Sprintf("sh -c cp -a /overlay/* %s/etc", f.mntDir))
}

func TestCopyFilesOut(t *testing.T) {
	f := newFixture(t)

	specs := []FileSpec{{Src: "/var/log/run.out", Dst: "/results/"}}
	require.NoError(t, f.mgr.CopyFiles(context.Background(), "/images/w.img", specs, Out))

	assert.Contains(t, f.exec.recorded(), fmt.Sprintf("sh -c cp -a %s/var/log/run.out /results/", f.mntDir))
}

// Image-side paths land under the mount point whether or not they carry a
// leading slash.
func TestCopyFilesJoinUnderMountPoint(t *testing.T) {
	assert.Equal(t, "/mnt/x/etc", joinUnderMount("/mnt/x", "/etc"))
	assert.Equal(t, "/mnt/x/etc", joinUnderMount("/mnt/x", "etc"))
	assert.Equal(t, "/mnt/x", joinUnderMount("/mnt/x", "/"))
}

func TestCopyFilesRejectsBadDirection(t *testing.T) {
	f := newFixture(t)

	err := f.mgr.CopyFiles(context.Background(), "/images/w.img", []FileSpec{{Src: "a", Dst: "b"}}, Direction("sideways"))
	require.ErrorIs(t, err, ErrInvalidDirection)

	// Validation happens before anything is spawned.
	assert.Empty(t, f.exec.recorded())
}

func TestCopyFilesCreatesMountDir(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.mgr.CopyFiles(context.Background(), "/images/w.img", nil, In))
	assert.Contains(t, f.exec.recorded(), "mkdir -p "+f.mntDir)
}

func TestCopyFilesStopsOnFailedCopy(t *testing.T) {
	f := newFixture(t)
	f.exec.fail["sh"] = 1

	specs := []FileSpec{
		{Src: "/build/a", Dst: "/a"},
		{Src: "/build/b", Dst: "/b"},
	}
	err := f.mgr.CopyFiles(context.Background(), "/images/w.img", specs, In)
	require.Error(t, err)

	// First copy failed; the second never ran, but cleanup still did.
	assert.Equal(t, 1, f.exec.count("sh -c cp -a"))
	assert.Equal(t, 1, f.exec.count("guestunmount"))
	assert.Len(t, f.waiter.waited, 1)
}

func TestApplyOverlay(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.mgr.ApplyOverlay(context.Background(), "/images/w.img", "/overlays/base"))

	assert.Contains(t, f.exec.recorded(), fmt.Sprintf("sh -c cp -a /overlays/base/* %s", f.mntDir))
	assert.Equal(t, 1, f.exec.count("guestmount"))
}
