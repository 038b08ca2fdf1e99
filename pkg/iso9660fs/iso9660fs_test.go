package iso9660fs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bgrewell/archivefs/internal/fixtures"
	"github.com/bgrewell/archivefs/pkg/bytesource"
	"github.com/bgrewell/archivefs/pkg/vfs"
)

func testSource() bytesource.Source {
	return bytesource.FromBytes(fixtures.ThreeFileISO())
}

func TestMountDetectsRockRidge(t *testing.T) {
	fs, err := Mount(testSource())
	require.NoError(t, err)
	require.True(t, fs.rockRidge)
}

func TestMountStatFile(t *testing.T) {
	fs, err := Mount(testSource())
	require.NoError(t, err)

	inode, err := fs.Stat(context.Background(), "/hello.txt")
	require.NoError(t, err)
	require.Equal(t, int64(13), inode.Size)
	require.NotZero(t, inode.Mode&vfs.ModeReg)
}

func TestMountStatDirectory(t *testing.T) {
	fs, err := Mount(testSource())
	require.NoError(t, err)

	inode, err := fs.Stat(context.Background(), "/SUBDIR")
	require.NoError(t, err)
	require.NotZero(t, inode.Mode&vfs.ModeDir)
}

func TestMountReaddirRoot(t *testing.T) {
	fs, err := Mount(testSource())
	require.NoError(t, err)

	names, err := fs.Readdir(context.Background(), "/")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"hello.txt", "SUBDIR"}, names)
}

func TestMountReaddirSubdir(t *testing.T) {
	fs, err := Mount(testSource())
	require.NoError(t, err)

	names, err := fs.Readdir(context.Background(), "/SUBDIR")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"nested.txt"}, names)
}

func TestMountReadFile(t *testing.T) {
	fs, err := Mount(testSource())
	require.NoError(t, err)

	dst := make([]byte, 13)
	n, err := fs.Read(context.Background(), "/hello.txt", dst, 0, 13)
	require.NoError(t, err)
	require.Equal(t, 13, n)
	require.Equal(t, "Hello, World!", string(dst))
}

func TestMountReadNestedFile(t *testing.T) {
	fs, err := Mount(testSource())
	require.NoError(t, err)

	dst := make([]byte, 20)
	n, err := fs.Read(context.Background(), "/SUBDIR/nested.txt", dst, 0, 20)
	require.NoError(t, err)
	require.Equal(t, 20, n)
	require.Equal(t, "nested file contents", string(dst))
}

func TestMountReadDirectoryFails(t *testing.T) {
	fs, err := Mount(testSource())
	require.NoError(t, err)

	_, err = fs.Read(context.Background(), "/SUBDIR", make([]byte, 1), 0, 1)
	require.Error(t, err)
}

func TestMountStatNoSuchFile(t *testing.T) {
	fs, err := Mount(testSource())
	require.NoError(t, err)

	_, err = fs.Stat(context.Background(), "/missing.txt")
	require.ErrorIs(t, err, vfs.ErrNoSuchFile)
}

func TestMountRockRidgePermissionsApplied(t *testing.T) {
	fs, err := Mount(testSource())
	require.NoError(t, err)

	inode, err := fs.Stat(context.Background(), "/hello.txt")
	require.NoError(t, err)
	require.Zero(t, inode.Mode&0o222) // read-only regardless of PX write bits
}

func TestMountDisableRockRidgeOmitsOwnership(t *testing.T) {
	fs, err := Mount(testSource(), WithRockRidge(false))
	require.NoError(t, err)
	require.False(t, fs.rockRidge)

	var uid *uint32
	for _, e := range fs.Entries() {
		if e.FullPath == "/hello.txt" {
			uid = e.UID
		}
	}
	require.Nil(t, uid)
}

func TestEntriesFlattensTree(t *testing.T) {
	fs, err := Mount(testSource())
	require.NoError(t, err)

	entries := fs.Entries()
	require.Len(t, entries, 3)

	var names []string
	for _, e := range entries {
		names = append(names, e.FullPath)
	}
	require.ElementsMatch(t, []string{"/hello.txt", "/SUBDIR", "/SUBDIR/nested.txt"}, names)
}

func TestUsageReportsVolumeSize(t *testing.T) {
	fs, err := Mount(testSource())
	require.NoError(t, err)

	usage := fs.Usage()
	require.Equal(t, int64(22*2048), usage.TotalSpace)
	require.Zero(t, usage.FreeSpace)
}

func TestPartitionsEmptyByDefault(t *testing.T) {
	fs, err := Mount(testSource())
	require.NoError(t, err)
	require.Empty(t, fs.Partitions())
}

func TestBootCatalogNilWithoutBootRecord(t *testing.T) {
	fs, err := Mount(testSource())
	require.NoError(t, err)
	require.Nil(t, fs.BootCatalog())
}

// customByteSource is a minimal {size, get(offset,len)} adapter, the shape
// spec.md names explicitly as a stand-in for a caller-supplied source over
// a file descriptor, proving Mount only needs the bytesource.Source
// interface rather than one of its built-in implementations.
type customByteSource struct {
	data []byte
}

func (c *customByteSource) Size() int64 { return int64(len(c.data)) }

func (c *customByteSource) Get(offset, length int64) ([]byte, error) {
	return c.data[offset : offset+length], nil
}

func (c *customByteSource) GetContext(ctx context.Context, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Get(offset, length)
}

func TestMountOverCustomByteSource(t *testing.T) {
	fs, err := Mount(&customByteSource{data: fixtures.ThreeFileISO()})
	require.NoError(t, err)

	names, err := fs.Readdir(context.Background(), "/")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"hello.txt", "SUBDIR"}, names)

	dst := make([]byte, 13)
	n, err := fs.Read(context.Background(), "/hello.txt", dst, 0, 13)
	require.NoError(t, err)
	require.Equal(t, "Hello, World!", string(dst[:n]))
}

// TestMountPrefersJolietRoot mounts an image carrying both a (deliberately
// empty) primary ISO 9660 tree and a Joliet tree, confirming the mount
// resolves paths and reads file data through the Joliet tree automatically.
func TestMountPrefersJolietRoot(t *testing.T) {
	fs, err := Mount(bytesource.FromBytes(fixtures.JolietISO()))
	require.NoError(t, err)
	require.True(t, fs.joliet)

	names, err := fs.Readdir(context.Background(), "/")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"hello.txt"}, names)

	dst := make([]byte, len("Hello, Joliet!"))
	n, err := fs.Read(context.Background(), "/hello.txt", dst, 0, int64(len(dst)))
	require.NoError(t, err)
	require.Equal(t, "Hello, Joliet!", string(dst[:n]))
}

// TestMountResolvesRelocatedDirectory mounts an image where "DEEP" is
// relocated via Rock Ridge CL/RE under "RR_MOVED", confirming it appears
// exactly once, in its logical parent's (root's) listing, and not in
// RR_MOVED's own listing.
func TestMountResolvesRelocatedDirectory(t *testing.T) {
	fs, err := Mount(bytesource.FromBytes(fixtures.RelocatedDirectoryISO()))
	require.NoError(t, err)

	rootNames, err := fs.Readdir(context.Background(), "/")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"DEEP", "RR_MOVED"}, rootNames)

	movedNames, err := fs.Readdir(context.Background(), "/RR_MOVED")
	require.NoError(t, err)
	require.Empty(t, movedNames)

	deepNames, err := fs.Readdir(context.Background(), "/DEEP")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"late.txt"}, deepNames)

	dst := make([]byte, len("relocated directory contents"))
	n, err := fs.Read(context.Background(), "/DEEP/late.txt", dst, 0, int64(len(dst)))
	require.NoError(t, err)
	require.Equal(t, "relocated directory contents", string(dst[:n]))
}
