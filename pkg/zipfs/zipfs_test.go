package zipfs

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bgrewell/archivefs/internal/fixtures"
	"github.com/bgrewell/archivefs/pkg/bytesource"
	"github.com/bgrewell/archivefs/pkg/vfs"
	"github.com/bgrewell/archivefs/pkg/zip/record"
)

type fixtureFile struct {
	name    string
	content []byte
	isDir   bool
}

// buildZip hand-assembles a minimal, uncompressed (Store method) PKZIP
// archive from files, in the same byte layout pkg/zip/record decodes.
func buildZip(files []fixtureFile) []byte {
	var buf []byte
	type placed struct {
		f      fixtureFile
		offset uint32
	}
	var placedFiles []placed

	for _, f := range files {
		offset := uint32(len(buf))
		nameBytes := []byte(f.name)

		local := make([]byte, 30+len(nameBytes))
		binary.LittleEndian.PutUint32(local[0:4], record.SignatureLocalHeader)
		binary.LittleEndian.PutUint16(local[6:8], record.UTF8NameFlag)
		binary.LittleEndian.PutUint16(local[8:10], 0) // store
		binary.LittleEndian.PutUint32(local[18:22], uint32(len(f.content)))
		binary.LittleEndian.PutUint32(local[22:26], uint32(len(f.content)))
		binary.LittleEndian.PutUint16(local[26:28], uint16(len(nameBytes)))
		copy(local[30:], nameBytes)

		buf = append(buf, local...)
		buf = append(buf, f.content...)
		placedFiles = append(placedFiles, placed{f: f, offset: offset})
	}

	cdStart := len(buf)
	for _, p := range placedFiles {
		nameBytes := []byte(p.f.name)
		cd := make([]byte, 46+len(nameBytes))
		binary.LittleEndian.PutUint32(cd[0:4], record.SignatureCentralDir)
		binary.LittleEndian.PutUint16(cd[8:10], record.UTF8NameFlag)
		binary.LittleEndian.PutUint16(cd[10:12], 0) // store
		binary.LittleEndian.PutUint32(cd[20:24], uint32(len(p.f.content)))
		binary.LittleEndian.PutUint32(cd[24:28], uint32(len(p.f.content)))
		binary.LittleEndian.PutUint16(cd[28:30], uint16(len(nameBytes)))
		var extAttrs uint32
		if p.f.isDir {
			extAttrs = 0x10
		}
		binary.LittleEndian.PutUint32(cd[38:42], extAttrs)
		binary.LittleEndian.PutUint32(cd[42:46], p.offset)
		copy(cd[46:], nameBytes)
		buf = append(buf, cd...)
	}
	cdSize := len(buf) - cdStart

	eocd := make([]byte, 22)
	binary.LittleEndian.PutUint32(eocd[0:4], record.SignatureEOCD)
	binary.LittleEndian.PutUint16(eocd[8:10], uint16(len(placedFiles)))
	binary.LittleEndian.PutUint16(eocd[10:12], uint16(len(placedFiles)))
	binary.LittleEndian.PutUint32(eocd[12:16], uint32(cdSize))
	binary.LittleEndian.PutUint32(eocd[16:20], uint32(cdStart))
	buf = append(buf, eocd...)

	return buf
}

func testArchive() []byte {
	return buildZip([]fixtureFile{
		{name: "hello.txt", content: []byte("Hello, World!")},
		{name: "dir/", isDir: true},
		{name: "dir/nested.txt", content: []byte("nested")},
	})
}

func TestMountAndStat(t *testing.T) {
	src := bytesource.FromBytes(testArchive())
	fs, err := Mount(context.Background(), src)
	require.NoError(t, err)

	inode, err := fs.Stat(context.Background(), "/hello.txt")
	require.NoError(t, err)
	require.Equal(t, int64(13), inode.Size)

	inode, err = fs.Stat(context.Background(), "/dir")
	require.NoError(t, err)
	require.NotZero(t, inode.Mode&vfs.ModeDir)
}

func TestMountReaddir(t *testing.T) {
	src := bytesource.FromBytes(testArchive())
	fs, err := Mount(context.Background(), src)
	require.NoError(t, err)

	names, err := fs.Readdir(context.Background(), "/")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"hello.txt", "dir"}, names)

	names, err = fs.Readdir(context.Background(), "/dir")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"nested.txt"}, names)
}

func TestMountRead(t *testing.T) {
	src := bytesource.FromBytes(testArchive())
	fs, err := Mount(context.Background(), src)
	require.NoError(t, err)

	dst := make([]byte, 13)
	n, err := fs.Read(context.Background(), "/hello.txt", dst, 0, 13)
	require.NoError(t, err)
	require.Equal(t, 13, n)
	require.Equal(t, "Hello, World!", string(dst))
}

func TestMountReadIsDirectory(t *testing.T) {
	src := bytesource.FromBytes(testArchive())
	fs, err := Mount(context.Background(), src)
	require.NoError(t, err)

	_, err = fs.Read(context.Background(), "/dir", make([]byte, 1), 0, 1)
	require.Error(t, err)
}

func TestMountLazy(t *testing.T) {
	src := bytesource.FromBytes(testArchive())
	fs, err := Mount(context.Background(), src, WithLazy(true))
	require.NoError(t, err)

	dst := make([]byte, 6)
	n, err := fs.Read(context.Background(), "/dir/nested.txt", dst, 0, 6)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, "nested", string(dst))
}

func TestEntries(t *testing.T) {
	src := bytesource.FromBytes(testArchive())
	fs, err := Mount(context.Background(), src)
	require.NoError(t, err)

	entries, err := fs.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	var fileCount, dirCount int
	for _, e := range entries {
		if e.IsDir {
			dirCount++
		} else {
			fileCount++
		}
	}
	require.Equal(t, 2, fileCount)
	require.Equal(t, 1, dirCount)
}

func TestMountRejectsZIP64(t *testing.T) {
	archive := testArchive()
	// Overwrite the EOCD's central directory offset with the ZIP64
	// sentinel value to simulate a ZIP64 archive.
	eocdOffset := len(archive) - 22
	binary.LittleEndian.PutUint32(archive[eocdOffset+16:eocdOffset+20], 0xFFFFFFFF)

	_, err := Mount(context.Background(), bytesource.FromBytes(archive))
	require.Error(t, err)
}

// TestMountRealArchiveZipWriterOutput mounts an archive produced by the
// standard library's archive/zip writer (via internal/fixtures), rather
// than the hand-assembled bytes above, to confirm interop with a real
// Deflate-compressed entry and an explicit empty directory.
func TestMountRealArchiveZipWriterOutput(t *testing.T) {
	fs, err := Mount(context.Background(), bytesource.FromBytes(fixtures.ThreeFileZIP()))
	require.NoError(t, err)

	dst := make([]byte, len("nested file contents"))
	n, err := fs.Read(context.Background(), "/dir/nested.txt", dst, 0, int64(len(dst)))
	require.NoError(t, err)
	require.Equal(t, "nested file contents", string(dst[:n]))

	names, err := fs.Readdir(context.Background(), "/")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"hello.txt", "empty", "dir"}, names)

	emptyNames, err := fs.Readdir(context.Background(), "/empty")
	require.ErrorIs(t, err, vfs.ErrNoData)
	require.Empty(t, emptyNames)
}

// TestMountOverStreamSuspendsThenResolves mounts a progressively-filled
// bytesource.Stream, confirming Mount itself suspends on the still-unwritten
// EOCD/central-directory tail and only resolves once the producer finishes
// delivering it.
func TestMountOverStreamSuspendsThenResolves(t *testing.T) {
	archive := testArchive()
	stream := bytesource.NewStream(int64(len(archive)))

	// Deliver everything except the EOCD record up front; Mount's tail read
	// must suspend until the remainder arrives.
	split := len(archive) - 22
	_, err := stream.Write(archive[:split])
	require.NoError(t, err)

	type mountResult struct {
		fs  *FileSystem
		err error
	}
	mountDone := make(chan mountResult, 1)
	go func() {
		fs, err := Mount(context.Background(), stream)
		mountDone <- mountResult{fs, err}
	}()

	select {
	case <-mountDone:
		t.Fatal("Mount returned before the stream delivered its EOCD tail")
	case <-time.After(50 * time.Millisecond):
	}

	_, err = stream.Write(archive[split:])
	require.NoError(t, err)
	stream.Close(nil)

	select {
	case res := <-mountDone:
		require.NoError(t, res.err)
		dst := make([]byte, 13)
		n, err := res.fs.Read(context.Background(), "/hello.txt", dst, 0, 13)
		require.NoError(t, err)
		require.Equal(t, "Hello, World!", string(dst[:n]))
	case <-time.After(time.Second):
		t.Fatal("Mount never resolved after the stream completed")
	}
}

// customByteSource is a minimal adapter wrapping a plain []byte behind the
// {size, get(offset,len)} shape spec.md names explicitly (a stand-in for a
// caller-supplied adapter over a file descriptor), proving Mount only needs
// the bytesource.Source interface and not a concrete implementation.
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
	src := &customByteSource{data: testArchive()}
	fs, err := Mount(context.Background(), src)
	require.NoError(t, err)

	names, err := fs.Readdir(context.Background(), "/")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"hello.txt", "dir"}, names)

	dst := make([]byte, 13)
	n, err := fs.Read(context.Background(), "/hello.txt", dst, 0, 13)
	require.NoError(t, err)
	require.Equal(t, "Hello, World!", string(dst[:n]))
}

// TestTryReadFailsUntilStreamCatchesUpThenSucceeds exercises TryRead
// directly against a FileSystem backed by a Stream whose watermark hasn't
// reached an entry's bytes yet: it must fail immediately with
// vfs.ErrTryAgain rather than suspend, then succeed once the stream is
// complete, matching the synchronous try-again read operation spec.md
// requires alongside the suspending, context-cancellable Read.
func TestTryReadFailsUntilStreamCatchesUpThenSucceeds(t *testing.T) {
	archive := testArchive()

	// Mount can't succeed against a Stream until the full archive (whose
	// EOCD/central directory sit at the tail) is available, so build the
	// FileSystem from a reference mount over the complete bytes, then swap
	// in a Stream that only has the first few bytes written, to exercise
	// TryRead's non-blocking path in isolation.
	reference, err := Mount(context.Background(), bytesource.FromBytes(archive))
	require.NoError(t, err)

	partial := bytesource.NewStream(int64(len(archive)))
	_, err = partial.Write(archive[:16]) // well short of hello.txt's data
	require.NoError(t, err)

	streamed := &FileSystem{
		source:    partial,
		opts:      reference.opts,
		size:      reference.size,
		mountTime: reference.mountTime,
		files:     reference.files,
		dirs:      reference.dirs,
	}
	// Reset memoized contents so TryRead has to resolve against partial.
	for _, e := range streamed.files {
		e.once = sync.Once{}
		e.contents = nil
		e.resolveErr = nil
	}

	_, err = streamed.TryRead("/hello.txt", make([]byte, 13), 0, 13)
	require.ErrorIs(t, err, vfs.ErrTryAgain)

	_, err = partial.Write(archive[16:])
	require.NoError(t, err)
	partial.Close(nil)

	dst := make([]byte, 13)
	n, err := streamed.TryRead("/hello.txt", dst, 0, 13)
	require.NoError(t, err)
	require.Equal(t, "Hello, World!", string(dst[:n]))
}
