// Package zipfs mounts a PKZIP archive's central directory — no ZIP64, no
// spanning, no encryption — as a read-only vfs.FileSystem.
package zipfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bgrewell/archivefs/pkg/bytesource"
	"github.com/bgrewell/archivefs/pkg/decompress"
	"github.com/bgrewell/archivefs/pkg/filesystem"
	"github.com/bgrewell/archivefs/pkg/logging"
	"github.com/bgrewell/archivefs/pkg/vfs"
	"github.com/bgrewell/archivefs/pkg/zip/record"
)

func init() {
	vfs.Register(vfs.Descriptor{
		Name:        "zip",
		IsAvailable: func() bool { return true },
		Create: func(ctx context.Context, opts map[string]any) (vfs.FileSystem, error) {
			src, _ := opts["source"].(bytesource.Source)
			if src == nil {
				return nil, fmt.Errorf("zipfs: opts[\"source\"] must be a bytesource.Source")
			}
			lazy, _ := opts["lazy"].(bool)
			return Mount(ctx, src, WithLazy(lazy))
		},
	})
}

// Options configures a Mount call.
type Options struct {
	// Lazy defers decompressing an entry's contents until its first Read;
	// eager (the default) resolves every entry during Mount.
	Lazy   bool
	Logger *logging.Logger
}

// Option mutates Options; see With* constructors below.
type Option func(*Options)

// WithLazy toggles lazy content resolution.
func WithLazy(lazy bool) Option {
	return func(o *Options) { o.Lazy = lazy }
}

// WithLogger overrides the default discard logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// entry is one regular file or explicit directory record from the central
// directory, with its decompressed contents memoized on first resolve.
type entry struct {
	cde    *record.CentralDirectoryEntry
	isDir  bool
	name   string // cleaned path, no leading slash, forward slashes only

	once     sync.Once
	contents []byte
	resolveErr error
}

// FileSystem is a mounted ZIP archive.
type FileSystem struct {
	source bytesource.Source
	opts   Options
	size   int64
	mountTime time.Time

	files map[string]*entry            // key: "/" + cleaned name
	dirs  map[string]map[string]bool   // key: "/" or "/"+dirpath -> immediate child basenames
}

// Mount reads the End Of Central Directory record, walks the central
// directory, synthesizes the directory index, and — unless WithLazy(true)
// is given — resolves every entry's decompressed contents concurrently.
func Mount(ctx context.Context, src bytesource.Source, opts ...Option) (*FileSystem, error) {
	options := Options{Logger: logging.DefaultLogger()}
	for _, opt := range opts {
		opt(&options)
	}

	size := src.Size()
	tailLen := size
	const eocdFixedSize = 22
	const maxComment = 65535
	if tailLen > eocdFixedSize+maxComment {
		tailLen = eocdFixedSize + maxComment
	}
	tail, err := src.GetContext(ctx, size-tailLen, tailLen)
	if err != nil {
		return nil, fmt.Errorf("zipfs: read EOCD search window: %w", err)
	}

	eocd, _, err := record.LocateEOCD(tail)
	if err != nil {
		return nil, err
	}

	if eocd.Disk != eocd.CentralDirStartDisk {
		return nil, fmt.Errorf("zipfs: spanned archives are not supported: %w", vfs.ErrInvalidArgument)
	}
	if eocd.CentralDirOffset == 0xFFFFFFFF {
		return nil, fmt.Errorf("zipfs: ZIP64 archives are not supported: %w", vfs.ErrInvalidArgument)
	}

	cdBytes, err := src.GetContext(ctx, int64(eocd.CentralDirOffset), int64(eocd.CentralDirSize))
	if err != nil {
		return nil, fmt.Errorf("zipfs: read central directory: %w", err)
	}

	fs := &FileSystem{
		source:    src,
		opts:      options,
		size:      size,
		mountTime: time.Now(),
		files:     map[string]*entry{},
		dirs:      map[string]map[string]bool{"/": {}},
	}

	offset := 0
	for offset < len(cdBytes) {
		cde := &record.CentralDirectoryEntry{}
		if err := cde.Unmarshal(cdBytes[offset:]); err != nil {
			return nil, fmt.Errorf("zipfs: central directory entry at offset %d: %w", offset, err)
		}
		offset += cde.Size

		if strings.HasPrefix(cde.Name, "/") {
			options.Logger.Debug("skipping central directory entry with absolute name", "name", cde.Name)
			continue
		}

		name := cde.CleanName()
		isDir := cde.IsDirectory()
		e := &entry{cde: cde, isDir: isDir, name: name}
		fs.files["/"+name] = e
		fs.addToIndex(name, isDir)
	}

	if !options.Lazy {
		g, gctx := errgroup.WithContext(ctx)
		for _, e := range fs.files {
			e := e
			if e.isDir {
				continue
			}
			g.Go(func() error {
				_, err := fs.resolve(gctx, e)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("zipfs: preload entry contents: %w", err)
		}
	}

	return fs, nil
}

// addToIndex registers name's parent-directory chain in the synthetic
// directory index, and — if name itself denotes a directory — ensures it
// has its own (possibly empty) entry so an explicitly-stored empty
// directory still lists successfully.
func (fs *FileSystem) addToIndex(name string, isDir bool) {
	if isDir {
		dirPath := "/" + name
		if _, ok := fs.dirs[dirPath]; !ok {
			fs.dirs[dirPath] = map[string]bool{}
		}
	}

	dir, base := splitPath(name)
	for {
		dirPath := "/" + dir
		if dir == "" {
			dirPath = "/"
		}
		if _, ok := fs.dirs[dirPath]; !ok {
			fs.dirs[dirPath] = map[string]bool{}
		}
		fs.dirs[dirPath][base] = true

		if dir == "" {
			break
		}
		parent, parentBase := splitPath(dir)
		dir, base = parent, parentBase
	}
}

// splitPath breaks a clean, slash-separated relative path into its parent
// directory (possibly empty, meaning root) and its own basename.
func splitPath(name string) (dir, base string) {
	idx := strings.LastIndexByte(name, '/')
	if idx < 0 {
		return "", name
	}
	return name[:idx], name[idx+1:]
}

// resolve decompresses an entry's contents on first access and memoizes
// the result; concurrent callers share the same resolution via sync.Once.
func (fs *FileSystem) resolve(ctx context.Context, e *entry) ([]byte, error) {
	e.once.Do(func() {
		header, err := fs.source.GetContext(ctx, int64(e.cde.HeaderOffset), 30)
		if err != nil {
			e.resolveErr = fmt.Errorf("zipfs: read local file header for %q: %w", e.name, err)
			return
		}
		var lfh record.LocalFileHeader
		if err := lfh.Unmarshal(header); err != nil {
			e.resolveErr = err
			return
		}

		dataOffset := int64(e.cde.HeaderOffset) + lfh.DataOffset()
		compressed, err := fs.source.GetContext(ctx, dataOffset, int64(e.cde.CompressedSize))
		if err != nil {
			e.resolveErr = fmt.Errorf("zipfs: read compressed data for %q: %w", e.name, err)
			return
		}

		newReader, err := decompress.Lookup(e.cde.CompressionMethod)
		if err != nil {
			e.resolveErr = err
			return
		}
		rc, err := newReader(bytes.NewReader(compressed))
		if err != nil {
			e.resolveErr = fmt.Errorf("zipfs: open decompressor for %q: %w", e.name, err)
			return
		}
		defer rc.Close()

		out := make([]byte, e.cde.UncompressedSize)
		if _, err := io.ReadFull(rc, out); err != nil {
			e.resolveErr = fmt.Errorf("zipfs: decompress %q: %w", e.name, err)
			return
		}
		e.contents = out
	})
	return e.contents, e.resolveErr
}

// tryResolve is the non-blocking counterpart to resolve: it never calls
// GetContext, which would suspend on a stream-backed source past its
// current watermark. If fs.source doesn't implement bytesource.TryGetter
// (a caller-supplied Source without TryGet), this falls back to the
// ordinary blocking resolve. Both paths memoize into the same
// e.once/e.contents pair, so whichever resolves first wins and the other
// observes its result.
func (fs *FileSystem) tryResolve(e *entry) ([]byte, error) {
	if e.contents != nil || e.resolveErr != nil {
		return e.contents, e.resolveErr
	}

	tg, ok := fs.source.(bytesource.TryGetter)
	if !ok {
		return fs.resolve(context.Background(), e)
	}

	header, err := tg.TryGet(int64(e.cde.HeaderOffset), 30)
	if err != nil {
		return nil, fmt.Errorf("zipfs: read local file header for %q: %w", e.name, err)
	}
	var lfh record.LocalFileHeader
	if err := lfh.Unmarshal(header); err != nil {
		return nil, err
	}

	dataOffset := int64(e.cde.HeaderOffset) + lfh.DataOffset()
	compressed, err := tg.TryGet(dataOffset, int64(e.cde.CompressedSize))
	if err != nil {
		return nil, fmt.Errorf("zipfs: read compressed data for %q: %w", e.name, err)
	}

	newReader, err := decompress.Lookup(e.cde.CompressionMethod)
	if err != nil {
		return nil, err
	}
	rc, err := newReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("zipfs: open decompressor for %q: %w", e.name, err)
	}
	defer rc.Close()

	out := make([]byte, e.cde.UncompressedSize)
	if _, err := io.ReadFull(rc, out); err != nil {
		return nil, fmt.Errorf("zipfs: decompress %q: %w", e.name, err)
	}

	e.once.Do(func() {
		e.contents = out
	})
	return e.contents, e.resolveErr
}

// TryRead is the synchronous counterpart to Read: it never suspends. Over a
// stream-backed source whose watermark hasn't reached the requested bytes
// yet, it fails immediately with vfs.ErrTryAgain instead of waiting; callers
// that want to wait should use Read with a cancellable context instead.
func (fs *FileSystem) TryRead(path string, dst []byte, offset, end int64) (int, error) {
	clean := cleanPath(path)
	key := "/" + clean
	if clean == "" {
		key = "/"
	}

	e, ok := fs.files[key]
	if !ok {
		if _, isDir := fs.dirs[key]; isDir {
			return 0, fmt.Errorf("zipfs: %q: %w", path, vfs.ErrIsADirectory)
		}
		return 0, fmt.Errorf("zipfs: %q: %w", path, vfs.ErrNoSuchFile)
	}
	if e.isDir {
		return 0, fmt.Errorf("zipfs: %q: %w", path, vfs.ErrIsADirectory)
	}

	contents, err := fs.tryResolve(e)
	if err != nil {
		return 0, err
	}

	size := int64(len(contents))
	if offset < 0 || end < offset || end > size {
		return 0, fmt.Errorf("zipfs: range [%d,%d) out of bounds for %q (size %d): %w", offset, end, path, size, vfs.ErrInvalidArgument)
	}
	length := end - offset
	if int64(len(dst)) < length {
		length = int64(len(dst))
	}
	return copy(dst, contents[offset:offset+length]), nil
}

// Usage reports the archive's total byte size; FreeSpace is always 0.
func (fs *FileSystem) Usage() vfs.Usage {
	return vfs.Usage{TotalSpace: fs.size, FreeSpace: 0}
}

func cleanPath(path string) string {
	path = strings.Trim(path, "/")
	return path
}

// Stat resolves path to an Inode: a synthetic directory inode when path is
// present in the directory index, the entry's own inode when present in
// the file map, or ErrNoSuchFile otherwise.
func (fs *FileSystem) Stat(ctx context.Context, path string) (vfs.Inode, error) {
	if err := ctx.Err(); err != nil {
		return vfs.Inode{}, err
	}
	clean := cleanPath(path)
	key := "/" + clean
	if clean == "" {
		key = "/"
	}

	if _, ok := fs.dirs[key]; ok {
		ms := vfs.NowMs(fs.mountTime)
		return vfs.Inode{
			Mode:    vfs.ModeDir | 0o555,
			Size:    4096,
			AtimeMs: vfs.NowMs(time.Now()),
			MtimeMs: ms,
			CtimeMs: ms,
		}, nil
	}

	if e, ok := fs.files[key]; ok {
		mode := uint32(0o555)
		var size int64
		if e.isDir {
			mode |= vfs.ModeDir
		} else {
			mode |= vfs.ModeReg
			size = int64(e.cde.UncompressedSize)
		}
		ms := vfs.NowMs(e.cde.ModTime())
		return vfs.Inode{Mode: mode, Size: size, AtimeMs: ms, MtimeMs: ms, CtimeMs: ms}, nil
	}

	return vfs.Inode{}, fmt.Errorf("zipfs: %q: %w", path, vfs.ErrNoSuchFile)
}

// Readdir returns the immediate child basenames of path.
func (fs *FileSystem) Readdir(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := cleanPath(path)
	key := "/" + clean
	if clean == "" {
		key = "/"
	}

	children, ok := fs.dirs[key]
	if !ok {
		if _, isFile := fs.files[key]; isFile {
			return nil, fmt.Errorf("zipfs: %q: %w", path, vfs.ErrNotADirectory)
		}
		return nil, fmt.Errorf("zipfs: %q: %w", path, vfs.ErrNoSuchFile)
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("zipfs: %q: %w", path, vfs.ErrNoData)
	}

	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	return names, nil
}

// Read copies dst-bounded bytes [offset:end) of the file at path, resolving
// its decompressed contents on first access.
func (fs *FileSystem) Read(ctx context.Context, path string, dst []byte, offset, end int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	clean := cleanPath(path)
	key := "/" + clean
	if clean == "" {
		key = "/"
	}

	e, ok := fs.files[key]
	if !ok {
		if _, isDir := fs.dirs[key]; isDir {
			return 0, fmt.Errorf("zipfs: %q: %w", path, vfs.ErrIsADirectory)
		}
		return 0, fmt.Errorf("zipfs: %q: %w", path, vfs.ErrNoSuchFile)
	}
	if e.isDir {
		return 0, fmt.Errorf("zipfs: %q: %w", path, vfs.ErrIsADirectory)
	}

	contents, err := fs.resolve(ctx, e)
	if err != nil {
		return 0, err
	}

	size := int64(len(contents))
	if offset < 0 || end < offset || end > size {
		return 0, fmt.Errorf("zipfs: range [%d,%d) out of bounds for %q (size %d): %w", offset, end, path, size, vfs.ErrInvalidArgument)
	}
	length := end - offset
	if int64(len(dst)) < length {
		length = int64(len(dst))
	}
	return copy(dst, contents[offset:offset+length]), nil
}

// Entries flattens the mounted archive into filesystem.FileSystemEntry
// values, resolving every regular file's contents along the way, for
// callers (cmd/zipview, cmd/isoextract-style extraction) that want to
// checksum or extract every file without re-walking the index themselves.
func (fs *FileSystem) Entries() ([]*filesystem.FileSystemEntry, error) {
	var out []*filesystem.FileSystemEntry
	for key, e := range fs.files {
		if e.isDir {
			out = append(out, filesystem.NewFileSystemEntry(
				baseName(key), key, true, 0, 0, nil, nil, 0o555, e.cde.ModTime(), e.cde.ModTime(), nil,
			))
			continue
		}
		contents, err := fs.resolve(context.Background(), e)
		if err != nil {
			return nil, err
		}
		entrySrc := bytesource.FromBytes(contents)
		out = append(out, filesystem.NewFileSystemEntry(
			baseName(key), key, false, uint32(len(contents)), 0, nil, nil, 0o444, e.cde.ModTime(), e.cde.ModTime(), entrySrc,
		))
	}
	return out, nil
}

func baseName(path string) string {
	_, base := splitPath(strings.TrimPrefix(path, "/"))
	return base
}
