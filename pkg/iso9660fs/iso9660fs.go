// Package iso9660fs mounts an ISO 9660 image — Primary Volume Descriptor,
// optional Joliet Supplementary Volume Descriptor, and optional Rock Ridge
// extensions — as a read-only vfs.FileSystem.
package iso9660fs

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bgrewell/archivefs/pkg/bytesource"
	"github.com/bgrewell/archivefs/pkg/consts"
	"github.com/bgrewell/archivefs/pkg/filesystem"
	"github.com/bgrewell/archivefs/pkg/iso9660/boot"
	"github.com/bgrewell/archivefs/pkg/iso9660/descriptor"
	"github.com/bgrewell/archivefs/pkg/iso9660/directory"
	"github.com/bgrewell/archivefs/pkg/iso9660/parser"
	"github.com/bgrewell/archivefs/pkg/iso9660/susp"
	"github.com/bgrewell/archivefs/pkg/iso9660/walk"
	"github.com/bgrewell/archivefs/pkg/logging"
	"github.com/bgrewell/archivefs/pkg/vfs"
)

func init() {
	vfs.Register(vfs.Descriptor{
		Name:        "iso9660",
		IsAvailable: func() bool { return true },
		Create: func(ctx context.Context, opts map[string]any) (vfs.FileSystem, error) {
			src, _ := opts["source"].(bytesource.Source)
			if src == nil {
				return nil, fmt.Errorf("iso9660fs: opts[\"source\"] must be a bytesource.Source")
			}
			return Mount(src)
		},
	})
}

// Options configures a Mount call.
type Options struct {
	RockRidgeEnabled bool
	PreferJoliet     bool
	CaseFold         vfs.CaseFold
	Logger           *logging.Logger
}

// Option mutates Options; see With* constructors below.
type Option func(*Options)

// WithRockRidge toggles Rock Ridge detection. Enabled by default; disabling
// it drops Rock Ridge ownership and timestamps and falls back to 0o555/0o444
// permissions. Names, relocated directories and symlinks are still taken
// from any NM, CL and SL entries the records carry.
func WithRockRidge(enabled bool) Option {
	return func(o *Options) { o.RockRidgeEnabled = enabled }
}

// WithPreferJoliet records a preference for the Joliet tree. Mount does not
// read it: Joliet is selected whenever a valid Joliet Supplementary Volume
// Descriptor is present, and the primary tree otherwise, whatever this
// option is set to.
func WithPreferJoliet(prefer bool) Option {
	return func(o *Options) { o.PreferJoliet = prefer }
}

// WithCaseFold sets the path-component case-fold policy applied before
// directory lookup.
func WithCaseFold(fold vfs.CaseFold) Option {
	return func(o *Options) { o.CaseFold = fold }
}

// WithLogger overrides the default discard logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// node is one entry in the preloaded directory tree.
type node struct {
	record   *directory.DirectoryRecord
	name     string
	children map[string]*node // keyed by vfs.CaseFold-normalized name
	order    []string         // insertion order, for stable Readdir
}

// FileSystem is a mounted ISO 9660 image.
type FileSystem struct {
	source bytesource.Source
	p      *parser.Parser
	opts   Options

	pvd           *descriptor.PrimaryVolumeDescriptor
	svd           *descriptor.SupplementaryVolumeDescriptor // selected Joliet SVD, or nil
	joliet        bool
	rockRidge     bool
	rrSkip        int
	root *node

	bootCatalog *boot.ElTorito // nil when the image carries no El Torito boot record
	partitions  []*descriptor.VolumePartitionDescriptor // empty for the common case of no partition descriptors
}

// Mount reads the volume descriptor set from src, selects between the
// primary and Joliet trees, detects Rock Ridge on the selected tree's root,
// and preloads the entire directory tree into memory.
func Mount(src bytesource.Source, opts ...Option) (*FileSystem, error) {
	options := Options{
		RockRidgeEnabled: true,
		CaseFold:         vfs.CaseFoldNone,
		Logger:           logging.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	r := sourceReaderAt{src}
	p := parser.NewParser(r)

	pvd, err := p.GetPrimaryVolumeDescriptor()
	if err != nil {
		return nil, fmt.Errorf("iso9660fs: read primary volume descriptor: %w", err)
	}

	svds, err := p.GetSupplementaryVolumeDescriptors()
	if err != nil && len(svds) == 0 {
		options.Logger.Debug("no supplementary volume descriptors", "err", err)
	}

	var joliet *descriptor.SupplementaryVolumeDescriptor
	for _, svd := range svds {
		if svd.HasJoliet() {
			joliet = svd
			break
		}
	}

	fs := &FileSystem{
		source: src,
		p:      p,
		opts:   options,
		pvd:    pvd,
	}

	useJoliet := joliet != nil
	fs.svd = joliet
	fs.joliet = useJoliet

	var rootLBA uint32
	var rootLen uint32
	if useJoliet {
		rootLBA = joliet.RootDirectoryRecord.LocationOfExtent
		rootLen = joliet.RootDirectoryRecord.DataLength
	} else {
		rootLBA = pvd.RootDirectoryRecord.LocationOfExtent
		rootLen = pvd.RootDirectoryRecord.DataLength
	}

	if options.RockRidgeEnabled {
		dot, err := walk.DotRecord(rootLBA, fs.readSector)
		if err == nil {
			if skip, ok := susp.DetectRockRidge(dot.SystemUse, fs.readExtent); ok {
				fs.rockRidge = true
				fs.rrSkip = skip
			}
		}
	}

	root, err := fs.buildTree(rootLBA, rootLen, useJoliet, ".")
	if err != nil {
		return nil, fmt.Errorf("iso9660fs: build directory tree: %w", err)
	}
	fs.root = root

	if bootRecord, err := p.GetBootRecord(); err == nil && boot.IsElTorito(bootRecord.BootSystemIdentifier) {
		catalogSector, err := fs.readSector(boot.BootCatalogLBA(bootRecord.BootSystemUse[:]))
		if err != nil {
			options.Logger.Debug("failed to read El Torito boot catalog sector", "err", err)
		} else {
			et := &boot.ElTorito{Logger: options.Logger}
			if err := et.UnmarshalBinary(catalogSector); err != nil {
				options.Logger.Debug("failed to parse El Torito boot catalog", "err", err)
			} else {
				fs.bootCatalog = et
			}
		}
	}

	if partitions, err := p.GetVolumePartitionDescriptors(); err != nil {
		options.Logger.Debug("failed to read volume partition descriptors", "err", err)
	} else {
		fs.partitions = partitions
	}

	return fs, nil
}

// Partitions returns the image's Volume Partition Descriptors, or an empty
// slice if it carries none. Partition descriptors are an uncommon ISO 9660
// feature for images that dedicate logical block ranges to non-ISO 9660
// content; they do not affect the mounted file tree.
func (fs *FileSystem) Partitions() []*descriptor.VolumePartitionDescriptor {
	return fs.partitions
}

// BootCatalog returns the image's El Torito boot catalog, or nil if the
// image carries no boot record. It is additive to the mandatory file tree:
// a mount with no boot catalog is still a complete, browsable filesystem.
func (fs *FileSystem) BootCatalog() *boot.ElTorito {
	return fs.bootCatalog
}

// BootImages flattens the boot catalog's bootable entries into
// filesystem.FileSystemEntry values, or nil if the image has no boot
// catalog.
func (fs *FileSystem) BootImages() ([]*filesystem.FileSystemEntry, error) {
	if fs.bootCatalog == nil {
		return nil, nil
	}
	return fs.bootCatalog.BuildBootImageEntries(fs.source)
}

type sourceReaderAt struct{ src bytesource.Source }

func (r sourceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	data, err := r.src.Get(off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	return copy(p, data), nil
}

func (fs *FileSystem) readSector(lba uint32) ([]byte, error) {
	return fs.p.ReadSector(lba)
}

func (fs *FileSystem) readExtent(lba uint32, offset uint32, size uint32) ([]byte, error) {
	return fs.p.ReadExtent(lba, offset, size)
}

func (fs *FileSystem) buildTree(lba uint32, dataLength uint32, joliet bool, name string) (*node, error) {
	n := &node{name: name, children: map[string]*node{}}

	children, err := walk.Children(lba, dataLength, joliet, fs.rrSkip, fs.readSector, fs.readExtent)
	if err != nil {
		return nil, err
	}

	for _, rec := range children {
		childName := rec.FileName()
		key := fs.opts.CaseFold.Fold(childName)

		child := &node{record: rec, name: childName, children: map[string]*node{}}
		if rec.IsDirectory() && !rec.IsSymlink() {
			loc := rec.LocationOfExtent
			length := rec.DataLength
			if rec.RockRidge.IsRelocatedPlaceholder() {
				loc = *rec.RockRidge.ChildLBA
				// The placeholder's own DataLength is meaningless; the
				// relocated directory's "." record at ChildLBA carries its
				// real extent length.
				dot, err := walk.DotRecord(loc, fs.readSector)
				if err != nil {
					return nil, fmt.Errorf("iso9660fs: read relocated directory at LBA %d: %w", loc, err)
				}
				length = dot.DataLength
			}
			sub, err := fs.buildTree(loc, length, joliet, childName)
			if err != nil {
				return nil, err
			}
			child.children = sub.children
			child.order = sub.order
		}

		if _, exists := n.children[key]; exists {
			continue
		}
		n.children[key] = child
		n.order = append(n.order, key)
	}

	return n, nil
}

// Usage reports the volume's total size; ISO 9660 images have no free
// space concept since they are a fixed, already-written image.
func (fs *FileSystem) Usage() vfs.Usage {
	size := int64(fs.pvd.VolumeSpaceSize) * consts.ISO9660_SECTOR_SIZE
	return vfs.Usage{TotalSpace: size, FreeSpace: 0}
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// resolve walks the component list from the tree root, following symlinks
// (up to a small hop limit) and folding case per the mount's CaseFold
// policy.
func (fs *FileSystem) resolve(path string) (*node, error) {
	cur := fs.root
	comps := splitPath(path)

	hops := 0
	for i := 0; i < len(comps); i++ {
		comp := comps[i]
		if comp == "" || comp == "." {
			continue
		}
		if cur.record != nil && cur.record.IsSymlink() {
			if hops > 32 {
				return nil, fmt.Errorf("iso9660fs: too many symlink hops resolving %q: %w", path, vfs.ErrIO)
			}
			hops++
			target := splitPath(cur.record.SymlinkPath())
			comps = append(target, comps[i:]...)
			cur = fs.root
			i = -1
			continue
		}

		key := fs.opts.CaseFold.Fold(comp)
		next, ok := cur.children[key]
		if !ok {
			return nil, fmt.Errorf("iso9660fs: %q: %w", path, vfs.ErrNoSuchFile)
		}
		cur = next
	}

	if cur.record != nil && cur.record.IsSymlink() {
		if hops > 32 {
			return nil, fmt.Errorf("iso9660fs: too many symlink hops resolving %q: %w", path, vfs.ErrIO)
		}
		resolved, err := fs.resolve(cur.record.SymlinkPath())
		if err != nil {
			return nil, err
		}
		cur = resolved
	}

	return cur, nil
}

func (fs *FileSystem) isDir(n *node) bool {
	return n == fs.root || (n.record != nil && n.record.IsDirectory())
}

// Stat resolves path to an Inode, masking permissions to the read-only
// 0o555/0o444 bits and preferring Rock Ridge TF timestamps when present.
func (fs *FileSystem) Stat(ctx context.Context, path string) (vfs.Inode, error) {
	if err := ctx.Err(); err != nil {
		return vfs.Inode{}, err
	}
	n, err := fs.resolve(path)
	if err != nil {
		return vfs.Inode{}, err
	}

	if n == fs.root {
		return vfs.Inode{Mode: vfs.ModeDir | 0o555}, nil
	}

	rec := n.record
	perm := rec.GetPermissions(fs.rockRidge)
	mode := uint32(perm.Perm())
	var size int64
	if fs.isDir(n) {
		mode |= vfs.ModeDir
	} else {
		mode |= vfs.ModeReg
		size = int64(rec.DataLength)
	}

	_, modTime := rec.GetTimestamps(fs.rockRidge)
	ms := vfs.NowMs(modTime)

	return vfs.Inode{
		Mode:    mode,
		Size:    size,
		AtimeMs: ms,
		MtimeMs: ms,
		CtimeMs: ms,
	}, nil
}

// Readdir returns the immediate child names of path in on-disk order.
func (fs *FileSystem) Readdir(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	if !fs.isDir(n) {
		return nil, fmt.Errorf("iso9660fs: %q: %w", path, vfs.ErrNotADirectory)
	}

	names := make([]string, 0, len(n.order))
	for _, key := range n.order {
		names = append(names, n.children[key].name)
	}
	return names, nil
}

// Read copies dst-bounded bytes [offset:end) of the file at path.
func (fs *FileSystem) Read(ctx context.Context, path string, dst []byte, offset, end int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := fs.resolve(path)
	if err != nil {
		return 0, err
	}
	if fs.isDir(n) {
		return 0, fmt.Errorf("iso9660fs: %q: %w", path, vfs.ErrIsADirectory)
	}

	rec := n.record
	size := int64(rec.DataLength)
	if offset < 0 || end < offset || end > size {
		return 0, fmt.Errorf("iso9660fs: range [%d,%d) out of bounds for %q (size %d): %w", offset, end, path, size, vfs.ErrInvalidArgument)
	}
	length := end - offset
	if length == 0 {
		return 0, nil
	}
	if int64(len(dst)) < length {
		length = int64(len(dst))
	}

	base := int64(rec.LocationOfExtent) * consts.ISO9660_SECTOR_SIZE
	data, err := fs.source.GetContext(ctx, base+offset, length)
	if err != nil {
		return 0, fmt.Errorf("iso9660fs: read %q: %w", path, err)
	}
	return copy(dst, data), nil
}

// Entries flattens the mounted tree into a list of filesystem.FileSystemEntry
// values, in depth-first on-disk order, for callers (cmd/isoextract,
// cmd/isoview) that want to extract or checksum every regular file without
// re-walking the tree themselves.
func (fs *FileSystem) Entries() []*filesystem.FileSystemEntry {
	var out []*filesystem.FileSystemEntry
	var walkNode func(n *node, path string)
	walkNode = func(n *node, path string) {
		for _, key := range n.order {
			child := n.children[key]
			childPath := path + "/" + child.name
			isDir := fs.isDir(child)

			var uid, gid *uint32
			var mode uint32
			var size uint32
			var offset int64
			var createTime, modTime time.Time
			if child.record != nil {
				uid, gid = child.record.GetOwnership(fs.rockRidge)
				mode = uint32(child.record.GetPermissions(fs.rockRidge).Perm())
				createTime, modTime = child.record.GetTimestamps(fs.rockRidge)
				if !isDir {
					size = child.record.DataLength
					offset = int64(child.record.LocationOfExtent) * consts.ISO9660_SECTOR_SIZE
				}
			}

			out = append(out, filesystem.NewFileSystemEntry(
				child.name, childPath, isDir, size, offset, uid, gid, os.FileMode(mode), createTime, modTime, fs.source,
			))

			if isDir {
				walkNode(child, childPath)
			}
		}
	}
	walkNode(fs.root, "")
	return out
}
