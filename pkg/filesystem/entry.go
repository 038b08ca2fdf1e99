// Package filesystem provides FileSystemEntry, a flattened, hashable view
// over a mounted archive's files and directories — used by the extraction and
// inspection commands to write files to disk and verify them against
// known-good checksums.
package filesystem

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bgrewell/archivefs/pkg/bytesource"
)

// NewFileSystemEntry initializes a FileSystemEntry reading its contents
// from src at [offset, offset+size).
func NewFileSystemEntry(name, fullPath string, isDir bool, size uint32, offset int64, uid, gid *uint32, mode os.FileMode, createTime, modTime time.Time, src bytesource.Source) *FileSystemEntry {
	return &FileSystemEntry{
		Name:       name,
		FullPath:   fullPath,
		IsDir:      isDir,
		Size:       size,
		Offset:     offset,
		UID:        uid,
		GID:        gid,
		Mode:       mode,
		CreateTime: createTime,
		ModTime:    modTime,
		src:        src,
	}
}

// FileSystemEntry is a flattened directory-tree entry: a name, a path, and
// (for regular files) a byte range into the backing bytesource.Source.
type FileSystemEntry struct {
	Name       string `json:"name"`
	FullPath   string `json:"full_path"`
	IsDir      bool   `json:"is_dir"`
	Size       uint32 `json:"size"`
	Offset     int64  `json:"offset"`
	UID        *uint32 `json:"uid"`
	GID        *uint32 `json:"gid"`
	Mode       os.FileMode
	CreateTime time.Time
	ModTime    time.Time

	src bytesource.Source
}

// GetBytes returns the entry's full contents.
func (fse *FileSystemEntry) GetBytes() ([]byte, error) {
	if fse.IsDir {
		return nil, fmt.Errorf("cannot get bytes for a directory: %s", fse.FullPath)
	}
	return fse.src.Get(fse.Offset, int64(fse.Size))
}

// ExtractToDisk writes the entry to outputDir, preserving its relative
// path, permissions, and modification time.
func (fse *FileSystemEntry) ExtractToDisk(outputDir string) error {
	outputPath := filepath.Join(outputDir, fse.FullPath)

	if fse.IsDir {
		return os.MkdirAll(outputPath, fse.Mode)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directories for %s: %w", outputPath, err)
	}

	data, err := fse.GetBytes()
	if err != nil {
		return fmt.Errorf("failed to read file data for %s: %w", fse.FullPath, err)
	}

	if err := os.WriteFile(outputPath, data, fse.Mode); err != nil {
		return fmt.Errorf("failed to write file %s: %w", outputPath, err)
	}

	if !fse.ModTime.IsZero() {
		if err := os.Chtimes(outputPath, fse.ModTime, fse.ModTime); err != nil {
			return fmt.Errorf("failed to set timestamps on %s: %w", outputPath, err)
		}
	}

	return nil
}

// GetMD5 computes the MD5 hash of the entry's contents.
func (fse *FileSystemEntry) GetMD5() (string, error) {
	data, err := fse.GetBytes()
	if err != nil {
		return "", err
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// GetSHA256 computes the SHA-256 hash of the entry's contents.
func (fse *FileSystemEntry) GetSHA256() (string, error) {
	data, err := fse.GetBytes()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
