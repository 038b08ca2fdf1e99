package filesystem

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bgrewell/archivefs/pkg/bytesource"
)

func TestGetBytes(t *testing.T) {
	src := bytesource.FromBytes([]byte("hello world"))
	entry := NewFileSystemEntry("world.txt", "/world.txt", false, 5, 6, nil, nil, 0o444, time.Time{}, time.Time{}, src)

	got, err := entry.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "world", string(got))
}

func TestGetBytesDirectoryFails(t *testing.T) {
	entry := NewFileSystemEntry("dir", "/dir", true, 0, 0, nil, nil, 0o555, time.Time{}, time.Time{}, nil)

	_, err := entry.GetBytes()
	require.Error(t, err)
}

func TestGetMD5AndSHA256(t *testing.T) {
	src := bytesource.FromBytes([]byte("content"))
	entry := NewFileSystemEntry("f", "/f", false, 7, 0, nil, nil, 0o444, time.Time{}, time.Time{}, src)

	md5sum, err := entry.GetMD5()
	require.NoError(t, err)
	require.Equal(t, "9a0364b9e99bb480dd25e1f0284c8555", md5sum)

	got, err := entry.GetSHA256()
	require.NoError(t, err)
	require.Equal(t, "ed7002b439e9ac845f22357d822bac1444730fbdb6016d3ec9432297b9ec9f73", got)
}

func TestExtractToDisk(t *testing.T) {
	dir := t.TempDir()
	src := bytesource.FromBytes([]byte("payload"))
	entry := NewFileSystemEntry("nested.txt", "a/b/nested.txt", false, 7, 0, nil, nil, 0o644, time.Time{}, time.Time{}, src)

	require.NoError(t, entry.ExtractToDisk(dir))

	got, err := os.ReadFile(filepath.Join(dir, "a/b/nested.txt"))
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))
}

func TestExtractToDiskDirectory(t *testing.T) {
	dir := t.TempDir()
	entry := NewFileSystemEntry("sub", "a/sub", true, 0, 0, nil, nil, 0o755, time.Time{}, time.Time{}, nil)

	require.NoError(t, entry.ExtractToDisk(dir))

	info, err := os.Stat(filepath.Join(dir, "a/sub"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
