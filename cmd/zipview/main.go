package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bgrewell/usage"

	"github.com/bgrewell/archivefs/pkg/bytesource"
	"github.com/bgrewell/archivefs/pkg/version"
	"github.com/bgrewell/archivefs/pkg/zipfs"
)

func main() {
	u := usage.NewUsage(
		usage.WithApplicationVersion(version.Version()),
		usage.WithApplicationBranch(version.Branch()),
		usage.WithApplicationBuildDate(version.Date()),
		usage.WithApplicationCommitHash(version.Revision()),
		usage.WithApplicationName("zipview"),
		usage.WithApplicationDescription("zipview is a command-line tool for inspecting PKZIP archives: it lists the central directory's synthesized file tree and reports per-entry size."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "optional", nil)
	lazy := u.AddBooleanOption("l", "lazy", false, "Defer decompressing entries until first read", "", nil)
	path := u.AddArgument(1, "zip-path", "Path to the ZIP archive", "")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if path == nil || *path == "" {
		u.PrintError(fmt.Errorf("location of the zip file <path> must be provided"))
		os.Exit(1)
	}

	f, err := os.Open(*path)
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}

	src := bytesource.FromReaderAt(f, info.Size())
	ctx := context.Background()
	fsys, err := zipfs.Mount(ctx, src, zipfs.WithLazy(*lazy))
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}

	entries, err := fsys.Entries()
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}

	fileCount, dirCount := 0, 0
	var totalSize int64
	for _, e := range entries {
		if e.IsDir {
			dirCount++
		} else {
			fileCount++
			totalSize += int64(e.Size)
		}
	}

	usageInfo := fsys.Usage()
	fmt.Println("=== ZIP Information ===")
	fmt.Printf("Archive Size: %d bytes\n", usageInfo.TotalSpace)
	fmt.Printf("Total Files: %d\n", fileCount)
	fmt.Printf("Total Directories: %d\n", dirCount)
	fmt.Printf("Total Uncompressed Size: %d bytes (%.2f MB)\n", totalSize, float64(totalSize)/1024/1024)
	fmt.Println("=========================")

	for _, e := range entries {
		kind := "FILE"
		if e.IsDir {
			kind = "DIR "
		}
		fmt.Printf("%s %10d  %s\n", kind, e.Size, e.FullPath)
	}
}
