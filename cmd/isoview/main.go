package main

import (
	"fmt"
	"os"

	"github.com/bgrewell/usage"

	"github.com/bgrewell/archivefs/pkg/bytesource"
	"github.com/bgrewell/archivefs/pkg/iso9660fs"
	"github.com/bgrewell/archivefs/pkg/version"
)

// displayISOInfo prints volume, Rock Ridge, and El Torito information about
// a mounted ISO 9660 image.
func displayISOInfo(fs *iso9660fs.FileSystem, verbose bool) {
	usageInfo := fs.Usage()

	entries := fs.Entries()
	fileCount, dirCount, symlinkCount := 0, 0, 0
	var totalSize int64
	for _, e := range entries {
		if e.IsDir {
			dirCount++
		} else {
			fileCount++
			totalSize += int64(e.Size)
		}
	}

	fmt.Println("=== ISO Information ===")
	fmt.Printf("Volume Size: %d bytes\n", usageInfo.TotalSpace)
	fmt.Printf("Total Files: %d\n", fileCount)
	fmt.Printf("Total Directories: %d\n", dirCount)
	fmt.Printf("Total Size: %d bytes (%.2f MB)\n", totalSize, float64(totalSize)/1024/1024)

	if verbose {
		fmt.Println("\n=== Verbose Information ===")
		fmt.Printf("Symbolic Links: %d\n", symlinkCount)

		catalog := fs.BootCatalog()
		if catalog != nil {
			fmt.Println("\n--- El Torito Boot Extensions ---")
			fmt.Println("El Torito Boot Support: YES")
			images, err := fs.BootImages()
			if err != nil {
				fmt.Println("Failed to list boot images:", err)
			} else {
				fmt.Printf("Number of Boot Entries: %d\n", len(images))
				for _, img := range images {
					fmt.Printf("  Boot Entry: %s\n", img.Name)
				}
			}
		} else {
			fmt.Println("\nEl Torito Boot Extensions: NOT PRESENT")
		}
	}
	fmt.Println("=========================")
}

func main() {
	u := usage.NewUsage(
		usage.WithApplicationVersion(version.Version()),
		usage.WithApplicationBranch(version.Branch()),
		usage.WithApplicationBuildDate(version.Date()),
		usage.WithApplicationCommitHash(version.Revision()),
		usage.WithApplicationName("isoview"),
		usage.WithApplicationDescription("isoview is a command-line tool for inspecting ISO9660 images, including Rock Ridge, Joliet, and El Torito extensions."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "optional", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Print verbose output", "", nil)
	path := u.AddArgument(1, "iso-path", "Path to the ISO 9660 image", "")
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
		u.PrintError(fmt.Errorf("location of the iso file <path> must be provided"))
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
	fsys, err := iso9660fs.Mount(src)
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}

	displayISOInfo(fsys, *verbose)
}
