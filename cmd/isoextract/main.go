package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/theckman/yacspin"

	"github.com/bgrewell/archivefs/pkg/bytesource"
	"github.com/bgrewell/archivefs/pkg/iso9660fs"
	"github.com/bgrewell/archivefs/pkg/logging"
)

// newExtractSpinner builds a best-effort progress spinner for the
// extraction loop. Spinner setup failures (e.g. a non-terminal stderr)
// are non-fatal: extraction proceeds silently without one.
func newExtractSpinner() *yacspin.Spinner {
	cfg := yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " extracting",
		SuffixAutoColon: true,
		Message:         "starting",
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	}
	spinner, err := yacspin.New(cfg)
	if err != nil {
		return nil
	}
	if spinner.Start() != nil {
		return nil
	}
	return spinner
}

func main() {
	debug := flag.Bool("v", false, "Enable verbose (debug) logging")
	trace := flag.Bool("vv", false, "Enable trace logging")

	bootImages := flag.Bool("boot", false, "Extract boot images (El Torito)")
	rockRidge := flag.Bool("rockridge", true, "Enable Rock Ridge support")

	outputDir := flag.String("o", "./extracted", "Output directory for extracted files")
	bootDir := flag.String("bootdir", "./extracted/[BOOT]", "Output directory for boot images")

	flag.Parse()

	var logger *logging.Logger
	switch {
	case *trace:
		logger = logging.NewLogger(logging.NewSimpleLogger(os.Stderr, logging.LEVEL_TRACE, true))
	case *debug:
		logger = logging.NewLogger(logging.NewSimpleLogger(os.Stderr, logging.LEVEL_DEBUG, true))
	default:
		logger = logging.NewLogger(logr.Discard())
	}

	if flag.NArg() < 1 {
		fmt.Println("Usage: isoextract [options] <path-to-iso>")
		fmt.Println("  -v               Enable verbose (debug) logging")
		fmt.Println("  -vv              Enable trace logging")
		fmt.Println("  -boot            Extract boot images (El Torito)")
		fmt.Println("  -rockridge       Enable Rock Ridge support (default: true)")
		fmt.Println("  -o <directory>   Output directory (default './extracted')")
		fmt.Println("  -bootdir <dir>   Output directory for boot images (default './extracted/[BOOT]')")
		os.Exit(1)
	}

	isoPath := flag.Arg(0)

	f, err := os.Open(isoPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open ISO: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stat ISO: %v\n", err)
		os.Exit(1)
	}

	src := bytesource.FromReaderAt(f, info.Size())
	fsys, err := iso9660fs.Mount(src, iso9660fs.WithRockRidge(*rockRidge), iso9660fs.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to mount ISO: %v\n", err)
		os.Exit(1)
	}

	spinner := newExtractSpinner()
	for _, entry := range fsys.Entries() {
		if spinner != nil {
			spinner.Message(entry.FullPath)
		}
		if err := entry.ExtractToDisk(*outputDir); err != nil {
			if spinner != nil {
				spinner.StopFailMessage(entry.FullPath)
				_ = spinner.StopFail()
			}
			fmt.Fprintf(os.Stderr, "Failed to extract %s: %v\n", entry.FullPath, err)
			os.Exit(1)
		}
	}
	if spinner != nil {
		spinner.StopMessage("done")
		_ = spinner.Stop()
	}

	if *bootImages {
		catalog := fsys.BootCatalog()
		if catalog == nil {
			fmt.Println("No El Torito boot catalog present.")
		} else if err := catalog.ExtractBootImages(src, *bootDir); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to extract boot images: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Extraction completed successfully to '%s'.\n", *outputDir)
}
