// Command mkinitrd builds the embedded SimpleFS image
// cmd/claudia bakes in as its initrd (spec.md §4.9's "embedded initrd
// region containing the SimpleFS magic"). Grounded on the teacher's
// mkfs/mkfs.go, which walks a skeleton directory with
// filepath.WalkDir and copies each file's bytes into the filesystem it
// builds; this tool does the same walk but targets SimpleFS's
// flat, single-directory namespace (internal/simplefs.BuildImage takes
// a plain map[string][]byte, not a path tree), so only the skeleton
// directory's top-level files are included. A real build's own
// directory hierarchy (etc/, bin/, ...) is out of scope per spec.md §1
// ("host-side initrd image builder"); this is the supplemental version
// SPEC_FULL.md adds back for local development and testing.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/keix/claudia-sub001/internal/simplefs"
)

func usage(me string) {
	fmt.Printf("%s <skeleton dir> <output image>\n", me)
	os.Exit(1)
}

func main() {
	if len(os.Args) != 3 {
		usage(os.Args[0])
	}
	skelDir := os.Args[1]
	outPath := os.Args[2]

	entries, err := os.ReadDir(skelDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkinitrd: %v\n", err)
		os.Exit(1)
	}

	files := map[string][]byte{}
	for _, ent := range entries {
		if ent.IsDir() {
			fmt.Fprintf(os.Stderr, "mkinitrd: skipping subdirectory %q (flat images only)\n", ent.Name())
			continue
		}
		data, err := os.ReadFile(filepath.Join(skelDir, ent.Name()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "mkinitrd: reading %q: %v\n", ent.Name(), err)
			os.Exit(1)
		}
		files[ent.Name()] = data
	}

	image, err := simplefs.BuildImage(files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkinitrd: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, image, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "mkinitrd: writing %q: %v\n", outPath, err)
		os.Exit(1)
	}
	fmt.Printf("mkinitrd: wrote %d bytes, %d files\n", len(image), len(files))
}
