// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve turns an input path, glob pattern, and output mode into
// the ordered list of work items a conversion batch will process.
package resolve

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/mdify/pkg/types"
)

// ErrNoInput is returned when zero files match the input specification.
var ErrNoInput = errors.New("no files found to convert")

// supportedExtensions lists the input formats the conversion service
// accepts. Directory scans filter on these; an explicit file input is
// passed through as given.
var supportedExtensions = map[string]bool{
	".pdf":      true,
	".docx":     true,
	".pptx":     true,
	".html":     true,
	".htm":      true,
	".png":      true,
	".jpg":      true,
	".jpeg":     true,
	".gif":      true,
	".bmp":      true,
	".tiff":     true,
	".tif":      true,
	".asciidoc": true,
	".adoc":     true,
	".asc":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".xlsx":     true,
	".xml":      true,
	".json":     true,
	".mp3":      true,
	".wav":      true,
	".m4a":      true,
	".flac":     true,
	".vtt":      true,
}

// Options control file discovery and output path computation.
type Options struct {
	Glob      string
	Recursive bool
	OutDir    string
	Flat      bool
	Overwrite bool
}

// Resolve produces the ordered work list for input. A file input yields
// exactly one item regardless of Glob and Recursive; a directory input is
// enumerated under the glob and recursion settings and sorted
// lexicographically by relative path so runs are reproducible.
func Resolve(input string, opts Options) ([]types.WorkItem, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("input path does not exist: %s", input)
	}

	absInput, err := filepath.Abs(input)
	if err != nil {
		return nil, fmt.Errorf("resolving input path: %w", err)
	}
	outDir, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("resolving output directory: %w", err)
	}

	glob := opts.Glob
	if glob == "" {
		glob = "*"
	}

	if !info.IsDir() {
		return []types.WorkItem{buildItem(absInput, filepath.Dir(absInput), outDir, opts)}, nil
	}

	files, err := listFiles(absInput, glob, opts.Recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s (glob %q)", ErrNoInput, input, glob)
	}
	sort.Strings(files)

	items := make([]types.WorkItem, 0, len(files))
	for _, rel := range files {
		items = append(items, buildItem(filepath.Join(absInput, rel), absInput, outDir, opts))
	}
	if err := checkTargetCollisions(items); err != nil {
		return nil, err
	}
	return items, nil
}

// checkTargetCollisions rejects batches where two inputs resolve to the
// same output path. Flat mode folds directory separators into
// underscores, so a_b/file.pdf and a/b_file.pdf would both claim
// a_b_file.md; structured mode collides when inputs differ only by
// extension. A silent overwrite would report both files as converted
// while keeping only one result.
func checkTargetCollisions(items []types.WorkItem) error {
	seen := make(map[string]string, len(items))
	for _, item := range items {
		if prev, dup := seen[item.TargetPath]; dup {
			return fmt.Errorf("output path collision: %s and %s both map to %s (rename the inputs, or convert them in separate runs)",
				prev, item.SourcePath, item.TargetPath)
		}
		seen[item.TargetPath] = item.SourcePath
	}
	return nil
}

// listFiles enumerates convertible files under dir, returned as paths
// relative to dir. Hidden files and unsupported formats are excluded.
func listFiles(dir, glob string, recursive bool) ([]string, error) {
	// Validate the pattern up front so a bad glob fails loudly instead of
	// silently matching nothing.
	if _, err := filepath.Match(glob, "probe"); err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", glob, err)
	}

	var files []string
	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !convertible(e.Name(), glob) {
				continue
			}
			files = append(files, e.Name())
		}
		return files, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !convertible(d.Name(), glob) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning directory %s: %w", dir, err)
	}
	return files, nil
}

func convertible(name, glob string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	if !supportedExtensions[strings.ToLower(filepath.Ext(name))] {
		return false
	}
	ok, _ := filepath.Match(glob, name)
	return ok
}

// buildItem computes the output path for source relative to base.
// Structured mode mirrors the directory tree under outDir. Flat mode
// joins the full relative directory chain into the filename with
// underscores, which keeps leaf-name collisions in different directories
// apart; the underscore fold itself can still collide, which Resolve
// rejects via checkTargetCollisions.
func buildItem(source, base, outDir string, opts Options) types.WorkItem {
	rel, err := filepath.Rel(base, source)
	if err != nil {
		rel = filepath.Base(source)
	}
	stem := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))

	var target string
	if opts.Flat {
		name := stem + ".md"
		if dir := filepath.Dir(rel); dir != "." {
			prefix := strings.Join(strings.Split(filepath.ToSlash(dir), "/"), "_")
			name = prefix + "_" + name
		}
		target = filepath.Join(outDir, name)
	} else {
		target = filepath.Join(outDir, filepath.Dir(rel), stem+".md")
	}

	item := types.WorkItem{SourcePath: source, TargetPath: target}
	if !opts.Overwrite {
		if _, err := os.Stat(target); err == nil {
			item.Skip = true
		}
	}
	return item
}
