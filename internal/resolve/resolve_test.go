// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/mdify/pkg/types"
)

// mkFiles creates empty files under root, creating parent directories.
func mkFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func targets(items []types.WorkItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.TargetPath
	}
	return out
}

func TestResolveSingleFile(t *testing.T) {
	dir := t.TempDir()
	mkFiles(t, dir, "doc.pdf", "other.pdf")
	out := filepath.Join(dir, "out")

	// Glob and recursive are ignored for a file input.
	items, err := Resolve(filepath.Join(dir, "doc.pdf"), Options{Glob: "*.docx", Recursive: true, OutDir: out})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if want := filepath.Join(out, "doc.md"); items[0].TargetPath != want {
		t.Errorf("target = %q, want %q", items[0].TargetPath, want)
	}
}

func TestResolveDirectory(t *testing.T) {
	tests := []struct {
		name      string
		files     []string
		glob      string
		recursive bool
		wantRel   []string // expected targets relative to outDir
	}{
		{
			name:    "top level only",
			files:   []string{"a.pdf", "b.docx", "sub/c.pdf"},
			glob:    "*",
			wantRel: []string{"a.md", "b.md"},
		},
		{
			name:      "recursive mirrors structure",
			files:     []string{"a.pdf", "sub/c.pdf", "sub/deep/d.pdf"},
			glob:      "*",
			recursive: true,
			wantRel:   []string{"a.md", "sub/c.md", "sub/deep/d.md"},
		},
		{
			name:      "glob filters by base name",
			files:     []string{"a.pdf", "b.docx", "sub/c.pdf"},
			glob:      "*.pdf",
			recursive: true,
			wantRel:   []string{"a.md", "sub/c.md"},
		},
		{
			name:      "hidden and unsupported files excluded",
			files:     []string{".hidden.pdf", "notes.txt", "a.pdf"},
			glob:      "*",
			recursive: true,
			wantRel:   []string{"a.md"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := t.TempDir()
			out := t.TempDir()
			mkFiles(t, in, tt.files...)

			items, err := Resolve(in, Options{Glob: tt.glob, Recursive: tt.recursive, OutDir: out})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := make([]string, len(tt.wantRel))
			for i, rel := range tt.wantRel {
				want[i] = filepath.Join(out, filepath.FromSlash(rel))
			}
			got := targets(items)
			if len(got) != len(want) {
				t.Fatalf("got %d items %v, want %d", len(got), got, len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("item %d target = %q, want %q", i, got[i], want[i])
				}
			}
		})
	}
}

func TestResolveDeterministicOrder(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	mkFiles(t, in, "z.pdf", "a.pdf", "m/b.pdf", "m/a.pdf")

	items, err := Resolve(in, Options{Glob: "*", Recursive: true, OutDir: out})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a.md", "m/a.md", "m/b.md", "z.md"}
	for i, rel := range want {
		if got := items[i].TargetPath; got != filepath.Join(out, filepath.FromSlash(rel)) {
			t.Errorf("item %d = %q, want %q", i, got, rel)
		}
	}
}

func TestResolveFlatNamingIsInjective(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	mkFiles(t, in, "subdir1/file.pdf", "subdir2/file.pdf", "top.pdf", "a/b/c/file.pdf")

	items, err := Resolve(in, Options{Glob: "*", Recursive: true, OutDir: out, Flat: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[string]bool{}
	for _, it := range items {
		if filepath.Dir(it.TargetPath) != out {
			t.Errorf("flat output not directly under outDir: %s", it.TargetPath)
		}
		if seen[it.TargetPath] {
			t.Errorf("target collision: %s", it.TargetPath)
		}
		seen[it.TargetPath] = true
	}

	want := map[string]bool{
		"a_b_c_file.md":   true,
		"subdir1_file.md": true,
		"subdir2_file.md": true,
		"top.md":          true,
	}
	for _, it := range items {
		if !want[filepath.Base(it.TargetPath)] {
			t.Errorf("unexpected flat name %s", filepath.Base(it.TargetPath))
		}
	}
	if len(items) != len(want) {
		t.Errorf("got %d items, want %d", len(items), len(want))
	}
}

func TestResolveRejectsTargetCollisions(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		flat  bool
	}{
		{
			// The underscore fold is not injective: both inputs claim
			// a_b_file.md.
			name:  "flat underscore directories",
			files: []string{"a_b/file.pdf", "a/b_file.pdf"},
			flat:  true,
		},
		{
			// Inputs differing only by extension claim the same .md target.
			name:  "structured extension collision",
			files: []string{"a.pdf", "a.md"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := t.TempDir()
			out := t.TempDir()
			mkFiles(t, in, tt.files...)

			_, err := Resolve(in, Options{Glob: "*", Recursive: true, OutDir: out, Flat: tt.flat})
			if err == nil {
				t.Fatal("expected collision error, got nil")
			}
			if !strings.Contains(err.Error(), "collision") {
				t.Errorf("error %q should name the collision", err)
			}
		})
	}
}

func TestResolveOverwriteSkipsExisting(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	mkFiles(t, in, "a.pdf", "b.pdf")
	mkFiles(t, out, "a.md")

	items, err := Resolve(in, Options{Glob: "*", OutDir: out})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !items[0].Skip {
		t.Error("existing target should be marked Skip")
	}
	if items[1].Skip {
		t.Error("missing target should not be marked Skip")
	}

	// With overwrite set, nothing is skipped.
	items, err = Resolve(in, Options{Glob: "*", OutDir: out, Overwrite: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, it := range items {
		if it.Skip {
			t.Errorf("overwrite run should not skip %s", it.SourcePath)
		}
	}
}

func TestResolveNoInput(t *testing.T) {
	in := t.TempDir()
	mkFiles(t, in, "notes.txt")

	_, err := Resolve(in, Options{Glob: "*", OutDir: t.TempDir()})
	if !errors.Is(err, ErrNoInput) {
		t.Fatalf("got %v, want ErrNoInput", err)
	}
}

func TestResolveMissingInput(t *testing.T) {
	_, err := Resolve(filepath.Join(t.TempDir(), "nope"), Options{OutDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for missing input path")
	}
}

func TestResolveBadGlob(t *testing.T) {
	in := t.TempDir()
	mkFiles(t, in, "a.pdf")
	_, err := Resolve(in, Options{Glob: "[", OutDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for malformed glob")
	}
}
