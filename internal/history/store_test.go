// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "history.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.Record(BatchRecord{
		StartedAt: started,
		Runtime:   "docker",
		Image:     "img:latest",
		OK:        2, Failed: 1, Skipped: 1,
		Elapsed: 90 * time.Second,
	}, []FileRecord{
		{Source: "/in/a.pdf", Target: "/out/a.md", Status: "ok", Elapsed: 40 * time.Second},
		{Source: "/in/b.pdf", Target: "/out/b.md", Status: "failed", Error: "timeout", Elapsed: 50 * time.Second},
		{Source: "/in/c.pdf", Target: "/out/c.md", Status: "skipped"},
	})
	if err != nil {
		t.Fatalf("recording batch: %v", err)
	}
	if id == 0 {
		t.Fatal("batch id should be non-zero")
	}

	batches, err := s.Recent(10)
	if err != nil {
		t.Fatalf("listing batches: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	b := batches[0]
	if b.Runtime != "docker" || b.Image != "img:latest" {
		t.Errorf("batch = %+v", b)
	}
	if b.OK != 2 || b.Failed != 1 || b.Skipped != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", b.OK, b.Failed, b.Skipped)
	}
	if !b.StartedAt.Equal(started) {
		t.Errorf("started at = %v, want %v", b.StartedAt, started)
	}
	if b.Elapsed != 90*time.Second {
		t.Errorf("elapsed = %v", b.Elapsed)
	}

	files, err := s.Files(id)
	if err != nil {
		t.Fatalf("listing files: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d file records, want 3", len(files))
	}
	if files[1].Status != "failed" || files[1].Error != "timeout" {
		t.Errorf("file record = %+v", files[1])
	}
}

func TestRecentOrdersNewestFirstAndLimits(t *testing.T) {
	s := openStore(t)
	for i := 0; i < 5; i++ {
		if _, err := s.Record(BatchRecord{
			StartedAt: time.Now().UTC(),
			Runtime:   "podman",
			Image:     "img",
			OK:        i,
		}, nil); err != nil {
			t.Fatal(err)
		}
	}

	batches, err := s.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	// Newest first: the last insert had OK=4.
	if batches[0].OK != 4 || batches[2].OK != 2 {
		t.Errorf("order wrong: %v", batches)
	}
}

func TestRecentEmptyStore(t *testing.T) {
	s := openStore(t)
	batches, err := s.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 0 {
		t.Errorf("expected no batches, got %v", batches)
	}
}
