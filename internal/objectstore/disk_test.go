package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDiskStageCommit(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	store, err := NewDisk(root)
	if err != nil {
		t.Fatal(err)
	}

	w, err := store.StageWrite(ctx, "tmp-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("assembled bytes")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// До коммита объект снаружи не виден.
	if _, err := os.Stat(filepath.Join(root, "obj-1")); !os.IsNotExist(err) {
		t.Fatal("object visible before commit")
	}

	if err := store.CommitStaged(ctx, "tmp-1", "obj-1"); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(root, "obj-1"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "assembled bytes" {
		t.Fatalf("committed bytes = %q", got)
	}

	// Staging-файл после коммита исчез.
	if _, err := os.Stat(filepath.Join(root, stagingDirName, "tmp-1")); !os.IsNotExist(err) {
		t.Fatal("staging artifact survived commit")
	}
}

func TestDiskDiscard(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	store, err := NewDisk(root)
	if err != nil {
		t.Fatal(err)
	}

	w, err := store.StageWrite(ctx, "tmp-2")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte("partial"))
	_ = w.Close()

	if err := store.DiscardStaged(ctx, "tmp-2"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, stagingDirName, "tmp-2")); !os.IsNotExist(err) {
		t.Fatal("staging artifact survived discard")
	}

	// Повторный discard — no-op.
	if err := store.DiscardStaged(ctx, "tmp-2"); err != nil {
		t.Fatal(err)
	}
}
