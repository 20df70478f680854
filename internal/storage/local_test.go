package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorage_PublishAndFetch(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	ctx := context.Background()

	work := t.TempDir()
	src := filepath.Join(work, "shard.db")
	if err := os.WriteFile(src, []byte("snapshot bytes"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	if err := store.Upload(ctx, src, "snapshots/global/shard.db"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	ok, err := store.Exists(ctx, "snapshots/global/shard.db")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true, nil", ok, err)
	}

	dst := filepath.Join(work, "cache", "shard.db")
	if err := store.Download(ctx, "snapshots/global/shard.db", dst); err != nil {
		t.Fatalf("Download: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read downloaded: %v", err)
	}
	if string(got) != "snapshot bytes" {
		t.Errorf("downloaded %q", got)
	}
}

func TestLocalStorage_Missing(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	ctx := context.Background()

	ok, err := store.Exists(ctx, "nope.db")
	if err != nil || ok {
		t.Errorf("Exists = %v, %v; want false, nil", ok, err)
	}

	err = store.Download(ctx, "nope.db", filepath.Join(t.TempDir(), "x.db"))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Download err = %v, want ErrObjectNotFound", err)
	}
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Upload(ctx, "a", "b"); !errors.Is(err, context.Canceled) {
		t.Errorf("Upload err = %v, want context.Canceled", err)
	}
	if _, err := store.Exists(ctx, "b"); !errors.Is(err, context.Canceled) {
		t.Errorf("Exists err = %v, want context.Canceled", err)
	}
}

func TestLocalStorage_UploadMissingSource(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	err = store.Upload(context.Background(), filepath.Join(t.TempDir(), "absent.db"), "x.db")
	if !errors.Is(err, ErrUploadFailed) {
		t.Errorf("Upload err = %v, want ErrUploadFailed", err)
	}
}
