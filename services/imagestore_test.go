package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestImageStoreSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewImageStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	path, err := store.Save(ImageKindPlate, []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), ImageKindPlate+"_") {
		t.Errorf("filename %q does not carry the %s prefix", filepath.Base(path), ImageKindPlate)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("stored bytes = %q", data)
	}

	// Two saves never collide.
	other, err := store.Save(ImageKindPlate, []byte("more"))
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if other == path {
		t.Error("two saves produced the same path")
	}
}

func TestImageStoreCreatesDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	if _, err := NewImageStore(dir); err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("store directory not created: %v", err)
	}
}
