package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiskSaveAndURL(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, "/files/")
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}

	url, err := d.Save(context.Background(), "attachments/a.txt", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if url != "/files/attachments/a.txt" {
		t.Errorf("url = %q, want /files/attachments/a.txt", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "attachments", "a.txt"))
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("content = %q, want payload", data)
	}
}

func TestDiskDelete(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, "/files")
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}

	if _, err := d.Save(context.Background(), "a.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := d.Delete(context.Background(), "a.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); !os.IsNotExist(err) {
		t.Errorf("file still exists after delete")
	}

	// Deleting a missing key is a no-op.
	if err := d.Delete(context.Background(), "a.txt"); err != nil {
		t.Errorf("Delete missing key: %v", err)
	}
}

func TestDiskKeyTraversalStaysUnderRoot(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, "/files")
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}

	if _, err := d.Save(context.Background(), "../escape.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape.txt")); !os.IsNotExist(err) {
		t.Errorf("traversal key escaped the storage root")
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); err != nil {
		t.Errorf("traversal key not cleaned into root: %v", err)
	}
}
