package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPathFor(t *testing.T) {
	got := PathFor(filepath.Join("some", "dir", "prog.zr"))
	want := filepath.Join("some", "dir", ".zr-cache", "prog.zrc")
	if got != want {
		t.Errorf("cache path wrong. got=%q, want=%q", got, want)
	}
}

func TestPathForBareFile(t *testing.T) {
	got := PathFor("prog.zr")
	want := filepath.Join(".zr-cache", "prog.zrc")
	if got != want {
		t.Errorf("cache path wrong. got=%q, want=%q", got, want)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "prog.zr")

	cachePath, err := EnsureDir(source)
	if err != nil {
		t.Fatalf("EnsureDir error: %s", err)
	}
	if cachePath != filepath.Join(dir, ".zr-cache", "prog.zrc") {
		t.Errorf("cache path wrong. got=%q", cachePath)
	}

	info, err := os.Stat(filepath.Dir(cachePath))
	if err != nil || !info.IsDir() {
		t.Fatalf("cache directory not created: %v", err)
	}

	// Calling again with the directory in place is fine.
	if _, err := EnsureDir(source); err != nil {
		t.Fatalf("second EnsureDir error: %s", err)
	}
}
