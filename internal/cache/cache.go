// Package cache resolves where compiled bytecode for a source file lives.
// Compiled output sits next to the source in a .zr-cache directory, named
// after the source file with the compiled extension.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zerolang/zero/internal/config"
)

// PathFor returns the cache path for a source file:
// <dir>/.zr-cache/<name>.zrc
func PathFor(sourcePath string) string {
	dir := filepath.Dir(sourcePath)
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, config.CacheDirName, stem+config.CompiledFileExt)
}

// EnsureDir creates the cache directory for a source file if needed and
// returns the cache file path inside it.
func EnsureDir(sourcePath string) (string, error) {
	cachePath := PathFor(sourcePath)
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}
	return cachePath, nil
}
