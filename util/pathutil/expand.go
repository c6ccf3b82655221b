// Package pathutil expands and compares the file paths found in pulse.yml.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Expand expands a leading ~ and environment variables in path and returns
// it as an absolute path. An empty path stays empty.
func Expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	path = os.ExpandEnv(path)

	return filepath.Abs(path)
}

// normalize makes path absolute, resolves symlinks when it exists and folds
// case on case-insensitive filesystems.
func normalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		return strings.ToLower(abs), nil
	}
	return abs, nil
}

// ComparePaths reports whether two paths refer to the same location.
func ComparePaths(path1, path2 string) (bool, error) {
	norm1, err := normalize(path1)
	if err != nil {
		return false, err
	}
	norm2, err := normalize(path2)
	if err != nil {
		return false, err
	}
	return norm1 == norm2, nil
}
