package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SearchPaths looks for a file in multiple locations.
// Returns the first path where the file exists, or an error if not found.
func SearchPaths(paths []string) (string, error) {
	for _, path := range paths {
		if FileExists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("file not found in any of the search paths: %v", paths)
}

// ParentSearchPaths returns the candidate locations of filename for a
// project rooted at dir. Search order:
// 1. <dir>/<filename>
// 2. <parent of dir>/<filename>
func ParentSearchPaths(dir, filename string) []string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}
	paths := []string{filepath.Join(abs, filename)}
	if parent := filepath.Dir(abs); parent != abs {
		paths = append(paths, filepath.Join(parent, filename))
	}
	return paths
}

// UserConfigPath returns <user config dir>/<app>/<filename>, falling back to
// ~/.<app>/<filename> when the platform config dir is unknown.
func UserConfigPath(app, filename string) string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, app, filename)
	}
	return ExpandUser(filepath.Join("~", "."+app, filename))
}

// ExpandUser replaces a leading "~" with the current user's home directory
// and cleans the result.
func ExpandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return filepath.Clean(path)
}

// FileExists checks if a file exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
