package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/sidkik/lds/pkg/errors"
)

// MaxWatchesPath is the procfs file containing the per-user inotify watch
// limit.
const MaxWatchesPath = "/proc/sys/fs/inotify/max_user_watches"

// ValidateDirectory checks that `path` is an existing directory, and returns
// its absolute form without trailing separators.
func ValidateDirectory(path string) (string, error) {
	trimmed := strings.TrimRight(path, string(filepath.Separator))
	if trimmed == "" {
		trimmed = string(filepath.Separator)
	}

	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", errors.WithContext(err, "get absolute path")
	}

	info, err := fs.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.FileNotFound{Path: path}
		}
		return "", errors.WithContext(err, "stat")
	}

	if !info.IsDir() {
		return "", errors.NotDirectory{Path: path}
	}
	return abs, nil
}

// ValidateDirectories validates the source and destination directories.
func ValidateDirectories(source, destination string) (string, string, error) {
	src, err := ValidateDirectory(source)
	if err != nil {
		return "", "", errors.WithContext(err, "source")
	}

	dst, err := ValidateDirectory(destination)
	if err != nil {
		return "", "", errors.WithContext(err, "destination")
	}

	if isWithin(dst, src) {
		return "", "", errors.NewFriendlyError(
			"The destination (%q) can't be inside the source (%q).", dst, src)
	}
	return src, dst, nil
}

// isWithin returns whether `path` is `dir` or a descendant of it.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." &&
		!strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// MaxWatches returns the number of watches that the current user may
// install.
func MaxWatches() (int, error) {
	contents, err := afero.ReadFile(fs, MaxWatchesPath)
	if err != nil {
		return 0, errors.WithContext(err, "read watch limit")
	}

	limit, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0, errors.WithContext(err, "parse watch limit")
	}

	if limit <= 0 {
		return 0, errors.Errorf("invalid watch limit %d", limit)
	}
	return limit, nil
}
