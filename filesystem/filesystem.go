package filesystem

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Error constants for better error handling
var (
	ErrFileNotFound      = fmt.Errorf("filesystem: file not found")
	ErrDirectoryNotFound = fmt.Errorf("filesystem: directory not found")
	ErrInvalidPath       = fmt.Errorf("filesystem: invalid path")
)

// Entry is one name inside a listed directory.
type Entry struct {
	Name  string
	IsDir bool
}

// Filesystem is the read-only view the resolver and responders need.
type Filesystem interface {
	// Canonicalize returns the absolute path with every symlink, "." and ".."
	// resolved. It fails when any component does not exist.
	Canonicalize(path string) (string, error)
	Stat(path string) (os.FileInfo, error)
	Open(path string) (fs.File, error)
	ListDirectory(path string) ([]Entry, error)

	IsFile(path string) (bool, error)
}

type localFileSystem struct {
}

func NewLocalFileSystem() Filesystem {
	return &localFileSystem{}
}

// Canonicalize implements Filesystem.
func (filesystem *localFileSystem) Canonicalize(path string) (string, error) {
	if path == "" {
		return "", ErrInvalidPath
	}

	// filepath.Abs cleans lexically, which would drop ".." before the
	// symlink in front of it is followed.
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}
		path = abs
	}

	return filepath.EvalSymlinks(path)
}

// Stat implements Filesystem.
func (filesystem *localFileSystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// Open implements Filesystem.
func (filesystem *localFileSystem) Open(path string) (fs.File, error) {
	return os.Open(path)
}

// ListDirectory implements Filesystem. Entries are sorted by byte order of
// their names. Symlinks are followed to decide whether an entry is a
// directory; dangling ones are listed as files.
func (filesystem *localFileSystem) ListDirectory(path string) ([]Entry, error) {
	isDir, err := filesystem.isDirectory(path)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, path)
	}

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		entry := Entry{Name: dirEntry.Name(), IsDir: dirEntry.IsDir()}
		if dirEntry.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(path, dirEntry.Name()))
			if err == nil {
				entry.IsDir = info.IsDir()
			} else {
				slog.Debug("dangling symlink in listing", "path", path, "name", dirEntry.Name(), "error", err)
			}
		}
		entries = append(entries, entry)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})

	return entries, nil
}

// IsFile implements Filesystem. Only regular files count.
func (filesystem *localFileSystem) IsFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (filesystem *localFileSystem) isDirectory(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
