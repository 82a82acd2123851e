package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

var (
	ErrOutsideRoot = errors.New("filesystem: path escapes root")
	ErrNotRegular  = errors.New("filesystem: not a regular file or directory")
)

type Kind uint8

const (
	KindNotFound Kind = iota
	KindFile
	KindDirectory
	KindIOError
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindIOError:
		return "io error"
	default:
		return "not found"
	}
}

// Resolution is the outcome of mapping a request target onto a root. Err is
// only meant for logs; clients see NotFound for escapes and missing paths
// alike.
type Resolution struct {
	Kind Kind
	// Path is the canonical filesystem path for File and Directory.
	Path string
	// Rel is Path relative to the root in slash form, always starting with "/".
	Rel string
	Err error
}

// Root is a canonicalized directory or single file that requests resolve
// against.
type Root struct {
	fs   Filesystem
	path string
	file bool
}

// NewRoot canonicalizes path once. The path must exist.
func NewRoot(fsys Filesystem, path string) (Root, error) {
	canonical, err := fsys.Canonicalize(path)
	if err != nil {
		return Root{}, fmt.Errorf("filesystem: root %q: %w", path, err)
	}

	info, err := fsys.Stat(canonical)
	if err != nil {
		return Root{}, fmt.Errorf("filesystem: root %q: %w", path, err)
	}

	return Root{
		fs:   fsys,
		path: canonical,
		file: !info.IsDir(),
	}, nil
}

func (root Root) Path() string {
	return root.path
}

func (root Root) IsFile() bool {
	return root.file
}

func (root Root) Filesystem() Filesystem {
	return root.fs
}

// Contains reports whether a canonical path is the root or lies below it.
func (root Root) Contains(canonical string) bool {
	if canonical == root.path {
		return true
	}

	prefix := root.path
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(canonical, prefix)
}

// Resolve maps a raw, undecoded request target onto the root. A single-file
// root only answers "" and "/".
func (root Root) Resolve(target string) Resolution {
	if root.fs == nil {
		return Resolution{Kind: KindNotFound, Err: ErrInvalidPath}
	}

	if root.file {
		if target == "" || target == "/" {
			return Resolution{Kind: KindFile, Path: root.path, Rel: "/"}
		}
		return Resolution{Kind: KindNotFound, Err: ErrFileNotFound}
	}

	joined := root.path + string(filepath.Separator) + filepath.FromSlash(target)
	canonical, err := root.fs.Canonicalize(joined)
	if err != nil {
		return Resolution{Kind: KindNotFound, Err: err}
	}
	if !root.Contains(canonical) {
		return Resolution{Kind: KindNotFound, Err: fmt.Errorf("%w: %s", ErrOutsideRoot, target)}
	}

	info, err := root.fs.Stat(canonical)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Resolution{Kind: KindNotFound, Err: err}
		}
		return Resolution{Kind: KindIOError, Err: err}
	}

	res := Resolution{Path: canonical, Rel: root.rel(canonical)}
	switch {
	case info.IsDir():
		res.Kind = KindDirectory
	case info.Mode().IsRegular():
		res.Kind = KindFile
	default:
		// Devices, sockets and pipes are never served
		res.Kind = KindIOError
		res.Err = fmt.Errorf("%w: %s", ErrNotRegular, info.Mode().Type())
	}

	return res
}

func (root Root) rel(canonical string) string {
	rel := strings.TrimPrefix(canonical, root.path)
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return rel
}
