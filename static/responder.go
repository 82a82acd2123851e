package static

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/freekieb7/httpsrvdev/filesystem"
	"github.com/freekieb7/httpsrvdev/http"
	"github.com/freekieb7/httpsrvdev/mimetype"
)

var (
	ErrShortFile = errors.New("static: file shorter than its reported size")

	indexFiles  = []string{"index.html", "index.htm"}
	parentEntry = filesystem.Entry{Name: "..", IsDir: true}
)

// ServeNotFound sends the plain 404 page, or only closes the connection when
// part of another response already went out.
func ServeNotFound(ctx *http.RequestCtx) {
	if ctx.Response.Started() {
		_ = ctx.Response.Finalize()
		return
	}
	http.NotFoundHandler(ctx)
}

// ServeError is ServeNotFound for 500.
func ServeError(ctx *http.RequestCtx) {
	if ctx.Response.Started() {
		_ = ctx.Response.Finalize()
		return
	}
	http.InternalServerErrorHandler(ctx)
}

// ServeFile streams the file at p with a Content-Length header. The file is
// read through a fixed-size buffer whatever its size.
func ServeFile(ctx *http.RequestCtx, fsys filesystem.Filesystem, p string, types mimetype.Resolver) error {
	info, err := types.Resolve(p)
	if err != nil {
		ServeError(ctx)
		return err
	}

	file, err := fsys.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			ServeNotFound(ctx)
		} else {
			ServeError(ctx)
		}
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			ctx.Logger.Error("closing file error", "path", p, "error", closeErr)
		}
	}()

	stat, err := file.Stat()
	if err != nil {
		ServeError(ctx)
		return err
	}
	size := stat.Size()

	res := ctx.Response
	if err := res.StatusLine(http.StatusOK); err != nil {
		return err
	}
	if err := res.Header(http.HeaderContentType, info.ContentType()); err != nil {
		return err
	}
	if err := res.ContentLength(size); err != nil {
		return err
	}
	if err := res.Header(http.HeaderConnection, "close"); err != nil {
		return err
	}
	if err := res.EndHeaders(); err != nil {
		return err
	}

	buf := make([]byte, http.DefaultFileChunkSize)
	n, err := io.CopyBuffer(res, io.LimitReader(file, size), buf)
	if err != nil {
		_ = res.Finalize()
		return fmt.Errorf("static: streaming %s: %w", p, err)
	}
	if n < size {
		_ = res.Finalize()
		return fmt.Errorf("%w: %s sent %d of %d bytes", ErrShortFile, p, n, size)
	}

	return res.Finalize()
}

// ServeDirectory answers with the directory's index file if it has one and a
// chunked HTML listing otherwise. Links are built as urlPrefix followed by
// the directory's path below the root.
func ServeDirectory(ctx *http.RequestCtx, root filesystem.Root, dir filesystem.Resolution, urlPrefix string, types mimetype.Resolver) error {
	base := strings.TrimSuffix(dir.Rel, "/")

	for _, name := range indexFiles {
		index := root.Resolve(base + "/" + name)
		if index.Kind == filesystem.KindFile {
			return ServeFile(ctx, root.Filesystem(), index.Path, types)
		}
	}

	entries, err := root.Filesystem().ListDirectory(dir.Path)
	if err != nil {
		ServeError(ctx)
		return err
	}

	res := ctx.Response
	if err := res.ListingBegin(); err != nil {
		return err
	}

	// The parent entry takes its byte-order place among the others
	parent := ""
	if base != "" {
		parent = path.Dir(urlPrefix + base)
		if !strings.HasSuffix(parent, "/") {
			parent += "/"
		}
		i, _ := slices.BinarySearchFunc(entries, parentEntry, func(e, target filesystem.Entry) int {
			return strings.Compare(e.Name, target.Name)
		})
		entries = slices.Insert(entries, i, parentEntry)
	}

	hrefBase := urlPrefix + base + "/"
	for _, entry := range entries {
		href := hrefBase + entry.Name
		switch {
		case entry == parentEntry && parent != "":
			href = parent
		case entry.IsDir:
			href += "/"
		}
		if err := res.ListingEntry(href, entry.Name); err != nil {
			return err
		}
	}

	return res.ListingEnd()
}
