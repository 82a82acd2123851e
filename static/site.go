package static

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/freekieb7/httpsrvdev/filesystem"
	"github.com/freekieb7/httpsrvdev/http"
	"github.com/freekieb7/httpsrvdev/mimetype"
)

const (
	StdinSource      = "-"
	StdinRoute       = "/-"
	SourceRoute      = "/source"
	MaxStdinSize     = 1 << 20
	DefaultSource    = "."
	DefaultStdinMIME = "text/plain"
)

var ErrStdinTooLarge = errors.New("static: standard input exceeds 1 MiB")

type Config struct {
	// Sources are directories, single files or "-" for standard input.
	// No sources serves the working directory.
	Sources         []string
	DefaultMimeType string
	Stdin           []byte
	StdinMimeType   string
	Logger          *slog.Logger
	Filesystem      filesystem.Filesystem
}

type source struct {
	name  string
	stdin bool
	root  filesystem.Root
}

// Site routes request targets to its sources. With one source every target
// resolves against it. With several, "/" lists them, "/-" is standard input
// and "/sourceN/..." resolves against the N-th source.
type Site struct {
	sources   []source
	types     mimetype.Resolver
	stdin     []byte
	stdinType string
	logger    *slog.Logger
}

func NewSite(cfg Config) (*Site, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Filesystem == nil {
		cfg.Filesystem = filesystem.NewLocalFileSystem()
	}
	if cfg.StdinMimeType == "" {
		cfg.StdinMimeType = DefaultStdinMIME
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = []string{DefaultSource}
	}
	if len(cfg.Stdin) > MaxStdinSize {
		return nil, ErrStdinTooLarge
	}

	site := &Site{
		sources:   make([]source, 0, len(cfg.Sources)),
		types:     mimetype.Resolver{Default: cfg.DefaultMimeType},
		stdin:     cfg.Stdin,
		stdinType: cfg.StdinMimeType,
		logger:    cfg.Logger,
	}

	for _, name := range cfg.Sources {
		if name == StdinSource {
			site.sources = append(site.sources, source{name: name, stdin: true})
			continue
		}

		root, err := filesystem.NewRoot(cfg.Filesystem, name)
		if err != nil {
			return nil, fmt.Errorf("static: source %q: %w", name, err)
		}
		site.sources = append(site.sources, source{name: name, root: root})
		site.logger.Debug("serving source", "source", name, "path", root.Path(), "file", root.IsFile())
	}

	return site, nil
}

// ReadStdin reads standard input once. Input beyond 1 MiB is an error.
func ReadStdin(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxStdinSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxStdinSize {
		return nil, ErrStdinTooLarge
	}
	return data, nil
}

func (site *Site) multi() bool {
	return len(site.sources) > 1
}

func (site *Site) hasStdin() bool {
	for _, src := range site.sources {
		if src.stdin {
			return true
		}
	}
	return false
}

// Resolve maps target onto the source at index (zero based). Out of range
// indexes and the standard input source resolve to NotFound.
func (site *Site) Resolve(index int, target string) filesystem.Resolution {
	if index < 0 || index >= len(site.sources) || site.sources[index].stdin {
		return filesystem.Resolution{Kind: filesystem.KindNotFound}
	}
	return site.sources[index].root.Resolve(target)
}

// Handler builds the request handler. Extra middleware wraps outermost.
func (site *Site) Handler(middleware ...http.Middleware) http.Handler {
	router := http.NewRouter()
	router.Use(http.HeadMiddleware(), http.RecoverMiddleware())
	router.Use(middleware...)

	if !site.multi() {
		// The empty prefix matches every target
		if site.sources[0].stdin {
			router.Prefix(nil, "", site.serveStdin)
		} else {
			router.Prefix(nil, "", func(ctx *http.RequestCtx) {
				site.serveSource(ctx, 0, ctx.TargetString(), "")
			})
		}
		return router.Handler()
	}

	router.Any(nil, "/", site.serveSourceListing)
	if site.hasStdin() {
		router.Any(nil, StdinRoute, site.serveStdin)
	}
	router.Prefix(nil, SourceRoute, site.serveNumberedSource)

	return router.Handler()
}

// serveNumberedSource handles "/sourceN" and "/sourceN/...".
func (site *Site) serveNumberedSource(ctx *http.RequestCtx) {
	target := ctx.TargetString()
	rest := target[len(SourceRoute):]

	end := strings.IndexByte(rest, '/')
	if end < 0 {
		end = len(rest)
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil || n < 1 || n > len(site.sources) || strconv.Itoa(n) != rest[:end] {
		ServeNotFound(ctx)
		return
	}

	site.serveSource(ctx, n-1, rest[end:], SourceRoute+rest[:end])
}

func (site *Site) serveSource(ctx *http.RequestCtx, index int, target, urlPrefix string) {
	res := site.Resolve(index, target)
	root := site.sources[index].root

	var err error
	switch res.Kind {
	case filesystem.KindFile:
		err = ServeFile(ctx, root.Filesystem(), res.Path, site.types)
	case filesystem.KindDirectory:
		err = ServeDirectory(ctx, root, res, urlPrefix, site.types)
	case filesystem.KindIOError:
		ctx.Logger.Warn("resolving target failed", "target", target, "error", res.Err)
		ServeError(ctx)
	default:
		ctx.Logger.Debug("target not found", "target", target, "error", res.Err)
		ServeNotFound(ctx)
	}

	if err != nil {
		ctx.Logger.Error("serving target failed", "target", target, "path", res.Path, "error", err)
	}
}

func (site *Site) serveSourceListing(ctx *http.RequestCtx) {
	res := ctx.Response
	if err := res.ListingBegin(); err != nil {
		ctx.Logger.Error("listing sources failed", "error", err)
		return
	}

	for i, src := range site.sources {
		href, text := StdinRoute, "STDIN"
		if !src.stdin {
			href = SourceRoute + strconv.Itoa(i+1)
			if !src.root.IsFile() {
				href += "/"
			}
			text = src.name
		}
		if err := res.ListingEntry(href, text); err != nil {
			ctx.Logger.Error("listing sources failed", "error", err)
			return
		}
	}

	if err := res.ListingEnd(); err != nil {
		ctx.Logger.Error("listing sources failed", "error", err)
	}
}

func (site *Site) serveStdin(ctx *http.RequestCtx) {
	res := ctx.Response
	if err := res.StatusLine(http.StatusOK); err != nil {
		return
	}
	if err := res.Header(http.HeaderContentType, site.stdinType+"; charset=utf-8"); err != nil {
		return
	}
	if err := res.Header(http.HeaderConnection, "close"); err != nil {
		return
	}
	if err := res.Body(site.stdin); err != nil {
		ctx.Logger.Error("serving standard input failed", "error", err)
	}
}
