package static

import (
	"github.com/freekieb7/httpsrvdev/http"
)

type StartConfig struct {
	HTTP       http.Config
	Site       Config
	Middleware []http.Middleware
}

type Server struct {
	*http.Server
	Site *Site
}

// Start validates the sources and binds the listening socket. Serving begins
// with Serve.
func Start(cfg StartConfig) (*Server, error) {
	if cfg.Site.Logger == nil {
		cfg.Site.Logger = cfg.HTTP.Logger
	}

	site, err := NewSite(cfg.Site)
	if err != nil {
		return nil, err
	}

	srv, err := http.Start(cfg.HTTP, site.Handler(cfg.Middleware...))
	if err != nil {
		return nil, err
	}

	return &Server{Server: srv, Site: site}, nil
}
