package http

type Route struct {
	Methods []Method
	Path    string
	Prefix  bool
	Handler Handler
}

func (route Route) matches(method Method, target string) bool {
	if route.Prefix {
		if len(target) < len(route.Path) || target[:len(route.Path)] != route.Path {
			return false
		}
	} else if target != route.Path {
		return false
	}

	if len(route.Methods) == 0 {
		return true
	}
	for _, m := range route.Methods {
		if m == method {
			return true
		}
	}
	return false
}

var NotFoundHandler Handler = func(ctx *RequestCtx) {
	if err := ctx.Response.StatusLine(StatusNotFound); err != nil {
		return
	}
	if err := ctx.Response.Header(HeaderContentType, "text/plain; charset=utf-8"); err != nil {
		return
	}
	if err := ctx.Response.Header(HeaderConnection, "close"); err != nil {
		return
	}
	_ = ctx.Response.Body([]byte("File not found!"))
}
