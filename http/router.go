package http

type Router struct {
	Routes     []Route
	Middleware []Middleware
	NotFound   Handler
}

func NewRouter() Router {
	return Router{
		Routes:   make([]Route, 0),
		NotFound: NotFoundHandler,
	}
}

func (router *Router) GET(path string, handler Handler, middleware ...Middleware) {
	router.Any([]Method{MethodGet}, path, handler, middleware...)
}

// Any registers handler for an exact target. A nil method list accepts every
// method.
func (router *Router) Any(methods []Method, path string, handler Handler, middleware ...Middleware) {
	router.add(Route{Methods: methods, Path: path, Handler: handler}, middleware)
}

// Prefix registers handler for every target starting with path.
func (router *Router) Prefix(methods []Method, path string, handler Handler, middleware ...Middleware) {
	router.add(Route{Methods: methods, Path: path, Prefix: true, Handler: handler}, middleware)
}

func (router *Router) add(route Route, middleware []Middleware) {
	for _, m := range middleware {
		route.Handler = m(route.Handler)
	}
	router.Routes = append(router.Routes, route)
}

func (router *Router) Use(middleware ...Middleware) {
	router.Middleware = append(router.Middleware, middleware...)
}

// Handler dispatches to the exact route first, then to the longest matching
// prefix route.
func (router *Router) Handler() Handler {
	routes := make([]Route, len(router.Routes))
	copy(routes, router.Routes)
	notFound := router.NotFound
	if notFound == nil {
		notFound = NotFoundHandler
	}

	var handler Handler = func(ctx *RequestCtx) {
		target := ctx.TargetString()
		method := ctx.Request.Method

		match := -1
		for i, route := range routes {
			if !route.matches(method, target) {
				continue
			}
			if !route.Prefix {
				match = i
				break
			}
			if match < 0 || len(route.Path) > len(routes[match].Path) {
				match = i
			}
		}

		if match < 0 {
			notFound(ctx)
			return
		}
		routes[match].Handler(ctx)
	}

	for _, m := range router.Middleware {
		handler = m(handler)
	}
	return handler
}
