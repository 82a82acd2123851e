package http

import (
	"fmt"
	"log/slog"
)

type Middleware func(next Handler) Handler

// RecoverMiddleware keeps a panicking handler from taking the accept loop
// down. The client gets a 500 when nothing has been sent yet.
func RecoverMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			defer func() {
				if recovered := recover(); recovered != nil {
					logger := ctx.Logger
					if logger == nil {
						logger = slog.Default()
					}
					logger.Error("handler panic", "conn", ctx.ID, "panic", fmt.Sprint(recovered))

					if !ctx.Response.Started() {
						InternalServerErrorHandler(ctx)
						return
					}
					_ = ctx.Response.Finalize()
				}
			}()

			next(ctx)
		}
	}
}

// HeadMiddleware strips body bytes from responses to HEAD requests.
func HeadMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			if ctx.Request.Method == MethodHead {
				ctx.Response.SetHeadOnly(true)
			}
			next(ctx)
		}
	}
}

var InternalServerErrorHandler Handler = func(ctx *RequestCtx) {
	if err := ctx.Response.StatusLine(StatusInternalServerError); err != nil {
		return
	}
	if err := ctx.Response.Header(HeaderContentType, "text/plain; charset=utf-8"); err != nil {
		return
	}
	if err := ctx.Response.Header(HeaderConnection, "close"); err != nil {
		return
	}
	_ = ctx.Response.Body([]byte("Internal server error!"))
}
