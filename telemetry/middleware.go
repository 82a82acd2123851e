package telemetry

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/freekieb7/httpsrvdev/http"
)

// Middleware wraps each request in a server span, records it in metrics
// and writes the request log line. metrics may be nil.
func Middleware(metrics *Metrics) http.Middleware {
	tracer := otel.Tracer(ScopeName)

	return func(next http.Handler) http.Handler {
		return func(ctx *http.RequestCtx) {
			start := time.Now()
			method := ctx.Request.Method.String()
			target := ctx.TargetString()

			spanCtx, span := tracer.Start(ctx.Context, "http.request",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", method),
					attribute.String("url.path", target),
					attribute.String("httpsrvdev.conn", ctx.ID),
				))
			defer span.End()
			ctx.Context = spanCtx

			next(ctx)

			status := ctx.Response.Status()
			sent := ctx.Response.BytesSent()
			span.SetAttributes(
				attribute.Int("http.response.status_code", int(status)),
				attribute.Int64("http.response.body.size", ctx.Response.BytesWritten()),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, "server error")
			}

			if metrics != nil {
				metrics.Observe(spanCtx, method, status, sent, time.Since(start))
			}

			logger := ctx.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.InfoContext(spanCtx, "request",
				"method", method,
				"target", target,
				"status", status,
				"bytes", sent,
				"duration", time.Since(start),
			)
		}
	}
}
