package http

import (
	"context"
	"log/slog"
	"net"
)

type RequestCtx struct {
	ID      string
	Conn    net.Conn
	Context context.Context
	Logger  *slog.Logger

	Request  *Request
	Response *Response
}

// TargetString is a copy of the request target, safe to keep after the
// receive buffer is reused.
func (ctx *RequestCtx) TargetString() string {
	target, err := ctx.Request.Target()
	if err != nil {
		return ""
	}
	return string(target)
}
