package http

const (
	DefaultReadBufferSize  = 2048
	DefaultWriteBufferSize = 2048
	DefaultFileChunkSize   = 2048
	MaxRequestHeaders      = 128

	DefaultAddress = "127.0.0.1"
	DefaultPort    = 8080
)

type Handler func(ctx *RequestCtx)

type Method uint8

const (
	MethodUnknown Method = iota
	MethodGet
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
	MethodConnect
	MethodOptions
	MethodTrace
	MethodPatch
)

var methodNames = [...]string{
	MethodUnknown: "",
	MethodGet:     "GET",
	MethodHead:    "HEAD",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodDelete:  "DELETE",
	MethodConnect: "CONNECT",
	MethodOptions: "OPTIONS",
	MethodTrace:   "TRACE",
	MethodPatch:   "PATCH",
}

func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return ""
}

const (
	HeaderContentLength    = "Content-Length"
	HeaderContentType      = "Content-Type"
	HeaderTransferEncoding = "Transfer-Encoding"
	HeaderConnection       = "Connection"
)

var (
	protocolPrefix = []byte("HTTP/1.")
	statusPrefix   = []byte("HTTP/1.1 ")
	crlf           = []byte("\r\n")
	headerSep      = []byte(": ")
	chunkEndBytes  = []byte("0\r\n\r\n") // last-chunk + empty trailer section

	listingOpen = []byte("<!DOCTYPE html>\n" +
		"<html><body style=\"font-family:sans-serif;\n" +
		"background-color:#000;margin:2em\">\n")
	listingClose = []byte("</body></html>")
)
