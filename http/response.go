package http

import (
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"strings"
)

var (
	ErrSocket            = errors.New("http: socket error")
	ErrBufferOverflow    = errors.New("http: send buffer cannot hold write")
	ErrResponseFinalized = errors.New("http: response already finalized")
)

// Response buffers output for one connection in a fixed-size send buffer and
// owns closing the connection.
type Response struct {
	conn net.Conn
	buf  []byte
	n    int

	status      uint16
	started     bool
	headersDone bool
	headOnly    bool
	chunked     bool
	finalized   bool

	bodyBytes int64
	sentBytes int64

	scratch [20]byte
	line    []byte
}

func NewResponse(conn net.Conn, size int) *Response {
	if size <= 0 {
		size = DefaultWriteBufferSize
	}
	return &Response{
		conn: conn,
		buf:  make([]byte, size),
		line: make([]byte, 0, 256),
	}
}

// SetHeadOnly makes the response drop every byte written after the header
// section, as required for HEAD requests.
func (res *Response) SetHeadOnly(headOnly bool) {
	res.headOnly = headOnly
}

func (res *Response) Status() uint16 {
	return res.status
}

// Started reports whether any byte of the response has been produced.
func (res *Response) Started() bool {
	return res.started
}

func (res *Response) Finalized() bool {
	return res.finalized
}

func (res *Response) Chunked() bool {
	return res.chunked
}

// BytesWritten counts body bytes, including chunk framing.
func (res *Response) BytesWritten() int64 {
	return res.bodyBytes
}

// BytesSent counts bytes handed to the socket.
func (res *Response) BytesSent() int64 {
	return res.sentBytes
}

func (res *Response) send(p []byte) error {
	if res.finalized {
		return ErrResponseFinalized
	}
	res.started = true

	for len(p) > 0 {
		if res.n == len(res.buf) {
			if err := res.Flush(); err != nil {
				return err
			}
		}
		c := copy(res.buf[res.n:], p)
		if c == 0 {
			return ErrBufferOverflow
		}
		res.n += c
		p = p[c:]
	}

	return nil
}

func (res *Response) sendString(s string) error {
	for len(s) > 0 {
		if res.finalized {
			return ErrResponseFinalized
		}
		res.started = true
		if res.n == len(res.buf) {
			if err := res.Flush(); err != nil {
				return err
			}
		}
		c := copy(res.buf[res.n:], s)
		if c == 0 {
			return ErrBufferOverflow
		}
		res.n += c
		s = s[c:]
	}
	return nil
}

func (res *Response) body(p []byte) error {
	res.bodyBytes += int64(len(p))
	if res.headOnly && res.headersDone {
		return nil
	}
	return res.send(p)
}

// Flush hands the buffered bytes to the socket in a single write.
func (res *Response) Flush() error {
	if res.n == 0 {
		return nil
	}

	w, err := res.conn.Write(res.buf[:res.n])
	res.sentBytes += int64(w)
	pending := res.n
	res.n = 0
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSocket, err)
	}
	if w != pending {
		return fmt.Errorf("%w: %w", ErrSocket, io.ErrShortWrite)
	}

	return nil
}

// Finalize flushes, shuts the socket down in both directions and closes it.
// Calls after the first are no-ops.
func (res *Response) Finalize() error {
	if res.finalized {
		return nil
	}

	flushErr := res.Flush()
	res.finalized = true

	var shutdownErr error
	if err := shutdownBoth(res.conn); err != nil {
		shutdownErr = fmt.Errorf("%w: %w", ErrSocket, err)
	}

	var closeErr error
	if err := res.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		closeErr = fmt.Errorf("%w: %w", ErrSocket, err)
	}

	return errors.Join(flushErr, shutdownErr, closeErr)
}

func (res *Response) StatusLine(code uint16) error {
	res.status = code

	n := writeIntToBuffer(int64(code), res.scratch[:])
	if err := res.send(statusPrefix); err != nil {
		return err
	}
	if err := res.send(res.scratch[:n]); err != nil {
		return err
	}
	return res.send(crlf)
}

func (res *Response) Header(name, value string) error {
	if err := res.sendString(name); err != nil {
		return err
	}
	if err := res.send(headerSep); err != nil {
		return err
	}
	if err := res.sendString(value); err != nil {
		return err
	}
	return res.send(crlf)
}

func (res *Response) ContentLength(length int64) error {
	n := writeIntToBuffer(length, res.scratch[:])
	if err := res.sendString(HeaderContentLength); err != nil {
		return err
	}
	if err := res.send(headerSep); err != nil {
		return err
	}
	if err := res.send(res.scratch[:n]); err != nil {
		return err
	}
	return res.send(crlf)
}

// EndHeaders terminates the header section with a blank line.
func (res *Response) EndHeaders() error {
	if err := res.send(crlf); err != nil {
		return err
	}
	res.headersDone = true
	return nil
}

// Write appends body bytes. It makes Response usable as an io.Writer once the
// header section is complete.
func (res *Response) Write(p []byte) (int, error) {
	if err := res.body(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Body sends a fixed-length body and finalizes the response.
func (res *Response) Body(body []byte) error {
	if err := res.ContentLength(int64(len(body))); err != nil {
		return err
	}
	if err := res.EndHeaders(); err != nil {
		return err
	}
	if err := res.body(body); err != nil {
		return err
	}
	return res.Finalize()
}

func (res *Response) writeChunk(p []byte) error {
	n := writeHexToBuffer(len(p), res.scratch[:])
	if err := res.body(res.scratch[:n]); err != nil {
		return err
	}
	if err := res.body(crlf); err != nil {
		return err
	}
	if err := res.body(p); err != nil {
		return err
	}
	return res.body(crlf)
}

// ListingBegin starts a chunked HTML response.
func (res *Response) ListingBegin() error {
	if err := res.StatusLine(StatusOK); err != nil {
		return err
	}
	if err := res.Header(HeaderContentType, "text/html"); err != nil {
		return err
	}
	if err := res.Header(HeaderTransferEncoding, "chunked"); err != nil {
		return err
	}
	if err := res.Header(HeaderConnection, "close"); err != nil {
		return err
	}
	if err := res.EndHeaders(); err != nil {
		return err
	}
	res.chunked = true

	return res.writeChunk(listingOpen)
}

// ListingEntry sends one anchor as its own chunk. Absolute paths open in the
// top frame, relative ones in the current frame.
func (res *Response) ListingEntry(path, linkText string) error {
	target := "_self"
	if strings.HasPrefix(path, "/") {
		target = "_top"
	}

	line := append(res.line[:0], `<a style="color:#FFF;text-decoration:underline;display:block;margin-bottom:0.5em" href="`...)
	line = append(line, html.EscapeString(path)...)
	line = append(line, `" target="`...)
	line = append(line, target...)
	line = append(line, `">`...)
	line = append(line, html.EscapeString(linkText)...)
	line = append(line, "</a>\n"...)
	res.line = line

	return res.writeChunk(line)
}

// ListingEnd sends the closing fragment, the last chunk and finalizes. The
// last chunk is followed by the empty trailer section, so the message ends in
// "0\r\n\r\n" as HTTP/1.1 clients expect.
func (res *Response) ListingEnd() error {
	if err := res.writeChunk(listingClose); err != nil {
		return err
	}
	if err := res.body(chunkEndBytes); err != nil {
		return err
	}
	return res.Finalize()
}
