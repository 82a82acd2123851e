package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

var (
	ErrUnknownMethod        = errors.New("http: unknown method")
	ErrEmptyTarget          = errors.New("http: empty request target")
	ErrMalformedStartLine   = errors.New("http: malformed start line")
	ErrMalformedVersion     = errors.New("http: malformed version")
	ErrMalformedHeaderName  = errors.New("http: malformed header name")
	ErrMalformedHeaderValue = errors.New("http: malformed header value")
	ErrTooManyHeaders       = errors.New("http: too many headers")
	ErrHeadersTruncated     = errors.New("http: headers not terminated within received bytes")
	ErrBodyTruncated        = errors.New("http: body continues past received bytes")
	ErrStaleSpan            = errors.New("http: span refers to a reused receive buffer")
	ErrEmptyRead            = errors.New("http: connection sent no bytes")
)

// ParseError reports where in the received bytes parsing stopped.
type ParseError struct {
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Err, e.Offset)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseError(offset int, err error) error {
	return &ParseError{Offset: offset, Err: err}
}

// RequestBuffer is the receive buffer of one connection. Every Fill or Reset
// starts a new generation, which invalidates spans handed out before it.
type RequestBuffer struct {
	data       []byte
	n          int
	generation uint64
}

func NewRequestBuffer(size int) *RequestBuffer {
	if size <= 0 {
		size = DefaultReadBufferSize
	}
	return &RequestBuffer{data: make([]byte, size)}
}

// Fill performs exactly one read from r. A request that does not fit into that
// single read is not reassembled.
func (b *RequestBuffer) Fill(r io.Reader) (int, error) {
	b.Reset()

	n, err := r.Read(b.data)
	if n > 0 {
		b.n = n
		return n, nil
	}
	if err == nil || err == io.EOF {
		return 0, ErrEmptyRead
	}
	return 0, err
}

func (b *RequestBuffer) Reset() {
	b.generation++
	b.n = 0
}

func (b *RequestBuffer) Received() []byte {
	return b.data[:b.n]
}

func (b *RequestBuffer) Generation() uint64 {
	return b.generation
}

func (b *RequestBuffer) Cap() int {
	return len(b.data)
}

type Span struct {
	Start int
	End   int
}

func (s Span) Len() int {
	return s.End - s.Start
}

type Header struct {
	Name  Span
	Value Span
}

type Request struct {
	Method     Method
	ProtoMinor byte

	buf        *RequestBuffer
	generation uint64

	target      Span
	headers     [MaxRequestHeaders]Header
	headerCount int
	body        Span
}

// Bytes returns the bytes a span refers to. It fails once the receive buffer
// the request was parsed from has been refilled.
func (req *Request) Bytes(s Span) ([]byte, error) {
	if req.buf == nil || req.buf.generation != req.generation {
		return nil, ErrStaleSpan
	}
	if s.Start < 0 || s.Start > s.End || s.End > req.buf.n {
		return nil, ErrStaleSpan
	}
	return req.buf.data[s.Start:s.End], nil
}

func (req *Request) Target() ([]byte, error) {
	return req.Bytes(req.target)
}

func (req *Request) Body() ([]byte, error) {
	return req.Bytes(req.body)
}

// Headers returns the header spans in arrival order.
func (req *Request) Headers() []Header {
	return req.headers[:req.headerCount]
}

// HeaderValue returns the value of the first header whose name matches
// case-insensitively.
func (req *Request) HeaderValue(name string) ([]byte, bool) {
	for _, h := range req.Headers() {
		n, err := req.Bytes(h.Name)
		if err != nil {
			return nil, false
		}
		if !bytes.EqualFold(n, []byte(name)) {
			continue
		}
		v, err := req.Bytes(h.Value)
		if err != nil {
			return nil, false
		}
		return v, true
	}
	return nil, false
}

func (req *Request) Reset() {
	req.Method = MethodUnknown
	req.ProtoMinor = 0
	req.buf = nil
	req.generation = 0
	req.target = Span{}
	req.headerCount = 0
	req.body = Span{}
}

func matchMethod(data []byte) (Method, int) {
	for m := MethodGet; m <= MethodPatch; m++ {
		name := m.String()
		if len(name) > len(data) {
			continue
		}
		if string(data[:len(name)]) == name {
			return m, len(name)
		}
	}
	return MethodUnknown, 0
}

// Parse parses the bytes currently held by buf. The request keeps spans into
// buf rather than copies.
func (req *Request) Parse(buf *RequestBuffer) error {
	req.Reset()
	req.buf = buf
	req.generation = buf.generation

	data := buf.Received()
	n := len(data)

	// Start line
	method, i := matchMethod(data)
	if method == MethodUnknown {
		return parseError(0, ErrUnknownMethod)
	}
	if i >= n || data[i] != ' ' {
		return parseError(i, ErrUnknownMethod)
	}
	req.Method = method
	i++

	start := i
	for i < n && data[i] != ' ' {
		if data[i] == '\r' || data[i] == '\n' {
			return parseError(i, ErrMalformedStartLine)
		}
		i++
	}
	if i >= n {
		return parseError(i, ErrMalformedStartLine)
	}
	if i == start {
		return parseError(i, ErrEmptyTarget)
	}
	req.target = Span{Start: start, End: i}
	i++

	if !hasPrefixAt(data, i, protocolPrefix) {
		return parseError(i, ErrMalformedVersion)
	}
	i += len(protocolPrefix)
	if i >= n || (data[i] != '1' && data[i] != '0') {
		return parseError(i, ErrMalformedVersion)
	}
	req.ProtoMinor = data[i] - '0'
	i++

	if !hasPrefixAt(data, i, crlf) {
		return parseError(i, ErrMalformedStartLine)
	}
	i += len(crlf)

	// Headers
	for {
		if i >= n {
			return parseError(i, ErrHeadersTruncated)
		}
		if data[i] == '\r' {
			if i+1 >= n {
				return parseError(i, ErrHeadersTruncated)
			}
			if data[i+1] != '\n' {
				return parseError(i, ErrMalformedHeaderName)
			}
			i += 2
			break
		}
		if req.headerCount == MaxRequestHeaders {
			return parseError(i, ErrTooManyHeaders)
		}

		nameStart := i
		nameEnd := -1
		for nameEnd < 0 {
			if i >= n {
				return parseError(i, ErrHeadersTruncated)
			}
			switch data[i] {
			case ':':
				nameEnd = i
			case ' ':
				if i+1 >= n {
					return parseError(i, ErrHeadersTruncated)
				}
				if data[i+1] != ':' {
					return parseError(i, ErrMalformedHeaderName)
				}
				nameEnd = i
				i++
			case '\r', '\n':
				return parseError(i, ErrMalformedHeaderName)
			default:
				i++
			}
		}
		if nameEnd == nameStart {
			return parseError(i, ErrMalformedHeaderName)
		}
		i++ // ':'

		if i >= n {
			return parseError(i, ErrHeadersTruncated)
		}
		if data[i] != ' ' {
			return parseError(i, ErrMalformedHeaderValue)
		}
		i++

		valueStart := i
		for i < n && data[i] != '\r' {
			if data[i] == '\n' {
				return parseError(i, ErrMalformedHeaderValue)
			}
			i++
		}
		if i+1 >= n {
			return parseError(i, ErrHeadersTruncated)
		}
		if data[i+1] != '\n' {
			return parseError(i, ErrMalformedHeaderValue)
		}

		req.headers[req.headerCount] = Header{
			Name:  Span{Start: nameStart, End: nameEnd},
			Value: Span{Start: valueStart, End: i},
		}
		req.headerCount++
		i += 2
	}

	// Body is whatever arrived after the headers
	req.body = Span{Start: i, End: n}

	if v, ok := req.HeaderValue(HeaderContentLength); ok {
		if length, err := atoi(v); err == nil && length > req.body.Len() {
			return parseError(n, ErrBodyTruncated)
		}
	}

	return nil
}
