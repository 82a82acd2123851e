package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

var (
	ErrServerClosed = errors.New("http: server closed")
	ErrAccept       = errors.New("http: accept failed")
)

type Config struct {
	Address         string
	Port            int
	ReadBufferSize  int
	WriteBufferSize int
	Logger          *slog.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	if cfg.WriteBufferSize <= 0 {
		cfg.WriteBufferSize = DefaultWriteBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Server accepts and serves one connection at a time. A slow peer blocks
// every other client; there are no per-connection deadlines.
type Server struct {
	Name    string
	Config  Config
	Handler Handler

	listener net.Listener
	recvBuf  *RequestBuffer

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// Start binds the listening socket. Port 0 picks a free port.
func Start(cfg Config, handler Handler) (*Server, error) {
	cfg = cfg.withDefaults()
	if cfg.Port < 0 || cfg.Port > 0xFFFF {
		return nil, fmt.Errorf("http: invalid port %d", cfg.Port)
	}
	if handler == nil {
		handler = NotFoundHandler
	}

	addr := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %w", ErrSocket, addr, err)
	}

	return &Server{
		Name:     "httpsrvdev",
		Config:   cfg,
		Handler:  handler,
		listener: listener,
		recvBuf:  NewRequestBuffer(cfg.ReadBufferSize),
	}, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// setConn records the open connection so Close can reach it. A connection
// accepted after Close is closed right away.
func (s *Server) setConn(conn net.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.Config.Logger.Debug("closing connection failed", "error", err)
		}
		return ErrServerClosed
	}
	s.conn = conn
	return nil
}

func (s *Server) dropConn(conn net.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.Config.Logger.Debug("closing connection failed", "error", err)
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// AcceptAndParse blocks until a client connects and parses the one read it
// sends. On a read or parse failure the connection is closed without a reply.
func (s *Server) AcceptAndParse(ctx context.Context) (*RequestCtx, error) {
	conn, err := s.listener.Accept()
	if err != nil {
		if s.isClosed() || errors.Is(err, net.ErrClosed) {
			return nil, ErrServerClosed
		}
		return nil, fmt.Errorf("%w: %w", ErrAccept, err)
	}
	if err := s.setConn(conn); err != nil {
		return nil, err
	}

	if _, err := s.recvBuf.Fill(conn); err != nil {
		s.dropConn(conn)
		return nil, fmt.Errorf("%w: read: %w", ErrSocket, err)
	}

	// A fresh Request per connection keeps spans of earlier requests bound to
	// their own generation.
	req := new(Request)
	if err := req.Parse(s.recvBuf); err != nil {
		s.dropConn(conn)
		return nil, err
	}

	id := uuid.NewString()
	return &RequestCtx{
		ID:       id,
		Conn:     conn,
		Context:  ctx,
		Logger:   s.Config.Logger.With("conn", id),
		Request:  req,
		Response: NewResponse(conn, s.Config.WriteBufferSize),
	}, nil
}

// Serve runs the accept loop until ctx is done or Close is called. Per
// connection failures are logged and never end the loop.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		if err := s.Close(); err != nil {
			s.Config.Logger.Debug("closing server failed", "error", err)
		}
	})
	defer stop()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 5 * time.Millisecond
	retry.MaxInterval = time.Second
	retry.MaxElapsedTime = 0
	retry.Reset()

	for {
		reqCtx, err := s.AcceptAndParse(ctx)
		if err != nil {
			var parseErr *ParseError
			switch {
			case errors.Is(err, ErrServerClosed):
				return nil
			case errors.As(err, &parseErr):
				s.Config.Logger.Debug("dropped malformed request", "error", err)
			case errors.Is(err, ErrAccept):
				delay := retry.NextBackOff()
				s.Config.Logger.Warn("accept failed", "error", err, "retry_in", delay)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil
				}
			default:
				s.Config.Logger.Debug("dropped connection", "error", err)
			}
			continue
		}

		retry.Reset()
		s.serveConn(reqCtx)
	}
}

func (s *Server) serveConn(ctx *RequestCtx) {
	defer func() {
		if err := ctx.Response.Finalize(); err != nil {
			ctx.Logger.Debug("finalizing response failed", "error", err)
		}
		s.mu.Lock()
		if s.conn == ctx.Conn {
			s.conn = nil
		}
		s.mu.Unlock()
	}()

	s.Handler(ctx)
}

// Close tears down the open connection, if any, and the listening socket.
// An in-flight request is not drained.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var connErr error
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			connErr = err
		}
		s.conn = nil
	}

	listenErr := s.listener.Close()
	if errors.Is(listenErr, net.ErrClosed) {
		listenErr = nil
	}

	return errors.Join(connErr, listenErr)
}
