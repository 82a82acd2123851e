//go:build !unix

package http

import (
	"errors"
	"net"
)

type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

func shutdownBoth(conn net.Conn) error {
	hc, ok := conn.(halfCloser)
	if !ok {
		return nil
	}

	writeErr := hc.CloseWrite()
	readErr := hc.CloseRead()
	if errors.Is(writeErr, net.ErrClosed) {
		writeErr = nil
	}
	if errors.Is(readErr, net.ErrClosed) {
		readErr = nil
	}

	return errors.Join(writeErr, readErr)
}
