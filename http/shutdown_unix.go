//go:build unix

package http

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// shutdownBoth shuts the socket down for reading and writing with a single
// shutdown(2) call so queued bytes are flushed before close.
func shutdownBoth(conn net.Conn) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return err
	}

	var shutdownErr error
	if err := raw.Control(func(fd uintptr) {
		shutdownErr = unix.Shutdown(int(fd), unix.SHUT_RDWR)
	}); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	}

	// The peer may already have gone away
	if errors.Is(shutdownErr, unix.ENOTCONN) {
		return nil
	}

	return shutdownErr
}
