//go:build windows

package socketserver

import (
	"errors"
	"syscall"
)

// wsaeaddrinuse is WSAEADDRINUSE from winsock.
const wsaeaddrinuse = syscall.Errno(10048)

func isAddrInUse(err error) bool {
	return errors.Is(err, wsaeaddrinuse) || errors.Is(err, syscall.EADDRINUSE)
}
