package socketserver

import (
	"errors"
	"fmt"
	"net"
)

// ErrAddrInUse means another process already listens on the address.
var ErrAddrInUse = errors.New("address already in use")

// Listen binds a TCP listener on addr.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if isAddrInUse(err) {
			return nil, fmt.Errorf("%w: %s", ErrAddrInUse, addr)
		}
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}
