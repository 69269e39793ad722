package transport

import (
	"net"
	"time"
)

// Conn is a datagram connection to one simulator host.
// Implemented by UDPConn; tests substitute in-memory fakes.
type Conn interface {
	// Send transmits one datagram.
	Send(data []byte) error

	// Receive blocks until a datagram arrives or the timeout elapses.
	// A zero timeout blocks indefinitely. The returned slice is owned by
	// the caller. Timeout expiry returns an error satisfying
	// net.Error.Timeout().
	Receive(timeout time.Duration) ([]byte, error)

	// LocalAddr returns the local socket address.
	LocalAddr() net.Addr

	// RemoteAddr returns the simulator host address.
	RemoteAddr() net.Addr

	// Close closes the socket. Blocked Receive calls return an error.
	Close() error
}

// Compile-time interface satisfaction check.
var _ Conn = (*UDPConn)(nil)
