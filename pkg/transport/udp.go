package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrConnClosed is returned by Send and Receive after Close.
var ErrConnClosed = errors.New("connection closed")

// maxDatagramSize bounds a single receive. Update replies grow with the
// subscription count, so this is sized for the largest UDP payload rather
// than any one message layout.
const maxDatagramSize = 65536

// UDPConn is a connected UDP socket to a simulator host.
// Send and Receive are each safe for concurrent use.
type UDPConn struct {
	conn *net.UDPConn

	closeOnce sync.Once
	closeCh   chan struct{}

	readMu  sync.Mutex
	readBuf []byte
}

// Dial opens a connected UDP socket to host:port.
func Dial(host string, port int) (*UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("resolve %s:%d: %w", host, port, err)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	return &UDPConn{
		conn:    conn,
		closeCh: make(chan struct{}),
		readBuf: make([]byte, maxDatagramSize),
	}, nil
}

// Send transmits one datagram to the host.
func (c *UDPConn) Send(data []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnClosed
	default:
	}

	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("udp send: %w", err)
	}
	return nil
}

// Receive blocks until a datagram arrives or the timeout elapses.
func (c *UDPConn) Receive(timeout time.Duration) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	select {
	case <-c.closeCh:
		return nil, ErrConnClosed
	default:
	}

	if timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
	} else {
		if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
			return nil, err
		}
	}

	n, err := c.conn.Read(c.readBuf)
	if err != nil {
		return nil, err
	}

	data := make([]byte, n)
	copy(data, c.readBuf[:n])
	return data, nil
}

// LocalAddr returns the local socket address.
func (c *UDPConn) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// RemoteAddr returns the simulator host address.
func (c *UDPConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Close closes the socket. Safe to call multiple times.
func (c *UDPConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}
