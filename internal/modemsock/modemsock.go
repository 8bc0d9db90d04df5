// Package modemsock is the non-blocking TCP socket layer behind an
// outbound call: a raw socket.connect() attempt (blocking, the way the
// original firmware calls it before flipping to non-blocking mode),
// then non-blocking reads/writes translated to the modem package's
// ErrWouldBlock sentinel, the same EAGAIN-to-(nil,nil) idiom the
// device layer uses for its network interface.
package modemsock

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/felge1966/picox-8-firmware/internal/modem"
)

// TCPDialer implements modem.Dialer over raw unix sockets.
type TCPDialer struct{}

// Dial performs a blocking TCP connect to addr ("host:port" already
// resolved to a dotted address by the caller) and returns a Conn
// switched to non-blocking mode, or an error standing in for ECONNREFUSED.
func (TCPDialer) Dial(addr string) (modem.Conn, error) {
	ip, port, err := splitHostPort(addr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("modemsock: socket: %w", err)
	}
	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip)

	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("modemsock: connect: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("modemsock: set nonblocking: %w", err)
	}
	return &Conn{fd: fd}, nil
}

// Conn is one non-blocking TCP call socket.
type Conn struct {
	fd int
}

// Write sends data, tolerating a short write the way the original's
// best-effort socket.write() does not distinguish partial sends.
func (c *Conn) Write(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if err != nil {
		return 0, fmt.Errorf("modemsock: write: %w", err)
	}
	return n, nil
}

// Recv reads up to len(buf) bytes, translating EAGAIN/EWOULDBLOCK into
// modem.ErrWouldBlock the way TapDevice.ReadPacket returns (nil, nil)
// instead of propagating a transient error.
func (c *Conn) Recv(buf []byte) (int, error) {
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, modem.ErrWouldBlock
		}
		return 0, fmt.Errorf("modemsock: read: %w", err)
	}
	return n, nil
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return unix.Close(c.fd)
}

func splitHostPort(addr string) ([4]byte, int, error) {
	var ip [4]byte
	var a, b, c, d, port int
	n, err := fmt.Sscanf(addr, "%d.%d.%d.%d:%d", &a, &b, &c, &d, &port)
	if err != nil || n != 5 {
		return ip, 0, fmt.Errorf("modemsock: address %q is not a dotted IPv4 host:port", addr)
	}
	ip = [4]byte{byte(a), byte(b), byte(c), byte(d)}
	return ip, port, nil
}
