// Package telnetsrv is the thin external-facing telnet server: it
// accepts one TCP client at a time and bridges it to the host UART PTY
// master, stripping the same IAC triples the modem's own call-side
// negotiation strips, so a terminal emulator connecting over the
// network sees a clean byte stream from the PX-8 host side.
package telnetsrv

import (
	"log"
	"net"
	"sync"

	"github.com/felge1966/picox-8-firmware/internal/telnetopt"
)

// UART is the subset of hostuart.Port a bridged session needs.
type UART interface {
	Any() bool
	ReadAll() []byte
	Write(p []byte) (int, error)
}

// Server listens for telnet clients and bridges the most recently
// accepted one to uart; accepting a new client closes the previous
// session. Only one session is served at a time, mirroring the single
// PX-8 host link there is to expose.
type Server struct {
	uart UART

	mu   sync.Mutex
	ln   net.Listener
	conn net.Conn
}

// New binds a TCP listener on addr (e.g. ":2323") and returns a Server
// not yet accepting connections until Run is called.
func New(addr string, uart UART) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{uart: uart, ln: ln}, nil
}

// Addr reports the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Run accepts clients forever, serving one at a time; it returns only
// when the listener is closed.
func (s *Server) Run() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.mu.Unlock()

	if err := telnetopt.OfferSGAAndEcho(conn); err != nil {
		log.Printf("telnetsrv: negotiation offer failed: %v", err)
	}

	buf := make([]byte, 512)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			clean := telnetopt.StripAndNegotiate(buf[:n], conn)
			if len(clean) > 0 {
				s.uart.Write(clean)
			}
		}
		if err != nil {
			break
		}
	}

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()
}

// Poll forwards anything the UART has buffered to the currently
// connected client, matching the main loop's telnet_server.poll() call
// (§4.F). A no-op when no client is connected.
func (s *Server) Poll() {
	if !s.uart.Any() {
		return
	}
	data := s.uart.ReadAll()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if _, err := conn.Write(data); err != nil {
		log.Printf("telnetsrv: write to client failed: %v", err)
	}
}

// Close shuts down the listener and any active session.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()
	return s.ln.Close()
}
