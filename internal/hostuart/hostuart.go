// Package hostuart is the host-facing serial port the modem drains
// call data and command-mode input from and writes call data to. On real hardware
// this is a PL011 UART wired straight to the PX-8's own serial lines;
// here it is a PTY master, so both the PX-8 side (the slave end, which
// a terminal emulator or the secondary telnet server can open) and the
// modem's own reads/writes go through an ordinary file descriptor.
package hostuart

import (
	"fmt"
	"os"
	"sync"

	"github.com/daedaluz/goserial"
)

// Port is a PTY-backed stand-in for the machine.UART the original
// firmware talks to.
type Port struct {
	master *serial.Port
	slave  *serial.Port

	mu      sync.Mutex
	baud    int
	pending []byte
}

// Open creates a PTY pair and configures the slave's termios for 8-N-1
// at the given initial baud rate. SlaveName reports the path a
// terminal emulator can open to act as the PX-8 host.
func Open(initialBaud int) (*Port, error) {
	var t serial.Termios
	t.Cflag = serial.CS8 | serial.CREAD | serial.CLOCAL
	t.SetSpeed(cflagForBaud(initialBaud))

	master, slave, err := serial.OpenPTY(&t, nil)
	if err != nil {
		return nil, err
	}
	return &Port{master: master, slave: slave, baud: initialBaud}, nil
}

// SlaveName returns the PTY slave device path, resolved through procfs
// since the library does not track the name it opened.
func (p *Port) SlaveName() string {
	link, err := os.Readlink(fmt.Sprintf("/proc/self/fd/%d", p.slave.Fd()))
	if err != nil {
		return ""
	}
	return link
}

// Any reports whether there is buffered input available without
// blocking. The original's machine.UART.any() is non-blocking by
// construction; this uses a zero read timeout to the same effect.
func (p *Port) Any() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) > 0 {
		return true
	}
	buf := make([]byte, 256)
	n, err := p.master.ReadTimeout(buf, 0)
	if err != nil || n == 0 {
		return false
	}
	p.pending = append(p.pending, buf[:n]...)
	return true
}

// ReadAll drains everything currently buffered.
func (p *Port) ReadAll() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	data := p.pending
	p.pending = nil
	return data
}

// Write sends data to the PX-8 host side of the link.
func (p *Port) Write(data []byte) (int, error) {
	return p.master.Write(data)
}

// TxDone reports whether the output queue has fully drained.
func (p *Port) TxDone() bool {
	return p.master.Drain() == nil
}

// SetBaud reconfigures the slave's termios to the given baud rate,
// matching the original's uart.init(baud, bits=8, parity=None, stop=1)
// call in sync_baud().
func (p *Port) SetBaud(baud int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baud = baud

	t, err := p.slave.GetAttr()
	if err != nil {
		return
	}
	t.SetSpeed(cflagForBaud(baud))
	t.Cflag |= serial.CS8 | serial.CREAD | serial.CLOCAL
	p.slave.SetAttr(serial.TCSANOW, t)
}

// Close tears down both ends of the PTY.
func (p *Port) Close() error {
	p.slave.Close()
	return p.master.Close()
}

func cflagForBaud(baud int) serial.CFlag {
	switch baud {
	case 110:
		return serial.B110
	case 300:
		return serial.B300
	case 600:
		return serial.B600
	case 1200:
		return serial.B1200
	case 2400:
		return serial.B2400
	case 4800:
		return serial.B4800
	case 9600:
		return serial.B9600
	case 19200:
		return serial.B19200
	default:
		return serial.B4800
	}
}
