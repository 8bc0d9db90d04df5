package modem

import (
	"path/filepath"
	"testing"

	busPkg "github.com/felge1966/picox-8-firmware/internal/bus"
	"github.com/felge1966/picox-8-firmware/internal/config"
	"github.com/felge1966/picox-8-firmware/internal/regs"
	"github.com/felge1966/picox-8-firmware/internal/sdcard"
)

type fakeUART struct {
	pending []byte
	written []byte
	txDone  bool
	baud    int
}

func (u *fakeUART) Any() bool { return len(u.pending) > 0 }
func (u *fakeUART) ReadAll() []byte {
	d := u.pending
	u.pending = nil
	return d
}
func (u *fakeUART) Write(p []byte) (int, error) {
	u.written = append(u.written, p...)
	return len(p), nil
}
func (u *fakeUART) TxDone() bool     { return u.txDone }
func (u *fakeUART) SetBaud(baud int) { u.baud = baud }

type fakeWifi struct{ connected bool }

func (f *fakeWifi) Connect()        {}
func (f *fakeWifi) Connected() bool { return f.connected }
func (f *fakeWifi) Status() string  { return "" }
func (f *fakeWifi) Resolve(host string, port int) (string, bool) {
	return host, true
}

type fakeDialer struct{}

func (fakeDialer) Dial(addr string) (Conn, error) { return nil, errDialNotImplemented }

var errDialNotImplemented = &dialError{}

type dialError struct{}

func (*dialError) Error() string { return "dial not implemented in this test" }

func newTestModem(t *testing.T) (*Modem, *busPkg.Bus, *fakeUART) {
	t.Helper()
	b := busPkg.New()
	t.Cleanup(b.Close)
	u := &fakeUART{}
	store, err := config.Load(filepath.Join(t.TempDir(), "cfg.json"))
	if err != nil {
		t.Fatal(err)
	}
	sd := sdcard.New(t.TempDir())
	m := New(b, u, &fakeWifi{connected: false}, store, sd, fakeDialer{})
	return m, b, u
}

type fakeConn struct {
	written []byte
	recvBuf []byte
	closed  bool
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.written = append(c.written, p...)
	return len(p), nil
}

func (c *fakeConn) Recv(buf []byte) (int, error) {
	if len(c.recvBuf) == 0 {
		return 0, ErrWouldBlock
	}
	n := copy(buf, c.recvBuf)
	c.recvBuf = c.recvBuf[n:]
	return n, nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type successDialer struct{ conn *fakeConn }

func (d successDialer) Dial(addr string) (Conn, error) { return d.conn, nil }

// newConnectedTestModem builds a modem with wifi connected and a
// phonebook entry for "2" that dials straight through to conn.
func newConnectedTestModem(t *testing.T, conn *fakeConn) (*Modem, *busPkg.Bus, *fakeUART) {
	t.Helper()
	b := busPkg.New()
	t.Cleanup(b.Close)
	u := &fakeUART{}
	store, err := config.Load(filepath.Join(t.TempDir(), "cfg.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set("phonebook", map[string]config.PhonebookEntry{
		"2": {Host: "echo.example", Port: 80},
	}); err != nil {
		t.Fatal(err)
	}
	sd := sdcard.New(t.TempDir())
	m := New(b, u, &fakeWifi{connected: true}, store, sd, successDialer{conn: conn})
	return m, b, u
}

// runTicks advances the modem by n 10ms ticks.
func runTicks(m *Modem, n int) {
	for i := 0; i < n; i++ {
		m.Poll(true)
	}
}

// Scenario 1 (spec §8): MODEM_CONTROL 0x01 sets tone gen 1 to 425 Hz
// and moves IDLE -> OFF_HOOK.
func TestScenario1_OffHook(t *testing.T) {
	m, b, _ := newTestModem(t)
	b.HostWrite(1 /* ModemControl */, regs.ControlOHC)
	m.HandleControl()

	if m.State() != StateOffHook {
		t.Fatalf("state = %v, want OFF_HOOK", m.State())
	}
	if m.Gen1FreqHz() != 425 {
		t.Fatalf("gen1 freq = %v, want 425", m.Gen1FreqHz())
	}
}

// Scenario 2 (spec §8): after off-hook, a DTMF digit followed by 100
// ticks with no phonebook match ends in CALL_FAILED with the
// INVALID_NUMBER tone running.
func TestScenario2_DialingTimesOutToCallFailed(t *testing.T) {
	m, b, _ := newTestModem(t)
	m.wifi.(*fakeWifi).connected = true // so the empty phonebook is what fails the call
	b.HostWrite(1, regs.ControlOHC)
	m.HandleControl()

	dialDigit(t, m, b, 2) // '2'
	if m.State() != StateDialing {
		t.Fatalf("state = %v, want DIALING", m.State())
	}

	for i := 0; i < ticksPerSecond; i++ {
		m.Poll(true)
	}
	if m.State() != StateCallFailed {
		t.Fatalf("state = %v, want CALL_FAILED", m.State())
	}
}

// Scenario 3 (spec §8): dialing "***" asserts carrier-detect (status
// byte's CD bit cleared) and enters ENTER_COMMAND_MODE.
func TestScenario3_StarStarStarEntersCommandMode(t *testing.T) {
	m, b, _ := newTestModem(t)
	b.HostWrite(1, regs.ControlOHC)
	m.HandleControl()

	dialDigit(t, m, b, 12) // '*', OFF_HOOK -> DIALING, buffer "*"
	dialDigit(t, m, b, 12) // buffer "**"
	dialDigit(t, m, b, 12) // buffer "***"

	if m.State() != StateEnterCommandMode {
		t.Fatalf("state = %v, want ENTER_COMMAND_MODE", m.State())
	}
	status := b.HostRead(2 /* ModemStatus */)
	if status&regs.StatusCD != 0 {
		t.Fatalf("MODEM_STATUS = %#x, want CD bit cleared", status)
	}
}

// Scenario 6 / invariant 6 (spec §8): once CONNECTED, a socket read
// containing an IAC triple has the triple stripped before the
// remaining bytes reach the UART.
func TestScenario6_ConnectedStripsTelnetOptionsBeforeUART(t *testing.T) {
	conn := &fakeConn{}
	m, b, u := newConnectedTestModem(t, conn)

	b.HostWrite(1, regs.ControlOHC)
	m.HandleControl()
	dialDigit(t, m, b, 2) // '2', OFF_HOOK -> DIALING, buffer "2"

	runTicks(m, ticksPerSecond) // DIALING inter-digit timeout -> attemptCall -> RINGING
	if m.State() != StateRinging {
		t.Fatalf("state = %v, want RINGING", m.State())
	}

	ringTicks := 500      // RingTone: (1000 + 4000) ms / 10 ms
	echoTicks := 540      // EchoCancelTone: 12 * (430 + 20) ms / 10 ms
	handshakeTicks := 300 // HandshakeOriginate: 3000 ms / 10 ms
	runTicks(m, ringTicks)
	if m.State() != StateEchoCancel {
		t.Fatalf("state = %v, want ECHO_CANCEL", m.State())
	}
	runTicks(m, echoTicks)
	if m.State() != StateHandshake {
		t.Fatalf("state = %v, want HANDSHAKE", m.State())
	}
	runTicks(m, handshakeTicks)
	if m.State() != StateConnected {
		t.Fatalf("state = %v, want CONNECTED", m.State())
	}

	conn.recvBuf = []byte{'h', 'i', 255 /* IAC */, 253 /* DO */, 3 /* SGA */, '!'}
	m.Poll(true)

	if string(u.written) != "hi!" {
		t.Fatalf("UART got %q, want %q", u.written, "hi!")
	}
}

// dialDigit drives one TONE_DIALER byte presenting digitBits (0x10 |
// bits), then clears it, mirroring a DTMF key press and release.
func dialDigit(t *testing.T, m *Modem, b *busPkg.Bus, digitBits byte) {
	t.Helper()
	b.HostWrite(0 /* ToneDialer */, 0x10|digitBits)
	m.HandleToneDialer()
	b.HostWrite(0, 0)
	m.HandleToneDialer()
}
