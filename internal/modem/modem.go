// Package modem implements the eleven-state call-lifecycle state
// machine (§4.D): DTMF capture, call-progress tone sequencing, WiFi
// resolution, non-blocking TCP connect/read/write, telnet option
// negotiation and UART baud synchronization with the host.
package modem

import (
	"errors"
	"log"

	"github.com/felge1966/picox-8-firmware/internal/bus"
	"github.com/felge1966/picox-8-firmware/internal/cli"
	"github.com/felge1966/picox-8-firmware/internal/config"
	"github.com/felge1966/picox-8-firmware/internal/regs"
	"github.com/felge1966/picox-8-firmware/internal/sdcard"
	"github.com/felge1966/picox-8-firmware/internal/telnetopt"
	"github.com/felge1966/picox-8-firmware/internal/tone"
	"github.com/felge1966/picox-8-firmware/internal/wifi"
)

// ErrWouldBlock is returned by Conn.Recv when no data is currently
// available, the non-blocking equivalent of the original's EAGAIN.
var ErrWouldBlock = errors.New("modem: operation would block")

// UART is the host-facing serial port the modem drains call data and
// command-mode input from and writes call data and command-mode
// responses to.
type UART interface {
	Any() bool
	ReadAll() []byte
	Write(p []byte) (int, error)
	TxDone() bool
	SetBaud(baud int)
}

// Conn is one outbound TCP call, non-blocking after Dial returns.
type Conn interface {
	Write(p []byte) (int, error)
	Recv(buf []byte) (n int, err error)
	Close() error
}

// Dialer opens a Conn. Dial itself is a blocking connection attempt,
// matching the original firmware calling socket.connect() before
// switching the socket to non-blocking mode; a synchronous refusal is
// the BUSY signal.
type Dialer interface {
	Dial(addr string) (Conn, error)
}

// State is one of the eleven modem lifecycle states (§3).
type State int

const (
	StateIdle State = iota
	StateOffHook
	StateDialing
	StateRinging
	StateEchoCancel
	StateHandshake
	StateConnected
	StateEnterCommandMode
	StateCommandMode
	StateCallFailed
	StateDrainUART
)

var stateNames = map[State]string{
	StateIdle:             "IDLE",
	StateOffHook:          "OFF_HOOK",
	StateDialing:          "DIALING",
	StateRinging:          "RINGING",
	StateEchoCancel:       "ECHO_CANCEL",
	StateHandshake:        "HANDSHAKE",
	StateConnected:        "CONNECTED",
	StateEnterCommandMode: "ENTER_COMMAND_MODE",
	StateCommandMode:      "COMMAND_MODE",
	StateCallFailed:       "CALL_FAILED",
	StateDrainUART:        "DRAIN_UART",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

type event int

const (
	eventControlOHC event = iota
	eventControlMON
	eventControlTXC
	eventControlPWR
	eventControlCCT
	eventDTMF
	eventTick
	eventUARTRX
)

// ticksPerSecond is the number of 10ms ticks in the 1 second
// inter-digit timeout that ends DIALING and attempts a call.
const ticksPerSecond = 1000 / tone.TickMS

// Modem is one call-lifecycle state machine instance.
type Modem struct {
	bus    *bus.Bus
	uart   UART
	wifi   wifi.Interface
	store  *config.Store
	sd     *sdcard.Dir
	dialer Dialer

	gen1, gen2 *tone.Generator
	player     *tone.Player
	conn       Conn

	state         State
	answerMode    bool
	controlShadow byte
	dtmfDigit     byte
	numberBuffer  string
	tickCount     int
	baud          int
	status        byte
	cmdProc       *cli.Processor

	Debug bool
}

// New builds a modem bound to its bus and collaborators and resets it
// to IDLE.
func New(b *bus.Bus, uart UART, wifiIf wifi.Interface, store *config.Store, sd *sdcard.Dir, dialer Dialer) *Modem {
	m := &Modem{
		bus:    b,
		uart:   uart,
		wifi:   wifiIf,
		store:  store,
		sd:     sd,
		dialer: dialer,
		gen1:   &tone.Generator{},
		gen2:   &tone.Generator{},
	}
	m.Reset()
	return m
}

// Reset returns the modem to its power-on state: both tone generators
// silent, status bits inactive, baud resynced, any call torn down.
func (m *Modem) Reset() {
	m.status = regs.StatusRNG | regs.StatusCD
	m.bus.WriteReg(regs.ModemStatus, m.status)
	m.gen1.SetFreq(0)
	m.gen2.SetFreq(0)
	m.setState(StateIdle)
	m.answerMode = false
	m.controlShadow = 0
	m.dtmfDigit = 0
	m.numberBuffer = ""
	m.player = nil
	m.cmdProc = nil
	m.syncBaud()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}

func (m *Modem) syncBaud() {
	baudControl := m.bus.ReadReg(regs.Baudrate) & 0xF0
	if baud, ok := regs.BaudTable[baudControl]; ok {
		m.baud = baud
	} else {
		log.Printf("modem: unrecognized UART baud rate register value %#x", baudControl)
	}
	log.Printf("modem: UART baud rate %d", m.baud)
	m.uart.SetBaud(m.baud)
}

// HandleBaudrate reacts to IRQ_BAUDRATE by resynchronizing the UART to
// whatever BAUDRATE now holds.
func (m *Modem) HandleBaudrate() {
	m.syncBaud()
}

func (m *Modem) setState(s State) {
	log.Printf("modem: %s -> %s", m.state, s)
	m.state = s
}

func (m *Modem) callFailed(seq tone.Sequence) {
	m.player = tone.NewPlayer(m.gen1, seq)
	m.setState(StateCallFailed)
}

func (m *Modem) carrierDetected(on bool) {
	if on {
		m.status &^= regs.StatusCD
	} else {
		m.status |= regs.StatusCD
	}
	m.bus.WriteReg(regs.ModemStatus, m.status)
}

// ringing sets or clears the RNG status bit. Preserved from the
// original firmware even though no call path currently drives it;
// it is available to a future incoming-call path.
func (m *Modem) ringing(on bool) {
	if on {
		m.status &^= regs.StatusRNG
	} else {
		m.status |= regs.StatusRNG
	}
	m.bus.WriteReg(regs.ModemStatus, m.status)
}

// HandleControl reads MODEM_CONTROL and emits one edge event per bit
// that changed since the previous read (§4.D).
func (m *Modem) HandleControl() {
	byte_ := m.bus.ReadReg(regs.ModemControl)
	if byte_ == 0 {
		log.Println("modem: reset via MODEM_CONTROL=0")
		m.Reset()
		return
	}
	if m.Debug {
		log.Printf("modem: MODEM_CONTROL %#x %v", byte_, regs.ControlNames(byte_))
	}
	m.answerMode = byte_&regs.ControlANS != 0

	changed := byte_ ^ m.controlShadow
	if changed&regs.ControlOHC != 0 {
		m.handleEvent(eventControlOHC, byte_&regs.ControlOHC != 0, 0, nil)
	}
	if changed&regs.ControlMON != 0 {
		m.handleEvent(eventControlMON, byte_&regs.ControlMON != 0, 0, nil)
	}
	if changed&regs.ControlTXC != 0 {
		m.handleEvent(eventControlTXC, byte_&regs.ControlTXC != 0, 0, nil)
	}
	if changed&regs.ControlPWR != 0 {
		m.handleEvent(eventControlPWR, byte_&regs.ControlPWR != 0, 0, nil)
	}
	if changed&regs.ControlCCT != 0 {
		m.handleEvent(eventControlCCT, byte_&regs.ControlCCT != 0, 0, nil)
	}
	m.controlShadow = byte_
}

// HandleToneDialer reads TONE_DIALER and drives the DTMF tone
// generators, latching the decoded digit (§4.D).
func (m *Modem) HandleToneDialer() {
	byte_ := m.bus.ReadReg(regs.ToneDialer)
	if byte_&0x10 != 0 {
		high := byte_ & 0x03
		low := (byte_ & 0x0c) >> 2
		m.gen1.SetFreq(float64(regs.DTMFLowHz[low]))
		m.gen2.SetFreq(float64(regs.DTMFHighHz[high]))
		m.dtmfDigit = regs.DTMFDigit[byte_&0x0f]
	} else {
		m.gen1.SetFreq(0)
		m.gen2.SetFreq(0)
		m.handleEvent(eventDTMF, false, m.dtmfDigit, nil)
	}
}

// Poll drains pending UART input and issues at most one TICK event,
// the way poll() reads a monotonic clock and never coalesces ticks.
func (m *Modem) Poll(tickDue bool) {
	if m.uart.Any() {
		m.handleEvent(eventUARTRX, false, 0, m.uart.ReadAll())
	}
	if tickDue {
		m.handleEvent(eventTick, false, 0, nil)
	}
}

func (m *Modem) attemptCall() {
	if !m.wifi.Connected() {
		m.callFailed(tone.NoNetworkTone)
		return
	}
	phonebook := map[string]config.PhonebookEntry{}
	m.store.Get("phonebook", &phonebook)
	entry, ok := phonebook[m.numberBuffer]
	if !ok {
		m.callFailed(tone.InvalidNumberTone)
		return
	}
	addr, ok := m.wifi.Resolve(entry.Host, entry.Port)
	if !ok {
		m.callFailed(tone.NoNetworkTone)
		return
	}
	conn, err := m.dialer.Dial(addr)
	if err != nil {
		log.Printf("modem: call failed: %v", err)
		m.callFailed(tone.BusyTone)
		return
	}
	m.conn = conn
	m.player = tone.NewPlayer(m.gen1, tone.RingTone)
	m.setState(StateRinging)
}

func (m *Modem) handleEvent(ev event, ctrlOn bool, dtmf byte, uartData []byte) {
	switch m.state {
	case StateIdle:
		if ev == eventControlOHC && ctrlOn {
			m.gen1.SetFreq(425)
			m.numberBuffer = ""
			m.setState(StateOffHook)
		}
	case StateOffHook:
		if ev == eventDTMF {
			m.numberBuffer += string(rune(dtmf))
			m.tickCount = 0
			m.setState(StateDialing)
		}
	case StateDialing:
		if ev == eventDTMF {
			m.tickCount = 0
			m.numberBuffer += string(rune(dtmf))
			if m.numberBuffer == "***" {
				m.carrierDetected(true)
				m.player = tone.NewPlayer(m.gen1, tone.CommandModeTone)
				m.setState(StateEnterCommandMode)
			}
		}
		if ev == eventTick {
			m.tickCount++
			if m.tickCount == ticksPerSecond {
				m.attemptCall()
			}
		}
	case StateCallFailed:
		if ev == eventTick {
			m.player.Tick()
		}
	case StateRinging:
		if ev == eventTick {
			if !m.player.Tick() {
				return
			}
			m.player = tone.NewPlayer(m.gen1, tone.EchoCancelTone)
			m.setState(StateEchoCancel)
		}
	case StateEchoCancel:
		if ev == eventTick {
			if !m.player.Tick() {
				return
			}
			m.carrierDetected(true)
			seq := tone.HandshakeOriginate
			if m.answerMode {
				seq = tone.HandshakeAnswer
			}
			m.player = tone.NewPlayer(m.gen1, seq)
			m.setState(StateHandshake)
		}
	case StateHandshake:
		if ev == eventTick {
			if !m.player.Tick() {
				return
			}
			m.syncBaud()
			if m.conn != nil {
				m.conn.Write([]byte{telnetopt.IAC, telnetopt.DO, telnetopt.OptSGA, telnetopt.IAC, telnetopt.DO, telnetopt.OptECHO})
			}
			m.setState(StateConnected)
		}
	case StateConnected:
		if ev == eventUARTRX {
			if _, err := m.conn.Write(uartData); err != nil {
				log.Printf("modem: error %v writing to socket, closing connection", err)
				m.conn.Close()
				m.Reset()
			}
		}
		if ev == eventTick {
			buf := make([]byte, 128)
			n, err := m.conn.Recv(buf)
			switch {
			case err != nil && errors.Is(err, ErrWouldBlock):
				// no data available this tick
			case err != nil:
				log.Printf("modem: error %v reading from socket, closing connection", err)
				m.setState(StateDrainUART)
			case n == 0:
				m.setState(StateDrainUART)
			default:
				data := telnetopt.StripAndNegotiate(buf[:n], m.conn)
				m.uart.Write(data)
			}
		}
	case StateEnterCommandMode:
		if ev == eventTick {
			if m.player != nil && m.player.Tick() {
				m.player = nil
				m.syncBaud()
				m.cmdProc = cli.NewProcessor(m.uart, m.store, m.wifi, m.sd)
				m.setState(StateCommandMode)
			}
		}
	case StateCommandMode:
		if ev == eventUARTRX {
			if m.cmdProc.UserInput(uartData) {
				m.setState(StateDrainUART)
			}
		}
	case StateDrainUART:
		if ev == eventTick {
			if m.uart.TxDone() {
				log.Println("modem: UART tx done, resetting modem")
				m.Reset()
			}
		}
	}
}

// State returns the modem's current lifecycle state, for tests and
// status reporting.
func (m *Modem) State() State {
	return m.state
}

// Gen1FreqHz returns tone generator 1's current frequency, for tests.
func (m *Modem) Gen1FreqHz() float64 {
	return m.gen1.FreqHz()
}
