// Package regs defines the CPLD register map, bitfields and lookup
// tables shared by the bus driver, the modem state machine and the
// RAM-disk state machine.
package regs

// Register addresses (3-bit addressed, §3 of the PicoX-8 bus map).
const (
	ToneDialer     = 0 // R
	ModemControl   = 1 // R
	ModemStatus    = 2 // W
	RamdiskData    = 3 // R/W
	RamdiskControl = 4 // R
	Baudrate       = 5 // R
	MiscControl    = 6 // R
	IRQ            = 7 // R, consolidated bitfield
)

// IRQ register bits.
const (
	IRQToneDialer     = 0x01
	IRQModemControl   = 0x02
	IRQRamdiskCommand = 0x04
	IRQRamdiskOBF     = 0x08
	IRQRamdiskIBF     = 0x10
	IRQBaudrate       = 0x20
	IRQMiscControl    = 0x40
)

// MODEM_CONTROL bitfield.
const (
	ControlOHC  = 0x01
	ControlHSC  = 0x02
	ControlMON  = 0x04
	ControlTXC  = 0x08
	ControlANS  = 0x10
	ControlTEST = 0x20
	ControlPWR  = 0x40
	ControlCCT  = 0x80
)

// controlNames maps each MODEM_CONTROL bit to its mnemonic, in bit order.
var controlNames = []struct {
	mask byte
	name string
}{
	{ControlOHC, "OHC"},
	{ControlHSC, "HSC"},
	{ControlMON, "MON"},
	{ControlTXC, "TXC"},
	{ControlANS, "ANS"},
	{ControlTEST, "TEST"},
	{ControlPWR, "PWR"},
	{ControlCCT, "CCT"},
}

// ControlNames returns the mnemonics of every set bit in a MODEM_CONTROL byte.
func ControlNames(b byte) []string {
	var names []string
	for _, e := range controlNames {
		if b&e.mask != 0 {
			names = append(names, e.name)
		}
	}
	return names
}

// MODEM_STATUS bitfield (active-low signals).
const (
	StatusRNG = 0x01
	StatusCD  = 0x04
)

// MISC_CONTROL bit 5: modem-enable, active-low.
const MiscControlModemDisable = 0x20

// BaudTable maps the upper nibble of the BAUDRATE register (mask 0xF0) to
// a baud rate. Unlisted values are unrecognized and must be logged and
// ignored by the caller.
var BaudTable = map[byte]int{
	0:   110,
	32:  300,
	48:  600,
	64:  1200,
	80:  2400,
	96:  4800,
	112: 9600,
	160: 19200,
}

// DTMF low/high tone frequency tables, indexed by the 2-bit fields of
// the TONE_DIALER byte.
var (
	DTMFLowHz  = [4]int{697, 770, 852, 941}
	DTMFHighHz = [4]int{1209, 1336, 1477, 1633}
)

// DTMFDigit maps the low nibble (bits 0..3) of TONE_DIALER, when bit 4
// is set, to the dialed digit.
var DTMFDigit = map[byte]byte{
	1:  '1',
	2:  '2',
	3:  '3',
	4:  '4',
	5:  '5',
	6:  '6',
	8:  '7',
	9:  '8',
	10: '9',
	12: '*',
	13: '0',
}

// RAM-disk command bytes.
const (
	CmdReset  = 0
	CmdRead   = 1
	CmdReadB  = 2
	CmdWrite  = 3
	CmdWriteB = 4
	CmdCksum  = 5
)

// CmdPayloadLen is the number of trailing payload bytes expected after
// each RAM-disk command byte.
var CmdPayloadLen = map[byte]int{
	CmdReset:  0,
	CmdRead:   2,
	CmdReadB:  3,
	CmdWrite:  130,
	CmdWriteB: 4,
	CmdCksum:  0,
}

// CmdName returns a RAM-disk command's mnemonic, for logging.
func CmdName(cmd byte) string {
	switch cmd {
	case CmdReset:
		return "RESET"
	case CmdRead:
		return "READ"
	case CmdReadB:
		return "READB"
	case CmdWrite:
		return "WRITE"
	case CmdWriteB:
		return "WRITEB"
	case CmdCksum:
		return "CKSUM"
	default:
		return "UNKNOWN_COMMAND"
	}
}

// RAM-disk image geometry.
const (
	ImageSizeBytes  = 120 * 1024
	SectorSizeBytes = 128
)

// SectorOffset computes the block-addressed offset for READ/WRITE from
// the first two payload bytes.
func SectorOffset(b0, b1 byte) int64 {
	return int64(b0)*8192 + int64(b1)*128
}

// ByteOffset computes the byte-addressed offset for READB/WRITEB from
// the first three payload bytes.
func ByteOffset(b0, b1, b2 byte) int64 {
	return int64(b0-1)*60544 + int64(b1)*256 + int64(b2)
}
