package tone

// Sequence is a flat (frequency Hz, duration ms) pair list played back
// by a Player: a frequency of 0 means silence for that step. Repeat
// makes the sequence wrap back to its first pair forever instead of
// finishing after one pass.
type Sequence struct {
	Steps  []Step
	Repeat bool
}

// Step is one (frequency, duration) pair of a Sequence.
type Step struct {
	FreqHz     float64
	DurationMs int
}

func seq(repeat bool, pairs ...float64) Sequence {
	steps := make([]Step, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		steps = append(steps, Step{FreqHz: pairs[i], DurationMs: int(pairs[i+1])})
	}
	return Sequence{Steps: steps, Repeat: repeat}
}

// ConnectDelayMs is the time to hold carrier before opening the data
// channel, shared by both handshake tones.
const ConnectDelayMs = 3000

// Call-progress tone tables (§3), each a CallProgressTone equivalent.
var (
	InvalidNumberTone  = seq(true, 950, 330, 1450, 330, 1880, 330, 0, 1000)
	NoNetworkTone      = seq(true, 425, 240, 0, 240)
	BusyTone           = seq(true, 425, 480, 0, 430)
	RingTone           = seq(false, 425, 1000, 0, 4000)
	HandshakeAnswer    = seq(false, 1650, ConnectDelayMs)
	HandshakeOriginate = seq(false, 980, ConnectDelayMs)
	CommandModeTone    = seq(false, 425, 240, 0, 240, 425, 240, 0, 3000)
)

func echoCancelTone() Sequence {
	var steps []Step
	for i := 0; i < 6; i++ {
		steps = append(steps, Step{FreqHz: 2100, DurationMs: 430}, Step{FreqHz: 20, DurationMs: 20})
	}
	for i := 0; i < 6; i++ {
		steps = append(steps, Step{FreqHz: 2225, DurationMs: 430}, Step{FreqHz: 20, DurationMs: 20})
	}
	return Sequence{Steps: steps}
}

// EchoCancelTone is the alternating 2100/2225 Hz echo-canceller
// disable tone (six cycles of each), §4.D's ECHO_CANCEL state.
var EchoCancelTone = echoCancelTone()
