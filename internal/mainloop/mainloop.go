// Package mainloop is the single cooperative scheduler (§4.F): no
// threads, no interrupts handled in-band, just one loop reading the
// consolidated IRQ register and dispatching to the modem and RAM-disk
// state machines in a fixed priority order, plus the housekeeping that
// used to be inline in the original's loop body (the modem-enable
// countdown, the RAM-disk flush cadence, and polling the tick source
// and the external telnet server).
package mainloop

import (
	"time"

	"github.com/felge1966/picox-8-firmware/internal/bus"
	"github.com/felge1966/picox-8-firmware/internal/modem"
	"github.com/felge1966/picox-8-firmware/internal/ramdisk"
	"github.com/felge1966/picox-8-firmware/internal/regs"
)

// disableDelayTicks is how many loop iterations MISC_CONTROL's
// modem-disable bit must stay asserted before modem.Reset() actually
// fires, giving a brief assertion time to be revoked (§4.F).
const disableDelayTicks = 1000

// TelnetServer is the external telnet server's poll hook.
type TelnetServer interface {
	Poll()
}

// Loop owns the scheduling state the original free-running firmware
// loop keeps as locals: modem_enabled, disable_delay, and the
// RAM-disk flush-cadence counter.
type Loop struct {
	bus     *bus.Bus
	modem   *modem.Modem
	ramdisk *ramdisk.RAMDisk
	telnet  TelnetServer

	modemEnabled bool
	disableDelay int
	ramdiskIter  int

	lastTick time.Time

	// stop, when closed, ends Run on its next iteration. Exposed so a
	// caller can shut the firmware down without killing the process.
	stop chan struct{}
}

// New builds a scheduler over the given components. The modem starts
// enabled, mirroring MISC_CONTROL's active-low disable bit reading 0
// at power-on.
func New(b *bus.Bus, m *modem.Modem, rd *ramdisk.RAMDisk, telnet TelnetServer) *Loop {
	return &Loop{
		bus:          b,
		modem:        m,
		ramdisk:      rd,
		telnet:       telnet,
		modemEnabled: true,
		lastTick:     time.Now(),
		stop:         make(chan struct{}),
	}
}

// Stop ends a running Run loop after its current iteration.
func (l *Loop) Stop() {
	close(l.stop)
}

// Run executes the scheduler until Stop is called. It does not sleep
// between iterations beyond what Step itself blocks on; callers that
// want a bounded CPU footprint should rely on Step's own pacing, which
// mirrors the original firmware's otherwise free-running loop only in
// that it never coalesces ticks.
func (l *Loop) Run() {
	for {
		select {
		case <-l.stop:
			return
		default:
			l.Step()
		}
	}
}

// Step runs exactly one iteration of the loop body (§4.F), in the
// fixed priority order the ordering guarantees require: tone-dialer,
// modem-control, baudrate, misc-control, ramdisk-command, ramdisk-data,
// then the tick/UART poll and the external telnet bridge.
func (l *Loop) Step() {
	irq := l.bus.ReadReg(regs.IRQ)

	if l.modemEnabled {
		if irq&regs.IRQToneDialer != 0 {
			l.modem.HandleToneDialer()
		}
		if irq&regs.IRQModemControl != 0 {
			l.modem.HandleControl()
		}
		if irq&regs.IRQBaudrate != 0 {
			l.modem.HandleBaudrate()
		}
	}

	if irq&regs.IRQMiscControl != 0 {
		misc := l.bus.ReadReg(regs.MiscControl)
		newEnabled := misc&regs.MiscControlModemDisable == 0
		if newEnabled != l.modemEnabled {
			l.modemEnabled = newEnabled
			if newEnabled {
				l.disableDelay = 0
			} else {
				l.disableDelay = disableDelayTicks
			}
		}
	}
	if !l.modemEnabled && l.disableDelay > 0 {
		l.disableDelay--
		if l.disableDelay == 0 {
			l.modem.Reset()
		}
	}

	if irq&regs.IRQRamdiskCommand != 0 {
		l.ramdisk.HandleCommand()
	}
	if irq&regs.IRQRamdiskOBF != 0 {
		l.ramdisk.HandleData()
	}

	l.ramdiskIter++
	if l.ramdiskIter == ramdisk.FlushEveryIterations {
		l.ramdiskIter = 0
		l.ramdisk.MaybeFlushPendingWrites()
	}

	tickDue := time.Since(l.lastTick) >= time.Duration(10)*time.Millisecond
	if tickDue {
		l.lastTick = l.lastTick.Add(10 * time.Millisecond)
	}
	l.modem.Poll(tickDue)
	if l.telnet != nil {
		l.telnet.Poll()
	}
}
