// Package tone reproduces the two PIO square-wave tone generators
// (§3/§4.B-C) used for DTMF dialing and call-progress audio, plus the
// player that walks a call-progress tone table.
package tone

import (
	"math"
	"sync"
	"time"
)

// PIOHalfPeriodTicks returns the PIO delay-loop count the original
// program computed for a given frequency, at a 100ns PIO clock: each
// edge toggle busy-waits this many ticks minus the three instructions
// spent reloading the loop counter. It is not used to drive the timer
// in this hosted build (time.Ticker replaces the busy-wait loop) but is
// kept and tested because it is the authoritative formula for what
// frequency a given register value actually produces.
func PIOHalfPeriodTicks(freqHz float64) int {
	return int(math.Round(1/freqHz/100e-9/2)) - 3
}

// Generator simulates one of the PIO's square-wave tone generators. It
// runs a background goroutine ticking at the half-period of the
// configured frequency, started by SetFreq and stopped by Stop; no
// output level is modeled.
// A zero Generator is ready to use.
type Generator struct {
	mu     sync.Mutex
	cancel chan struct{}
	freq   float64
}

// SetFreq starts (or restarts) the square wave at freqHz. A freqHz of
// 0 stops the generator, mirroring the original's "set_freq(sm, 0)"
// idle convention.
func (g *Generator) SetFreq(freqHz float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.freq = freqHz
	if g.cancel != nil {
		close(g.cancel)
		g.cancel = nil
	}
	if freqHz <= 0 {
		return
	}

	halfPeriod := time.Duration(float64(time.Second) / freqHz / 2)
	done := make(chan struct{})
	g.cancel = done
	go func() {
		t := time.NewTicker(halfPeriod)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
			}
		}
	}()
}

// Stop silences the generator.
func (g *Generator) Stop() {
	g.SetFreq(0)
}

// FreqHz returns the frequency the generator was last set to, for
// tests and status reporting.
func (g *Generator) FreqHz() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.freq
}
