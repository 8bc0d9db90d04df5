// Package ramdisk implements the byte-oriented RAM-disk command/data
// state machine (§4.E): command dispatch, variable-length payload
// collection, and block/byte granularity reads and writes against an
// image file standing in for the SD card's image.
package ramdisk

import (
	"io"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/felge1966/picox-8-firmware/internal/bus"
	"github.com/felge1966/picox-8-firmware/internal/regs"
)

// FlushIntervalMs bounds how long the pending-writes flag may stay
// set before a flush cadence clears it (§4.E).
const FlushIntervalMs = 15000

// FlushEveryIterations is the main loop's flush-check cadence.
const FlushEveryIterations = 1000

// Failsafe reports the write-protect pin's state: true means pulled
// low, forcing the image read-only.
type Failsafe interface {
	Asserted() bool
}

// RAMDisk is one image-file-backed RAM-disk instance.
type RAMDisk struct {
	bus      *bus.Bus
	failsafe Failsafe

	path     string
	file     *os.File
	readOnly bool

	command       byte
	haveCommand   bool
	recvBuf       [131]byte
	recvLen       int
	readCount     int
	pendingWrites bool
	lastFlush     time.Time
	cksum         byte

	Debug bool
}

// New creates a RAM-disk bound to path (opened read-write immediately)
// and the given failsafe switch.
func New(b *bus.Bus, failsafe Failsafe, path string) *RAMDisk {
	r := &RAMDisk{bus: b, failsafe: failsafe, lastFlush: time.Now()}
	r.reopenFile(path)
	return r
}

// reopenFile samples the failsafe switch and (re)opens the image,
// forcing read-only mode when the switch is asserted. On any error the
// previously opened file, if any, is left serving unchanged (§4.E).
func (r *RAMDisk) reopenFile(path string) {
	readOnly := r.failsafe != nil && r.failsafe.Asserted()
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		log.Printf("ramdisk: error opening image %s: %v", path, err)
		return
	}
	if r.file != nil {
		r.file.Close()
	}
	r.file = f
	r.path = path
	r.readOnly = readOnly
}

// SetImagePath switches the mounted image, reopening it immediately
// the way the CLI's "set ramdisk" command takes effect on next RESET
// in the original, but here takes effect right away since there is no
// separate config-reload step modeled.
func (r *RAMDisk) SetImagePath(path string) {
	r.reopenFile(path)
}

// HandleCommand is invoked on IRQ_RAMDISK_COMMAND: it reads
// RAMDISK_CONTROL and dispatches on the command byte.
func (r *RAMDisk) HandleCommand() {
	cmd := r.bus.ReadReg(regs.RamdiskControl)
	r.recvLen = 0
	r.readCount = 0

	payload, known := regs.CmdPayloadLen[cmd]
	if !known {
		log.Printf("ramdisk: unknown command %#x", cmd)
		r.haveCommand = false
		return
	}
	if r.Debug {
		log.Printf("ramdisk: command %s", regs.CmdName(cmd))
	}
	r.command = cmd
	r.haveCommand = true
	r.readCount = payload

	switch cmd {
	case regs.CmdReset:
		status := byte(1)
		if r.readOnly {
			status |= 2
		}
		r.bus.WriteReg(regs.RamdiskData, status)
		r.reopenFile(r.path)
		r.haveCommand = false
	case regs.CmdCksum:
		r.reopenFile(r.path)
		r.bus.WriteReg(regs.RamdiskData, r.cksum)
		r.haveCommand = false
	}
}

// HandleData is invoked on IRQ_RAMDISK_OBF, once per byte the host
// delivers: it reads one RAMDISK_DATA byte, appends it to the receive
// buffer, and executes the command once the expected payload has
// fully arrived.
func (r *RAMDisk) HandleData() {
	if !r.haveCommand {
		r.bus.ReadReg(regs.RamdiskData)
		return
	}
	b := r.bus.ReadReg(regs.RamdiskData)
	if r.recvLen < len(r.recvBuf) {
		r.recvBuf[r.recvLen] = b
		r.recvLen++
	}
	r.readCount--
	if r.readCount <= 0 {
		r.execute()
		r.haveCommand = false
	}
}

func (r *RAMDisk) execute() {
	switch r.command {
	case regs.CmdRead:
		r.doRead(regs.SectorOffset(r.recvBuf[0], r.recvBuf[1]), regs.SectorSizeBytes)
	case regs.CmdReadB:
		r.doRead(regs.ByteOffset(r.recvBuf[0], r.recvBuf[1], r.recvBuf[2]), 1)
	case regs.CmdWrite:
		r.doWrite(regs.SectorOffset(r.recvBuf[0], r.recvBuf[1]), r.recvBuf[2:2+regs.SectorSizeBytes])
	case regs.CmdWriteB:
		r.doWrite(regs.ByteOffset(r.recvBuf[0], r.recvBuf[1], r.recvBuf[2]), r.recvBuf[3:4])
	}
}

func (r *RAMDisk) doRead(offset int64, n int) {
	buf := make([]byte, n)
	status := byte(0)
	if err := r.readAt(offset, buf); err != nil {
		log.Printf("ramdisk: read error at offset %d: %v", offset, err)
		status = 255
	}
	r.bus.WriteReg(regs.RamdiskData, status)
	for _, b := range buf {
		for r.irqBit(regs.IRQRamdiskIBF) {
			runtime.Gosched() // busy-wait for the host to consume the previous byte
		}
		r.bus.WriteReg(regs.RamdiskData, b)
	}
}

func (r *RAMDisk) doWrite(offset int64, data []byte) {
	if r.readOnly {
		r.bus.WriteReg(regs.RamdiskData, 0x04)
		return
	}
	status := byte(0)
	if err := r.writeAt(offset, data); err != nil {
		log.Printf("ramdisk: write error at offset %d: %v", offset, err)
		status = 255
	} else {
		r.pendingWrites = true
	}
	r.bus.WriteReg(regs.RamdiskData, status)
}

func (r *RAMDisk) readAt(offset int64, buf []byte) error {
	if r.file == nil {
		return os.ErrInvalid
	}
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := io.ReadFull(r.file, buf)
	return err
}

func (r *RAMDisk) writeAt(offset int64, buf []byte) error {
	if r.file == nil {
		return os.ErrInvalid
	}
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := r.file.Write(buf)
	return err
}

// irqBit reports whether the given IRQ bit is currently set, without
// consuming it, used for the IBF busy-wait flow control.
func (r *RAMDisk) irqBit(bit byte) bool {
	return r.bus.HostRead(regs.IRQ)&bit != 0
}

// MaybeFlushPendingWrites clears the pending-writes flag on the
// periodic window described in §4.E: the host OS's own write-back is
// implicit, so there is nothing to actively flush beyond acknowledging
// the window elapsed.
func (r *RAMDisk) MaybeFlushPendingWrites() {
	now := time.Now()
	if now.Before(r.lastFlush) || now.Sub(r.lastFlush) > FlushIntervalMs*time.Millisecond {
		r.pendingWrites = false
		r.lastFlush = now
	}
}

// ReadOnly reports whether the mounted image is currently write
// protected.
func (r *RAMDisk) ReadOnly() bool {
	return r.readOnly
}
