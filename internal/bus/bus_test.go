package bus

import "testing"

func TestWriteReadRoundTrip(t *testing.T) {
	b := New()
	defer b.Close()

	b.HostWrite(regToneDialer, 0x15)
	got := b.ReadReg(regToneDialer)
	if got != 0x15 {
		t.Fatalf("ReadReg(ToneDialer) = %#x, want 0x15", got)
	}
}

func TestReadClearsOwnIRQBit(t *testing.T) {
	b := New()
	defer b.Close()

	b.HostWrite(regModemControl, 0x01)
	if irq := b.ReadReg(regIRQ); irq&irqModemControl == 0 {
		t.Fatalf("IRQ register = %#x, want IRQModemControl bit set", irq)
	}
	b.ReadReg(regModemControl)
	if irq := b.ReadReg(regIRQ); irq&irqModemControl != 0 {
		t.Fatalf("IRQ register = %#x, want IRQModemControl bit cleared after read", irq)
	}
}

func TestWriteReg_SetsIBFUntilHostConsumes(t *testing.T) {
	b := New()
	defer b.Close()

	b.WriteReg(regRamdiskData, 0x42)
	if irq := b.ReadReg(regIRQ); irq&irqRamdiskIBF == 0 {
		t.Fatalf("IRQ register = %#x, want IRQRamdiskIBF set after WriteReg", irq)
	}
	if got := b.HostConsumeIBF(); got != 0x42 {
		t.Fatalf("HostConsumeIBF() = %#x, want 0x42", got)
	}
	if irq := b.ReadReg(regIRQ); irq&irqRamdiskIBF != 0 {
		t.Fatalf("IRQ register = %#x, want IRQRamdiskIBF cleared after host consumes", irq)
	}
}

func TestHostWriteRamdiskData_SetsOBF(t *testing.T) {
	b := New()
	defer b.Close()

	b.HostWrite(regRamdiskData, 0x07)
	if irq := b.ReadReg(regIRQ); irq&irqRamdiskOBF == 0 {
		t.Fatalf("IRQ register = %#x, want IRQRamdiskOBF set", irq)
	}
	if got := b.ReadReg(regRamdiskData); got != 0x07 {
		t.Fatalf("ReadReg(RamdiskData) = %#x, want 0x07", got)
	}
	if irq := b.ReadReg(regIRQ); irq&irqRamdiskOBF != 0 {
		t.Fatalf("IRQ register = %#x, want IRQRamdiskOBF cleared after firmware reads the byte", irq)
	}
}

func TestReadWriteReg_InvalidAddrPanics(t *testing.T) {
	b := New()
	defer b.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range register address")
		}
	}()
	b.ReadReg(8)
}

func TestEncode(t *testing.T) {
	word := encode(regModemStatus, 0xAB, false)
	if word&readMask != 0 {
		t.Fatal("write command word must not set the read flag")
	}
	if word&writeMask != writeMask {
		t.Fatalf("encode() = %#x, missing writeMask bits", word)
	}
	if byte(word) != 0xAB {
		t.Fatalf("encode() data byte = %#x, want 0xAB", byte(word))
	}

	read := encode(regModemStatus, 0, true)
	if read&readMask == 0 {
		t.Fatal("read command word must set the read flag")
	}
}
