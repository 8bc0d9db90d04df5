// Command picox8 is the hosted firmware binary: it wires the bus
// driver, tone generators, modem, RAM-disk, host UART and the
// secondary telnet server together in one explicit dependency-ordered
// construction sequence, then hands everything to the main loop.
package main

import (
	"flag"
	"log"

	"github.com/felge1966/picox-8-firmware/internal/bus"
	"github.com/felge1966/picox-8-firmware/internal/config"
	"github.com/felge1966/picox-8-firmware/internal/hostuart"
	"github.com/felge1966/picox-8-firmware/internal/mainloop"
	"github.com/felge1966/picox-8-firmware/internal/modem"
	"github.com/felge1966/picox-8-firmware/internal/modemsock"
	"github.com/felge1966/picox-8-firmware/internal/ramdisk"
	"github.com/felge1966/picox-8-firmware/internal/sdcard"
	"github.com/felge1966/picox-8-firmware/internal/telnetsrv"
	"github.com/felge1966/picox-8-firmware/internal/wifi"
)

func main() {
	configPath := flag.String("config", config.FileName, "path to the JSON configuration file")
	sdcardRoot := flag.String("sdcard", ".", "directory standing in for the mounted SD card")
	imageName := flag.String("image", "ramdisk.img", "RAM-disk image file name, relative to -sdcard")
	telnetAddr := flag.String("telnet", ":2323", "address the external telnet server listens on")
	initialBaud := flag.Int("baud", 9600, "initial host UART baud rate")
	debug := flag.Bool("debug", false, "log modem and RAM-disk state transitions verbosely")
	flag.Parse()

	store, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("picox8: loading config %s: %v", *configPath, err)
	}

	sd := sdcard.New(*sdcardRoot)
	if !sd.Mounted() {
		log.Fatalf("picox8: sdcard root %s is not mounted", *sdcardRoot)
	}

	wifiIf := wifi.New(store)
	wifiIf.Connect()

	b := bus.New()
	defer b.Close()

	uart, err := hostuart.Open(*initialBaud)
	if err != nil {
		log.Fatalf("picox8: opening host UART: %v", err)
	}
	defer uart.Close()
	log.Printf("picox8: host UART available at %s", uart.SlaveName())

	m := modem.New(b, uart, wifiIf, store, sd, modemsock.TCPDialer{})
	m.Debug = *debug

	rd := ramdisk.New(b, noFailsafe{}, sd.Path(*imageName))
	rd.Debug = *debug

	telnet, err := telnetsrv.New(*telnetAddr, uart)
	if err != nil {
		log.Fatalf("picox8: starting telnet server on %s: %v", *telnetAddr, err)
	}
	defer telnet.Close()
	go telnet.Run()
	log.Printf("picox8: telnet server listening on %s", telnet.Addr())

	loop := mainloop.New(b, m, rd, telnet)
	loop.Run()
}

// noFailsafe stands in for the write-protect GPIO pin on hardware
// this hosted build has no access to; the image is always writable.
type noFailsafe struct{}

func (noFailsafe) Asserted() bool { return false }
