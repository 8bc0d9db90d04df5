// Package wifi is the thin network-status wrapper the modem's dial
// state machine consults before attempting a call. The companion
// board's radio and its driver are out of scope for this build (this
// firmware runs against the host's existing network stack instead of
// a Pico WLAN chip), so Connect only records that credentials are
// configured and Status reports what the original's nic.status()
// enum reported, collapsed to the cases this hosted build can still
// observe.
package wifi

import (
	"fmt"
	"net"
	"sync"

	"github.com/felge1966/picox-8-firmware/internal/config"
)

// Status mirrors network.WLAN's status() return values, minus the
// radio-specific cases (wrong password, AP not found) this build has
// no way to observe without a real WiFi driver.
type Status int

const (
	StatusNotConfigured Status = iota
	StatusConnecting
	StatusConnected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotConfigured:
		return "not configured"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "connection failed"
	default:
		return "unknown"
	}
}

// Interface is the network-status surface the modem and the CLI
// depend on, so tests can substitute a fake.
type Interface interface {
	Connect()
	Connected() bool
	Status() string
	Resolve(host string, port int) (string, bool)
}

// Net is the real implementation: Connect marks the stored
// credentials as active, Connected/Status report whether the last
// Connect found credentials, and Resolve runs an ordinary DNS lookup.
type Net struct {
	mu        sync.Mutex
	store     *config.Store
	connected bool
}

// New returns a wifi.Interface backed by store's "wifi" key.
func New(store *config.Store) *Net {
	return &Net{store: store}
}

// Connect loads the configured SSID/passphrase and marks the link
// active. There is no radio to actually join a network with; this
// mirrors the original's nic.connect(ssid, password) call site without
// a WLAN chip behind it.
func (w *Net) Connect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	var creds config.WiFi
	if !w.store.Get("wifi", &creds) {
		fmt.Println("wifi: no \"wifi\" configuration")
		w.connected = false
		return
	}
	w.connected = true
}

// Connected reports whether Connect has run against valid credentials.
func (w *Net) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

func (w *Net) Status() string {
	if !w.Connected() {
		return StatusNotConfigured.String()
	}
	return StatusConnected.String()
}

// Resolve looks host up and returns its first IPv4 address as
// "a.b.c.d:port", or false if DNS resolution fails (or yields no IPv4
// address) the way the original's wifi.resolve() returning None
// signals a failed call.
func (w *Net) Resolve(host string, port int) (string, bool) {
	addrs, err := net.LookupHost(host)
	if err != nil {
		return "", false
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a).To4(); ip != nil {
			return fmt.Sprintf("%s:%d", ip, port), true
		}
	}
	return "", false
}
