// Package cli implements the configuration command line the modem
// drops into during COMMAND_MODE: an abbreviation-dispatched command
// set with line editing and history, reachable over the simulated
// host UART once "+++***" style command entry (three asterisks dialed
// in DIALING state) requests it.
package cli

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/felge1966/picox-8-firmware/internal/config"
	"github.com/felge1966/picox-8-firmware/internal/regs"
	"github.com/felge1966/picox-8-firmware/internal/sdcard"
	"github.com/felge1966/picox-8-firmware/internal/wifi"
)

const (
	banner  = "\r\nPicoX-8 configuration interface.  Type \"help\" for help\r\n\n"
	prompt  = "picox-8> "
	history = 30
)

var numberRE = regexp.MustCompile(`^\d+$`)

// Processor is one interactive command-mode session: it owns the line
// buffer, history ring and abbreviation tables, and writes everything
// back out over terminal.
type Processor struct {
	terminal io.Writer
	store    *config.Store
	wifi     wifi.Interface
	sd       *sdcard.Dir

	topAbbrevs  map[string]func([]string)
	setAbbrevs  map[string]func([]string)
	showAbbrevs map[string]func([]string)

	lineBuffer     string
	hist           []string
	historyPointer int
	savedInput     string
	done           bool
}

// NewProcessor starts a command-mode session, writing the banner and
// first prompt to terminal immediately.
func NewProcessor(terminal io.Writer, store *config.Store, wi wifi.Interface, sd *sdcard.Dir) *Processor {
	p := &Processor{
		terminal:       terminal,
		store:          store,
		wifi:           wi,
		sd:             sd,
		historyPointer: -1,
	}
	p.setAbbrevs = abbreviate([]command{
		{"wifi", p.cmdSetWifi},
		{"phonebook", p.cmdSetPhonebook},
		{"ramdisk", p.cmdSetRamdisk},
	})
	p.showAbbrevs = abbreviate([]command{
		{"status", p.cmdShowStatus},
		{"phonebook", p.cmdShowPhonebook},
	})
	p.topAbbrevs = abbreviate([]command{
		{"help", p.cmdHelp},
		{"set", p.cmdSet},
		{"show", p.cmdShow},
		{"ls", p.cmdLs},
		{"quit", p.cmdQuit},
	})
	io.WriteString(p.terminal, banner)
	p.resetPrompt()
	return p
}

func (p *Processor) resetPrompt() {
	p.lineBuffer = ""
	io.WriteString(p.terminal, prompt)
}

func (p *Processor) say(s string) {
	io.WriteString(p.terminal, s)
	io.WriteString(p.terminal, "\r\n")
}

// Done reports whether "quit" has been entered.
func (p *Processor) Done() bool {
	return p.done
}

// UserInput feeds received bytes through the line editor one at a
// time and reports whether the session is now done, matching the
// userinput(data) contract the modem's COMMAND_MODE state relies on
// to know when to drain the UART and reset.
func (p *Processor) UserInput(data []byte) bool {
	for _, c := range data {
		p.handleUserChar(c)
	}
	return p.done
}

func (p *Processor) eraseInput() {
	count := len(p.lineBuffer)
	io.WriteString(p.terminal, strings.Repeat("\b", count))
	io.WriteString(p.terminal, strings.Repeat(" ", count))
	io.WriteString(p.terminal, strings.Repeat("\b", count))
	p.lineBuffer = ""
}

func (p *Processor) handleUserChar(c byte) {
	switch {
	case c >= 32 && c < 127:
		io.WriteString(p.terminal, string(rune(c)))
		p.lineBuffer += string(rune(c))
	case c == '\b' || c == 0x7f:
		if p.lineBuffer != "" {
			io.WriteString(p.terminal, "\b \b")
			p.lineBuffer = p.lineBuffer[:len(p.lineBuffer)-1]
		}
	case c == 0x15: // Ctrl-U
		p.eraseInput()
	case c == 0x10: // Ctrl-P, previous history entry
		if len(p.hist) > p.historyPointer+1 {
			if p.historyPointer == -1 {
				p.savedInput = p.lineBuffer
			}
			p.historyPointer++
			p.eraseInput()
			p.lineBuffer = p.hist[p.historyPointer]
			io.WriteString(p.terminal, p.lineBuffer)
		} else {
			io.WriteString(p.terminal, "\x07")
		}
	case c == 0x0e: // Ctrl-N, next history entry
		if p.historyPointer >= 0 {
			p.historyPointer--
			p.eraseInput()
			if p.historyPointer == -1 {
				p.lineBuffer = p.savedInput
			} else {
				p.lineBuffer = p.hist[p.historyPointer]
			}
			io.WriteString(p.terminal, p.lineBuffer)
		}
	case c == 0x0d: // CR
		io.WriteString(p.terminal, "\r\n")
		input := strings.TrimSpace(p.lineBuffer)
		if input != "" {
			if len(p.hist) == 0 || input != p.hist[0] {
				p.hist = append([]string{input}, p.hist...)
				if len(p.hist) > history {
					p.hist = p.hist[:history]
				}
			}
			p.historyPointer = -1
			fields := strings.Fields(input)
			p.execute(fields[0], fields[1:])
		}
		if !p.done {
			p.resetPrompt()
		}
	}
}

func (p *Processor) execute(cmd string, args []string) {
	if handler, ok := p.topAbbrevs[cmd]; ok {
		handler(args)
		return
	}
	p.say(fmt.Sprintf("Unknown command %q, try \"help\"", cmd))
}

func (p *Processor) cmdHelp(args []string) {
	p.say(`PicoX-8 configuration command help
show status                            Show system status

set wifi <ssid> <password>             Set WiFi SSID and password
set phonebook <number> <host>[:<port>] Set phonebook entry
show phonebook                         Show phonebook

ls                                     List files on SD-Card
set ramdisk <filename>                 Set RAM-Disk file

quit                                   Exit configuration`)
}

func (p *Processor) cmdShowStatus(args []string) {
	p.say(fmt.Sprintf("WiFi status: %s", p.wifi.Status()))
	mounted := "not mounted"
	if p.sd.Mounted() {
		mounted = "mounted"
	}
	p.say(fmt.Sprintf("SD-Card    : %s", mounted))
}

func (p *Processor) cmdSetWifi(args []string) {
	if len(args) != 2 {
		p.say(`Incorrect arguments to "set wifi", need SSID and key`)
		return
	}
	p.store.Set("wifi", config.WiFi{SSID: args[0], Passphrase: args[1]})
	p.wifi.Connect()
}

func (p *Processor) cmdSetPhonebook(args []string) {
	if len(args) != 2 {
		p.say(`Incorrect arguments to "set phonebook", try "help"`)
		return
	}
	number, hostPort := args[0], args[1]
	if !numberRE.MatchString(number) {
		p.say("Number must be numeric")
		return
	}
	host, portStr := hostPort, "23"
	if idx := strings.IndexByte(hostPort, ':'); idx >= 0 {
		host, portStr = hostPort[:idx], hostPort[idx+1:]
	}
	if !numberRE.MatchString(portStr) {
		p.say("Port must be numeric")
		return
	}
	port, _ := strconv.Atoi(portStr)

	phonebook := map[string]config.PhonebookEntry{}
	p.store.Get("phonebook", &phonebook)
	phonebook[number] = config.PhonebookEntry{Host: host, Port: port}
	p.store.Set("phonebook", phonebook)
	p.say(fmt.Sprintf("Phonebook entry for number %s saved", number))
}

func (p *Processor) cmdShowPhonebook(args []string) {
	if len(args) != 0 {
		p.say(`Extra argument(s) to "show phonebook", try "help"`)
		return
	}
	phonebook := map[string]config.PhonebookEntry{}
	if !p.store.Get("phonebook", &phonebook) || len(phonebook) == 0 {
		p.say("No phonebook entries defined")
		return
	}
	p.say("Number     Host")
	p.say("----------------------------------------")
	numbers := make([]string, 0, len(phonebook))
	for n := range phonebook {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)
	for _, n := range numbers {
		e := phonebook[n]
		p.say(fmt.Sprintf("%-10s %s:%d", n, e.Host, e.Port))
	}
}

func (p *Processor) cmdLs(args []string) {
	if len(args) != 0 {
		p.say(`Extra argument(s) to "ls", try "help"`)
		return
	}
	if !p.sd.Mounted() {
		p.say("No SD-Card found")
		return
	}
	files, err := p.sd.List()
	if err != nil {
		p.say(fmt.Sprintf("error listing files: %v", err))
		return
	}
	p.say("Name                 Size")
	p.say("-------------------------------")
	for _, f := range files {
		p.say(fmt.Sprintf("%-20s %d", f.Name, f.Size))
	}
}

func (p *Processor) cmdSetRamdisk(args []string) {
	if len(args) != 1 {
		p.say(`Missing filename argument to "set ramdisk", try "help"`)
		return
	}
	name := args[0]
	if !p.sd.Exists(name) {
		p.say(fmt.Sprintf("File %s not found", p.sd.Path(name)))
		return
	}
	size, err := p.sd.FileSize(name)
	if err != nil {
		p.say(fmt.Sprintf("stat() error on %s: %v", p.sd.Path(name), err))
		return
	}
	if size != regs.ImageSizeBytes {
		p.say(fmt.Sprintf("File %s has an unexpected size, need %d bytes in image", p.sd.Path(name), regs.ImageSizeBytes))
		return
	}
	p.store.Set("ramdisk", p.sd.Path(name))
}

func (p *Processor) cmdSet(args []string) {
	if len(args) == 0 {
		p.say(`Missing argument to "set", try "help"`)
		return
	}
	if handler, ok := p.setAbbrevs[args[0]]; ok {
		handler(args[1:])
		return
	}
	p.say(fmt.Sprintf("Unknown command \"set %s\", try \"help\"", args[0]))
}

func (p *Processor) cmdShow(args []string) {
	if len(args) == 0 {
		p.say(`Missing argument to "show", try "help"`)
		return
	}
	if handler, ok := p.showAbbrevs[args[0]]; ok {
		handler(args[1:])
		return
	}
	p.say(fmt.Sprintf("Unknown command \"show %s\", try \"help\"", args[0]))
}

func (p *Processor) cmdQuit(args []string) {
	if len(args) != 0 {
		p.say(`Unexpected argument(s) to "quit", try "help"`)
		return
	}
	p.say("Exiting PicoX-8 configuration interface")
	p.done = true
}
