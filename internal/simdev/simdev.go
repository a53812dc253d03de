// Package simdev is a byte-exact software stand-in for the WiFi
// co-processor. It speaks the real wire discipline: 2-byte word transfers
// with the second logical byte in the high position, NAK filler for idle
// half-words, a printable greeting after reset release, and the ready line
// raised only while response bytes remain.
package simdev

import (
	"errors"
	"strings"
	"time"

	"github.com/danmuck/eswifictl/internal/hal"
)

const nak byte = 0x15

var ErrNotSelected = errors.New("simdev: exchange without device select")

// Script configures the simulated firmware.
type Script struct {
	// Prompt is the greeting emitted once after reset release.
	Prompt string
	// MAC and Version answer the Z5 and MR queries.
	MAC     string
	Version string
	// StatusSeq holds successive query-status payloads; the last entry
	// repeats once the sequence is exhausted.
	StatusSeq []string
	// FailAll makes every command answer with the given status token
	// instead of OK. Empty means answer OK.
	FailAll string
}

// DefaultScript associates on the fourth status poll.
func DefaultScript() Script {
	return Script{
		Prompt:    "> ",
		MAC:       "C4:7F:51:00:12:AB",
		Version:   "ISM43362-M3G-L44-SPI,C3.5.2.5.STM,v3.5.2",
		StatusSeq: []string{"0.0.0.0", "0.0.0.0", "0.0.0.0", "192.168.1.42"},
	}
}

// Device implements hal.Exchanger plus the four control lines.
type Device struct {
	script Script

	selected bool
	inReset  bool
	awake    bool

	rxCmd     []byte
	pending   []byte
	statusPos int

	// Commands holds every CR-terminated command the device has accepted,
	// in arrival order.
	Commands []string
}

func New(script Script) *Device {
	return &Device{script: script, inReset: true}
}

// Exchange swaps one word (or any even byte count) with the host.
func (d *Device) Exchange(buf []byte) error {
	if !d.selected {
		return ErrNotSelected
	}
	for i := 0; i+1 < len(buf); i += 2 {
		d.exchangeWord(buf[i : i+2])
	}
	return nil
}

func (d *Device) exchangeWord(w []byte) {
	if len(d.pending) > 0 {
		// Serving: low byte carries the earlier logical byte, an odd
		// tail is padded with NAK which the host must drop.
		w[1] = d.pending[0]
		if len(d.pending) > 1 {
			w[0] = d.pending[1]
			d.pending = d.pending[2:]
		} else {
			w[0] = nak
			d.pending = d.pending[1:]
		}
		return
	}

	// Receiving command bytes: first logical byte rides low. A high-side
	// 0x0A after the terminating CR is frame padding, not payload.
	lo, hi := w[1], w[0]
	w[0], w[1] = nak, nak
	if d.inReset {
		return
	}
	d.rxCmd = append(d.rxCmd, lo)
	if lo == '\r' {
		d.complete()
		return
	}
	d.rxCmd = append(d.rxCmd, hi)
	if hi == '\r' {
		d.complete()
	}
}

func (d *Device) complete() {
	cmd := string(d.rxCmd)
	d.rxCmd = nil
	d.Commands = append(d.Commands, cmd)

	payload, status := d.respond(cmd)
	d.pending = []byte("\n" + payload + "\n" + status + "\n")
}

func (d *Device) respond(cmd string) (payload, status string) {
	if d.script.FailAll != "" {
		return "", d.script.FailAll
	}
	body := strings.TrimSuffix(cmd, "\r")
	switch {
	case body == "C?":
		return d.nextStatus(), "OK"
	case body == "Z5":
		return d.script.MAC, "OK"
	case body == "MR":
		return d.script.Version, "OK"
	case body == "CD" || body == "C0":
		return "", "OK"
	case strings.HasPrefix(body, "CB=") ||
		strings.HasPrefix(body, "C1=") ||
		strings.HasPrefix(body, "C2=") ||
		strings.HasPrefix(body, "C3=") ||
		strings.HasPrefix(body, "MT="):
		return "", "OK"
	default:
		return "", "ERROR"
	}
}

func (d *Device) nextStatus() string {
	if len(d.script.StatusSeq) == 0 {
		return ""
	}
	s := d.script.StatusSeq[d.statusPos]
	if d.statusPos < len(d.script.StatusSeq)-1 {
		d.statusPos++
	}
	return s
}

func (d *Device) powerUp() {
	d.inReset = false
	d.rxCmd = nil
	d.statusPos = 0
	d.pending = nil
	if d.awake && d.script.Prompt != "" {
		d.pending = []byte(d.script.Prompt)
	}
}

// Control line views.

type selectLine struct{ d *Device }

func (l selectLine) Assert()   { l.d.selected = true }
func (l selectLine) Deassert() { l.d.selected = false }

type resetLine struct{ d *Device }

func (l resetLine) Assert() { l.d.inReset = true }
func (l resetLine) Deassert() {
	if l.d.inReset {
		l.d.powerUp()
	}
}

type wakeLine struct{ d *Device }

func (l wakeLine) Assert() {
	l.d.awake = true
	if !l.d.inReset && len(l.d.pending) == 0 && l.d.script.Prompt != "" && len(l.d.Commands) == 0 {
		l.d.pending = []byte(l.d.script.Prompt)
	}
}
func (l wakeLine) Deassert() { l.d.awake = false }

type readyLine struct{ d *Device }

func (l readyLine) Read() bool { return len(l.d.pending) > 0 }

// SelectLine, ResetLine, WakeLine and ReadyLine expose the control surface
// in the shapes the driver consumes.
func (d *Device) SelectLine() hal.OutputLine { return selectLine{d} }
func (d *Device) ResetLine() hal.OutputLine  { return resetLine{d} }
func (d *Device) WakeLine() hal.OutputLine   { return wakeLine{d} }
func (d *Device) ReadyLine() hal.InputLine   { return readyLine{d} }

// Lines bundles the full control surface.
func (d *Device) Lines() hal.ControlLines {
	return hal.ControlLines{
		Select: d.SelectLine(),
		Reset:  d.ResetLine(),
		Wake:   d.WakeLine(),
		Ready:  d.ReadyLine(),
	}
}

// Sleeper returns an instant sleeper so simulated runs never stall.
func (d *Device) Sleeper() hal.Sleeper { return instantSleeper{} }

type instantSleeper struct{}

func (instantSleeper) Sleep(time.Duration) {}
