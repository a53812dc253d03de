package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/eswifictl/internal/hal"
)

const (
	// FillerByte pads odd-length frames and fills outgoing poll words.
	FillerByte byte = 0x0A
	// NAKByte marks idle filler in received words and is never part of a
	// response.
	NAKByte byte = 0x15
)

var (
	ErrBus          = errors.New("transport: bus exchange failed")
	ErrReadyTimeout = errors.New("transport: timed out waiting for data ready")
	ErrRecvTimeout  = errors.New("transport: receive word budget exhausted")
	ErrOverflow     = errors.New("transport: receive capacity exceeded")
)

// Config bounds the framing layer's polling loops. The baseline hardware
// protocol has no timeouts of its own; these budgets are what stand between
// a wedged device and an indefinite hang.
type Config struct {
	// ReadyPollInterval is the delay between reads of the ready line while
	// waiting for a response to become available.
	ReadyPollInterval time.Duration
	// ReadyAttempts caps the ready-line polls before RecvFrame gives up.
	ReadyAttempts int
	// RecvWordBudget caps the number of word exchanges in one drain loop.
	RecvWordBudget int
}

func DefaultConfig() Config {
	return Config{
		ReadyPollInterval: 10 * time.Millisecond,
		ReadyAttempts:     500,
		RecvWordBudget:    4096,
	}
}

// Framer turns logical byte streams into 2-byte word transfers and back.
// Every public call brackets the bus with select assert/deassert and
// guarantees deassert on all exit paths.
type Framer struct {
	bus   hal.Exchanger
	sel   hal.OutputLine
	ready hal.DataReady
	sleep hal.Sleeper
	cfg   Config
}

func NewFramer(bus hal.Exchanger, sel hal.OutputLine, ready hal.DataReady, sleep hal.Sleeper, cfg Config) *Framer {
	if cfg.ReadyPollInterval <= 0 {
		cfg.ReadyPollInterval = DefaultConfig().ReadyPollInterval
	}
	if cfg.ReadyAttempts <= 0 {
		cfg.ReadyAttempts = DefaultConfig().ReadyAttempts
	}
	if cfg.RecvWordBudget <= 0 {
		cfg.RecvWordBudget = DefaultConfig().RecvWordBudget
	}
	return &Framer{bus: bus, sel: sel, ready: ready, sleep: sleep, cfg: cfg}
}

// SendFrame emits b as ceil(len(b)/2) word transfers. The first byte of each
// pair rides in the low position, the second in the high position; an
// unpaired final byte is padded with FillerByte in the high position. The
// first bus failure aborts the frame. No retry happens at this layer.
func (f *Framer) SendFrame(b []byte) error {
	f.sel.Assert()
	defer f.sel.Deassert()

	for i := 0; i < len(b); i += 2 {
		var w [2]byte
		w[1] = b[i]
		if i+1 < len(b) {
			w[0] = b[i+1]
		} else {
			w[0] = FillerByte
		}
		if err := f.bus.Exchange(w[:]); err != nil {
			return fmt.Errorf("%w: word %d: %v", ErrBus, i/2, err)
		}
	}

	log.Debug().Int("bytes", len(b)).Int("words", (len(b)+1)/2).Msg("frame sent")
	return nil
}

// RecvFrame waits for the ready line, then drains words until the device
// deasserts it, assembling up to limit response bytes. NAK filler bytes are
// dropped, never appended. On overflow the device is still drained so the
// bus ends in a clean state, and ErrOverflow is returned alongside the bytes
// collected before the cap.
func (f *Framer) RecvFrame(limit int) ([]byte, error) {
	if err := f.WaitReady(f.cfg.ReadyPollInterval, f.cfg.ReadyAttempts); err != nil {
		return nil, err
	}
	return f.Drain(limit, dropNAK)
}

// WaitReady polls the ready line at the given interval for at most attempts
// reads, returning ErrReadyTimeout if it never asserts.
func (f *Framer) WaitReady(interval time.Duration, attempts int) error {
	for i := 0; i < attempts; i++ {
		if f.ready.Ready() {
			return nil
		}
		f.sleep.Sleep(interval)
	}
	return fmt.Errorf("%w: after %d polls", ErrReadyTimeout, attempts)
}

// Drain clocks poll words out of the device while the ready line stays
// asserted, keeping each received byte for which keep returns true. The
// caller must have observed ready asserted already; a device that holds
// ready past the word budget yields ErrRecvTimeout. Bytes past limit are
// discarded but the device is drained to completion.
func (f *Framer) Drain(limit int, keep func(byte) bool) ([]byte, error) {
	f.sel.Assert()
	defer f.sel.Deassert()

	var (
		out      []byte
		words    int
		overflow bool
	)
	for f.ready.Ready() {
		if words >= f.cfg.RecvWordBudget {
			return out, fmt.Errorf("%w: %d words", ErrRecvTimeout, words)
		}
		w := [2]byte{FillerByte, FillerByte}
		if err := f.bus.Exchange(w[:]); err != nil {
			return out, fmt.Errorf("%w: word %d: %v", ErrBus, words, err)
		}
		words++

		// Low byte is the earlier logical byte, mirroring SendFrame.
		for _, rx := range [2]byte{w[1], w[0]} {
			if !keep(rx) {
				continue
			}
			if len(out) >= limit {
				overflow = true
				continue
			}
			out = append(out, rx)
		}
	}

	log.Debug().Int("bytes", len(out)).Int("words", words).Bool("overflow", overflow).Msg("frame received")
	if overflow {
		return out, fmt.Errorf("%w: limit %d", ErrOverflow, limit)
	}
	return out, nil
}

func dropNAK(b byte) bool {
	return b != NAKByte
}
