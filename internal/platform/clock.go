// Package platform owns process-wide host services the protocol core must
// not reach into directly: the monotonic tick counter and the blocking
// sleep provider.
package platform

import (
	"sync"
	"sync/atomic"
	"time"
)

var (
	startOnce sync.Once
	ticks     atomic.Uint64
)

// Start begins advancing the process-wide millisecond counter from a
// periodic timer. It is init-once: later calls are no-ops. The counter
// feeds log fields and diagnostics only; protocol logic never reads it.
func Start(interval time.Duration) {
	startOnce.Do(func() {
		if interval <= 0 {
			interval = time.Millisecond
		}
		go func() {
			t := time.NewTicker(interval)
			defer t.Stop()
			for range t.C {
				Advance(uint64(interval / time.Millisecond))
			}
		}()
	})
}

// Advance adds ms to the counter. Platforms driving the counter from their
// own timer callback call this instead of Start.
func Advance(ms uint64) {
	ticks.Add(ms)
}

// Now returns milliseconds since the counter started.
func Now() uint64 {
	return ticks.Load()
}

// Clock adapts the counter to the hal.Clock contract.
type Clock struct{}

func (Clock) Now() uint64 { return Now() }

// Sleeper is the host's blocking delay provider.
type Sleeper struct{}

func (Sleeper) Sleep(d time.Duration) { time.Sleep(d) }
