package hal

import "time"

// Exchanger is the synchronous bus primitive: it clocks len(buf) bytes out
// while clocking the same number of bytes in, overwriting buf in place.
// The co-processor bus is half duplex at the protocol level, so callers
// treat the outgoing bytes as either payload or poll filler, never both.
type Exchanger interface {
	Exchange(buf []byte) error
}

// OutputLine drives one digital control line. Assert places the line in its
// electrically active state regardless of polarity (the device-select line
// is active-low; asserting it pulls the line low).
type OutputLine interface {
	Assert()
	Deassert()
}

// InputLine reads one digital input line. Read reports the logical state:
// true means active.
type InputLine interface {
	Read() bool
}

// Sleeper is a blocking delay provider with millisecond granularity.
type Sleeper interface {
	Sleep(d time.Duration)
}

// Clock exposes monotonic milliseconds since process start. Protocol logic
// never consumes it; it exists for log fields and diagnostics only.
type Clock interface {
	Now() uint64
}

// DataReady is a read-only accessor over the co-processor's CMD/DATA READY
// line. High means the device has data for the host.
type DataReady struct {
	Line InputLine
}

// Ready reports whether the device currently has data to read.
func (d DataReady) Ready() bool {
	return d.Line.Read()
}

// ControlLines bundles the four lines the driver owns. Select brackets every
// framed transfer; Reset and Wake are used once during device bring-up.
type ControlLines struct {
	Select OutputLine
	Reset  OutputLine
	Wake   OutputLine
	Ready  InputLine
}
