package command

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/eswifictl/internal/hal"
	"github.com/danmuck/eswifictl/internal/testutil/testlog"
	"github.com/danmuck/eswifictl/internal/transport"
)

// fakeWire backs a real Framer with scripted reply words.
type fakeWire struct {
	sent      [][2]byte
	replies   [][2]byte
	pos       int
	exchanges int
	selected  bool
}

func (w *fakeWire) Exchange(buf []byte) error {
	w.exchanges++
	w.sent = append(w.sent, [2]byte{buf[0], buf[1]})
	poll := buf[0] == transport.FillerByte && buf[1] == transport.FillerByte
	if poll && w.pos < len(w.replies) {
		buf[0], buf[1] = w.replies[w.pos][0], w.replies[w.pos][1]
		w.pos++
	} else {
		buf[0], buf[1] = transport.NAKByte, transport.NAKByte
	}
	return nil
}

func (w *fakeWire) Assert()             { w.selected = true }
func (w *fakeWire) Deassert()           { w.selected = false }
func (w *fakeWire) Read() bool          { return w.pos < len(w.replies) }
func (w *fakeWire) Sleep(time.Duration) {}

func words(s string) [][2]byte {
	b := []byte(s)
	var out [][2]byte
	for i := 0; i < len(b); i += 2 {
		w := [2]byte{transport.NAKByte, b[i]}
		if i+1 < len(b) {
			w[0] = b[i+1]
		}
		out = append(out, w)
	}
	return out
}

func newTestChannel(w *fakeWire, cfg Config, rep Reporter) *Channel {
	framer := transport.NewFramer(w, w, hal.DataReady{Line: w}, w, transport.Config{
		ReadyAttempts: 3, ReadyPollInterval: time.Millisecond,
	})
	return NewChannel(framer, ShortCodes{}, cfg, rep)
}

type recordingReporter struct {
	outcomes []string
}

func (r *recordingReporter) Command(cmd, outcome string, err error) {
	r.outcomes = append(r.outcomes, outcome)
}

type panickyReporter struct{}

func (panickyReporter) Command(cmd, outcome string, err error) {
	panic("reporter exploded")
}

func TestSendRejectsUnterminatedCommand(t *testing.T) {
	w := &fakeWire{}
	c := newTestChannel(w, Config{}, nil)
	for _, cmd := range []string{"", "C0", "C0\n"} {
		if _, err := c.Send(cmd); !errors.Is(err, ErrBadCommand) {
			t.Fatalf("send %q: expected ErrBadCommand, got %v", cmd, err)
		}
	}
	if w.exchanges != 0 {
		t.Fatalf("rejected commands must not touch the bus, saw %d exchanges", w.exchanges)
	}
}

func TestSendParsesPayloadAndStatus(t *testing.T) {
	testlog.Start(t)
	w := &fakeWire{replies: words("\n192.168.1.42\nOK\n")}
	c := newTestChannel(w, Config{}, nil)
	resp, err := c.Send("C?\r")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Payload != "192.168.1.42" || resp.Status != "OK" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSendCommandFailedWithholdsPayload(t *testing.T) {
	w := &fakeWire{replies: words("\nsecret-detail\nERROR\n")}
	c := newTestChannel(w, Config{}, nil)
	resp, err := c.Send("C0\r")
	var ce *CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if ce.Status != "ERROR" {
		t.Fatalf("unexpected status token: %q", ce.Status)
	}
	if resp.Payload != "" {
		t.Fatalf("payload of a failed command must be withheld, got %q", resp.Payload)
	}
}

func TestSendMalformedResponses(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing preamble", "garbage\nOK\n"},
		{"missing status", "\nonly-payload\n"},
		{"single line", "OK"},
	}
	for _, tc := range cases {
		w := &fakeWire{replies: words(tc.raw)}
		c := newTestChannel(w, Config{}, nil)
		if _, err := c.Send("C?\r"); !errors.Is(err, ErrResponseMalformed) {
			t.Fatalf("%s: expected ErrResponseMalformed, got %v", tc.name, err)
		}
	}
}

func TestSendResponseTooLong(t *testing.T) {
	w := &fakeWire{replies: words("\n" + strings.Repeat("x", 64) + "\nOK\n")}
	c := newTestChannel(w, Config{MaxResponseBytes: 16}, nil)
	if _, err := c.Send("MR\r"); !errors.Is(err, ErrResponseTooLong) {
		t.Fatalf("expected ErrResponseTooLong, got %v", err)
	}
}

func TestSendReportsOutcomes(t *testing.T) {
	rep := &recordingReporter{}

	w := &fakeWire{replies: words("\nok-data\nOK\n")}
	c := newTestChannel(w, Config{}, rep)
	if _, err := c.Send("MR\r"); err != nil {
		t.Fatalf("send: %v", err)
	}

	w = &fakeWire{replies: words("\n\nEINVAL\n")}
	c = newTestChannel(w, Config{}, rep)
	if _, err := c.Send("C0\r"); err == nil {
		t.Fatal("expected command failure")
	}

	want := []string{OutcomeOK, OutcomeCommandFailed}
	if len(rep.outcomes) != len(want) {
		t.Fatalf("outcomes: got %v, want %v", rep.outcomes, want)
	}
	for i := range want {
		if rep.outcomes[i] != want[i] {
			t.Fatalf("outcomes: got %v, want %v", rep.outcomes, want)
		}
	}
}

func TestReporterPanicDoesNotAffectResult(t *testing.T) {
	w := &fakeWire{replies: words("\nfine\nOK\n")}
	c := newTestChannel(w, Config{}, panickyReporter{})
	resp, err := c.Send("MR\r")
	if err != nil {
		t.Fatalf("reporter panic leaked into protocol result: %v", err)
	}
	if resp.Payload != "fine" {
		t.Fatalf("unexpected payload: %q", resp.Payload)
	}
}

func TestFetchPromptRetainsOnlyPrintable(t *testing.T) {
	w := &fakeWire{replies: words("\x15\r\n> \x07")}
	c := newTestChannel(w, Config{}, nil)
	cursor, err := c.FetchPrompt(0)
	if err != nil {
		t.Fatalf("fetch prompt: %v", err)
	}
	if cursor != "> " {
		t.Fatalf("cursor: got %q, want %q", cursor, "> ")
	}
}

func TestFetchPromptTimeoutIsTyped(t *testing.T) {
	w := &fakeWire{}
	c := newTestChannel(w, Config{PromptAttempts: 3, PromptPollInterval: time.Millisecond}, nil)
	if _, err := c.FetchPrompt(0); !errors.Is(err, ErrInitTimeout) {
		t.Fatalf("expected ErrInitTimeout, got %v", err)
	}
}

func TestFetchPromptTruncatesOnOverflow(t *testing.T) {
	w := &fakeWire{replies: words("0123456789")}
	c := newTestChannel(w, Config{PromptCapacity: 4}, nil)
	cursor, err := c.FetchPrompt(0)
	if !errors.Is(err, ErrPromptOverflow) {
		t.Fatalf("expected ErrPromptOverflow, got %v", err)
	}
	if cursor != "0123" {
		t.Fatalf("cursor: got %q, want truncation to %q", cursor, "0123")
	}
	if w.pos != len(w.replies) {
		t.Fatalf("device not drained after overflow: %d of %d words", w.pos, len(w.replies))
	}
}
