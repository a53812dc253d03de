package simdev

import (
	"errors"
	"testing"

	"github.com/danmuck/eswifictl/internal/command"
	"github.com/danmuck/eswifictl/internal/hal"
	"github.com/danmuck/eswifictl/internal/testutil/testlog"
	"github.com/danmuck/eswifictl/internal/transport"
	"github.com/danmuck/eswifictl/internal/wifi"
)

// newStack wires the real driver layers on top of one simulated device.
func newStack(t *testing.T, script Script) (*Device, *wifi.Manager) {
	t.Helper()
	dev := New(script)
	lines := dev.Lines()
	framer := transport.NewFramer(dev, lines.Select, hal.DataReady{Line: lines.Ready}, dev.Sleeper(), transport.Config{
		ReadyAttempts: 4,
	})
	channel := command.NewChannel(framer, command.ShortCodes{}, command.Config{PromptAttempts: 4}, nil)
	manager := wifi.NewManager(channel, lines, dev.Sleeper(), wifi.Config{PromptAttempts: 4})
	return dev, manager
}

func TestEndToEndInitAndJoin(t *testing.T) {
	testlog.Start(t)
	script := DefaultScript()
	dev, manager := newStack(t, script)

	banner, err := manager.Init()
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if banner != script.Version {
		t.Fatalf("banner: got %q, want %q", banner, script.Version)
	}

	mac, err := manager.MAC()
	if err != nil {
		t.Fatalf("mac: %v", err)
	}
	if mac != script.MAC {
		t.Fatalf("mac: got %q, want %q", mac, script.MAC)
	}

	polls, err := manager.Join("home-net", "hunter2")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if polls != len(script.StatusSeq) {
		t.Fatalf("polls: got %d, want %d", polls, len(script.StatusSeq))
	}
	if manager.State() != wifi.StateConnected {
		t.Fatalf("state: got %v, want connected", manager.State())
	}

	want := []string{
		"MT=1\r", "MR\r", "Z5\r",
		"CD\r", "CB=2\r", "C1=home-net\r", "C2=hunter2\r", "C3=4\r", "C0\r",
		"C?\r", "C?\r", "C?\r", "C?\r",
	}
	if len(dev.Commands) != len(want) {
		t.Fatalf("commands: got %v, want %v", dev.Commands, want)
	}
	for i := range want {
		if dev.Commands[i] != want[i] {
			t.Fatalf("command %d: got %q, want %q", i, dev.Commands[i], want[i])
		}
	}
}

func TestEndToEndJoinFailure(t *testing.T) {
	testlog.Start(t)
	script := DefaultScript()
	script.StatusSeq = []string{"JOIN Failed"}
	dev, manager := newStack(t, script)

	if _, err := manager.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	_, err := manager.Join("home-net", "wrong-pass")
	if !errors.Is(err, wifi.ErrConnectionFailed) {
		t.Fatalf("expected ErrConnectionFailed, got %v", err)
	}

	polls := 0
	for _, cmd := range dev.Commands {
		if cmd == "C?\r" {
			polls++
		}
	}
	if polls != 1 {
		t.Fatalf("expected a single status poll, got %d", polls)
	}
}

func TestEndToEndRejectedCommandSurfacesStatus(t *testing.T) {
	script := DefaultScript()
	script.FailAll = "ERR-2"
	_, manager := newStack(t, script)

	_, err := manager.Init()
	var ce *command.CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if ce.Status != "ERR-2" {
		t.Fatalf("status token: got %q", ce.Status)
	}
}

func TestGreetingConsumedExactlyOnce(t *testing.T) {
	script := DefaultScript()
	dev, manager := newStack(t, script)

	if _, err := manager.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	// After init the greeting is gone; a raw status query must see only
	// its own response.
	status, err := manager.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != script.StatusSeq[0] {
		t.Fatalf("status: got %q, want %q", status, script.StatusSeq[0])
	}
	if ready := dev.ReadyLine().Read(); ready {
		t.Fatal("ready line still asserted with nothing pending")
	}
}

func TestExchangeRequiresSelect(t *testing.T) {
	dev := New(DefaultScript())
	buf := []byte{0x0A, 0x0A}
	if err := dev.Exchange(buf); !errors.Is(err, ErrNotSelected) {
		t.Fatalf("expected ErrNotSelected, got %v", err)
	}
}
