package platform

import "testing"

func TestAdvanceAccumulates(t *testing.T) {
	before := Now()
	Advance(5)
	Advance(7)
	if got := Now() - before; got != 12 {
		t.Fatalf("expected 12 ticks, got %d", got)
	}
	var c Clock
	if c.Now() != Now() {
		t.Fatal("clock view disagrees with counter")
	}
}

func TestStartIsInitOnce(t *testing.T) {
	Start(0)
	Start(0) // second call must be a no-op
}
