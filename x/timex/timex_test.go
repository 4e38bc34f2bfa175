package timex

import (
	"testing"
	"time"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2024, 3, 15, 9, 5, 0, 0, time.UTC)
	m := NewManual(start)
	m.Advance(90 * time.Second)
	if got := m.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Fatalf("Now() = %v", got)
	}
	m.Set(start)
	if !m.Now().Equal(start) {
		t.Fatal("Set did not take effect")
	}
}

func TestSystemClockMoves(t *testing.T) {
	var c Clock = System{}
	a := c.Now()
	if a.IsZero() || NowNs() <= 0 {
		t.Fatal("system clock reported zero")
	}
}
